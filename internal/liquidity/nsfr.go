package liquidity

import (
	"context"
	"log/slog"
	"time"

	"regliq/pkg/contracts/domain"
)

// NSFRCalculator computes the Net Stable Funding Ratio
type NSFRCalculator struct {
	params Parameters
	logger *slog.Logger
}

// NewNSFRCalculator creates a new NSFR calculator with the specified parameters
func NewNSFRCalculator(params Parameters, logger *slog.Logger) *NSFRCalculator {
	if logger == nil {
		logger = slog.Default()
	}

	return &NSFRCalculator{
		params: params,
		logger: logger,
	}
}

// ComputeASF sums available stable funding by source
func (c *NSFRCalculator) ComputeASF(ctx context.Context, items []domain.LineItem) ASFBreakdown {
	var asf ASFBreakdown
	p := c.params.ASF

	for _, item := range items {
		switch {
		case item.Category == domain.CategoryCapital:
			asf.Capital += item.OutstandingBalance * p.Capital

		case isRetailDeposit(item):
			factor := p.RetailLessStable
			if item.SubProduct == domain.SubProductStable {
				factor = p.RetailStable
			}
			asf.Retail += item.OutstandingBalance * factor

		case isWholesaleDeposit(item):
			asf.Wholesale += item.OutstandingBalance * c.wholesaleASFFactor(item)

		case item.Category == domain.CategoryOtherLiabilities:
			factor := p.OtherLiability
			if item.AvailableStableFundingFactor != nil {
				factor = *item.AvailableStableFundingFactor
			}
			asf.Other += item.OutstandingBalance * factor
		}
	}

	asf.Total = asf.Capital + asf.Retail + asf.Wholesale + asf.Other

	c.logger.DebugContext(ctx, "available stable funding computed",
		"items", len(items),
		"total", asf.Total,
	)

	return asf
}

// wholesaleASFFactor weights non-retail deposits by operational status, then remaining maturity
func (c *NSFRCalculator) wholesaleASFFactor(item domain.LineItem) float64 {
	p := c.params.ASF
	if item.SubProduct == domain.SubProductOperational {
		return p.WholesaleOperational
	}

	days := item.MaturityBucket.Days()
	switch {
	case days < p.ShortDays:
		return p.WholesaleShort
	case days < p.LongDays:
		return p.WholesaleMedium
	default:
		return p.WholesaleLong
	}
}

// ComputeRSF sums required stable funding by asset type. Categories listed in
// the excluded set do not contribute.
func (c *NSFRCalculator) ComputeRSF(ctx context.Context, items []domain.LineItem) RSFBreakdown {
	var rsf RSFBreakdown

	for _, item := range items {
		if c.params.IsExcludedFromRSF(item.Category) {
			continue
		}

		factor := c.RSFFactor(item)
		amount := item.OutstandingBalance * factor

		switch {
		case item.IsHQLA && item.HQLALevel == domain.HQLALevel1:
			rsf.Level1 += amount
		case item.IsHQLA && item.HQLALevel == domain.HQLALevel2A:
			rsf.Level2A += amount
		case item.IsHQLA && item.HQLALevel == domain.HQLALevel2B:
			rsf.Level2B += amount
		case item.Category == domain.CategoryLoans:
			rsf.Loans += amount
		default:
			rsf.Other += amount
		}
	}

	rsf.Total = rsf.Level1 + rsf.Level2A + rsf.Level2B + rsf.Loans + rsf.Other

	c.logger.DebugContext(ctx, "required stable funding computed",
		"items", len(items),
		"total", rsf.Total,
	)

	return rsf
}

// RSFFactor returns the declared factor of an item or derives one from its
// HQLA level, category and sub-product. Unclassified items get the most
// conservative factor.
func (c *NSFRCalculator) RSFFactor(item domain.LineItem) float64 {
	if item.RequiredStableFundingFactor != nil {
		return *item.RequiredStableFundingFactor
	}

	p := c.params.RSF

	if item.IsHQLA {
		switch item.HQLALevel {
		case domain.HQLALevel1:
			return p.Level1
		case domain.HQLALevel2A:
			return p.Level2A
		case domain.HQLALevel2B:
			return p.Level2B
		}
	}

	switch item.Category {
	case domain.CategoryLoans:
		long := item.MaturityBucket.Days() >= p.LongLoanDays
		if long && (item.SubProduct == domain.SubProductMortgage || item.SubProduct == domain.SubProductConsumer) {
			return p.LongRetailLoans
		}
		return p.OtherLoans
	case domain.CategorySecurities:
		return p.Securities
	case domain.CategoryDerivatives:
		return p.Derivatives
	case domain.CategoryCreditFacilities, domain.CategoryLiquidityFacilities:
		return p.Facilities
	case domain.CategoryOtherAssets:
		switch item.SubProduct {
		case domain.SubProductCash, domain.SubProductCentralBankReserves:
			return p.CashLike
		case domain.SubProductFixedAssets, domain.SubProductIntangibles:
			return p.NonLiquidAssets
		}
	}

	return p.Unclassified
}

// Calculate computes the full NSFR result for one dataset
func (c *NSFRCalculator) Calculate(ctx context.Context, items []domain.LineItem) NSFRResult {
	start := time.Now()

	asf := c.ComputeASF(ctx, items)
	rsf := c.ComputeRSF(ctx, items)

	var ratio float64
	if rsf.Total > 0 {
		ratio = asf.Total / rsf.Total
	}

	result := NSFRResult{
		AvailableStableFunding: asf.Total,
		RequiredStableFunding:  rsf.Total,
		NSFRRatio:              ratio,
		IsCompliant:            ratio >= c.params.MinNSFR,
		ASF:                    asf,
		RSF:                    rsf,
	}

	c.logger.InfoContext(ctx, "nsfr calculation completed",
		"items", len(items),
		"asf", result.AvailableStableFunding,
		"rsf", result.RequiredStableFunding,
		"nsfr_ratio", result.NSFRRatio,
		"compliant", result.IsCompliant,
		"duration", time.Since(start),
	)

	return result
}
