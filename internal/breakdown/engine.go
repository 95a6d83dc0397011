package breakdown

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"regliq/internal/liquidity"
	"regliq/pkg/contracts/domain"
)

// Engine regroups line items into itemized components for audit trails.
// It applies the same treatments as the calculators in package liquidity
// but computes them on its own, so the two passes can be reconciled.
type Engine struct {
	params liquidity.Parameters
	logger *slog.Logger
}

// NewEngine creates a breakdown engine with the specified parameters
func NewEngine(params liquidity.Parameters, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		params: params,
		logger: logger,
	}
}

// Compute builds every component list and their totals
func (e *Engine) Compute(ctx context.Context, items []domain.LineItem) Result {
	start := time.Now()

	result := Result{
		HQLA:     e.HQLAComponents(ctx, items),
		Outflows: e.OutflowComponents(ctx, items),
		Inflows:  e.InflowComponents(ctx, items),
	}

	for _, c := range result.HQLA {
		result.Totals.HQLA += c.LiquidityValue
	}
	for _, c := range result.Outflows {
		result.Totals.Outflows.Add(c.OutflowCategory, c.ComputedAmount)
	}
	for _, c := range result.Inflows {
		result.Totals.Inflows += c.ComputedAmount
	}

	e.logger.InfoContext(ctx, "component breakdown completed",
		"items", len(items),
		"hqla_components", len(result.HQLA),
		"outflow_components", len(result.Outflows),
		"inflow_components", len(result.Inflows),
		"duration", time.Since(start),
	)

	return result
}

// HQLAComponents groups liquid assets by level, category and asset class.
// Level 2A and 2B caps are applied pro rata across the components of a level.
func (e *Engine) HQLAComponents(ctx context.Context, items []domain.LineItem) []HQLAComponent {
	groups := make(map[HQLAKey]*HQLAComponent)
	unencumbered := make(map[HQLAKey]float64)

	for _, item := range items {
		if !item.IsHQLA {
			continue
		}

		factor, ok := e.liquidityValueFactor(item.HQLALevel)
		if !ok {
			e.logger.WarnContext(ctx, "hqla item without level left out of breakdown",
				"product_id", item.ProductID,
			)
			continue
		}

		key := HQLAKey{Level: item.HQLALevel, Category: item.Category, AssetClass: item.AssetClass}
		c, exists := groups[key]
		if !exists {
			c = &HQLAComponent{
				HQLAKey:              key,
				LiquidityValueFactor: factor,
				Methodology:          hqlaMethodology(item.HQLALevel, factor),
				RegulatoryReference:  hqlaReference(item.HQLALevel),
			}
			groups[key] = c
		}

		free := item.OutstandingBalance - item.EncumberedAmount
		afterHaircut := free * (1 - item.Haircut)

		c.TotalAmount += item.OutstandingBalance
		c.EncumberedAmount += item.EncumberedAmount
		c.AmountAfterHaircut += afterHaircut
		c.UncappedLiquidityValue += afterHaircut * factor
		c.LineItemIDs = append(c.LineItemIDs, item.ProductID)
		c.RecordCount++
		unencumbered[key] += free
	}

	components := make([]HQLAComponent, 0, len(groups))
	for key, c := range groups {
		if free := unencumbered[key]; free != 0 {
			c.AverageHaircut = 1 - c.AmountAfterHaircut/free
		}
		c.LiquidityValue = c.UncappedLiquidityValue
		components = append(components, *c)
	}

	sort.Slice(components, func(i, j int) bool {
		return components[i].HQLAKey.less(components[j].HQLAKey)
	})

	e.applyCaps(ctx, components)

	return components
}

// applyCaps scales Level 2A and 2B components down to their caps relative to Level 1
func (e *Engine) applyCaps(ctx context.Context, components []HQLAComponent) {
	var level1, level2a, level2b float64
	for _, c := range components {
		switch c.Level {
		case domain.HQLALevel1:
			level1 += c.UncappedLiquidityValue
		case domain.HQLALevel2A:
			level2a += c.UncappedLiquidityValue
		case domain.HQLALevel2B:
			level2b += c.UncappedLiquidityValue
		}
	}

	scale := map[domain.HQLALevel]float64{
		domain.HQLALevel2A: capScale(level2a, level1*e.params.HQLA.Level2ACapRatio),
		domain.HQLALevel2B: capScale(level2b, level1*e.params.HQLA.Level2BCapRatio),
	}

	for i := range components {
		s, ok := scale[components[i].Level]
		if !ok || s == 1 {
			continue
		}
		capped := components[i].UncappedLiquidityValue * s
		components[i].CapAdjustment = components[i].UncappedLiquidityValue - capped
		components[i].LiquidityValue = capped
	}

	if scale[domain.HQLALevel2A] < 1 || scale[domain.HQLALevel2B] < 1 {
		e.logger.DebugContext(ctx, "concentration caps applied to hqla components",
			"level1", level1,
			"level2a_scale", scale[domain.HQLALevel2A],
			"level2b_scale", scale[domain.HQLALevel2B],
		)
	}
}

// capScale returns the factor bringing uncapped down to limit, never above 1
func capScale(uncapped, limit float64) float64 {
	if uncapped <= 0 || uncapped <= limit {
		return 1
	}
	return limit / uncapped
}

func (e *Engine) liquidityValueFactor(level domain.HQLALevel) (float64, bool) {
	switch level {
	case domain.HQLALevel1:
		return 1.0, true
	case domain.HQLALevel2A:
		return e.params.HQLA.Level2AFactor, true
	case domain.HQLALevel2B:
		return e.params.HQLA.Level2BFactor, true
	default:
		return 0, false
	}
}

func hqlaMethodology(level domain.HQLALevel, factor float64) string {
	limit := ""
	switch level {
	case domain.HQLALevel2A, domain.HQLALevel2B:
		limit = ", capped relative to Level 1"
	}
	return fmt.Sprintf("%s: (balance - encumbered) x (1 - haircut) x %.2f%s", levelLabel(level), factor, limit)
}

func hqlaReference(level domain.HQLALevel) string {
	switch level {
	case domain.HQLALevel2A:
		return RefLevel2A
	case domain.HQLALevel2B:
		return RefLevel2B
	default:
		return RefLevel1
	}
}

func levelLabel(level domain.HQLALevel) string {
	switch level {
	case domain.HQLALevel1:
		return "Level 1"
	case domain.HQLALevel2A:
		return "Level 2A"
	case domain.HQLALevel2B:
		return "Level 2B"
	default:
		return "Unclassified"
	}
}

// outflowTreatment is the stressed treatment of one item
type outflowTreatment struct {
	category    liquidity.OutflowCategory
	base        float64
	amount      float64
	methodology string
	reference   string
}

// OutflowComponents groups stressed outflows by category, product type,
// counterparty and maturity bucket
func (e *Engine) OutflowComponents(ctx context.Context, items []domain.LineItem) []OutflowComponent {
	groups := make(map[FlowKey]*OutflowComponent)

	for _, item := range items {
		treatment, ok := e.outflowTreatment(item)
		if !ok {
			continue
		}

		key := flowKey(item)
		c, exists := groups[key]
		if !exists {
			c = &OutflowComponent{
				FlowKey:             key,
				OutflowCategory:     treatment.category,
				Methodology:         treatment.methodology,
				RegulatoryReference: treatment.reference,
			}
			groups[key] = c
		}

		c.TotalAmount += treatment.base
		c.ComputedAmount += treatment.amount
		c.LineItemIDs = append(c.LineItemIDs, item.ProductID)
		c.RecordCount++
	}

	components := make([]OutflowComponent, 0, len(groups))
	for _, c := range groups {
		c.EffectiveRate = effectiveRate(c.ComputedAmount, c.TotalAmount)
		components = append(components, *c)
	}

	sort.Slice(components, func(i, j int) bool {
		return components[i].FlowKey.less(components[j].FlowKey)
	})

	e.logger.DebugContext(ctx, "outflow components built", "components", len(components))

	return components
}

// outflowTreatment classifies an item in the same order as the LCR: retail
// deposits, wholesale deposits, secured funding, derivatives, facilities,
// then any other short-dated contractual outflow.
func (e *Engine) outflowTreatment(item domain.LineItem) (outflowTreatment, bool) {
	op := e.params.Outflows
	deposit := item.Category == domain.CategoryDeposits

	switch {
	case deposit && item.CounterpartyType == domain.CounterpartyRetail:
		rate, how := op.RetailLessStable, "less stable retail runoff"
		if item.SubProduct == domain.SubProductStable {
			rate, how = op.RetailStable, "stable retail runoff"
		}
		if item.RunoffRate != nil {
			rate, how = *item.RunoffRate, "declared runoff rate"
		}
		return outflowTreatment{
			category:    liquidity.OutflowRetail,
			base:        item.OutstandingBalance,
			amount:      item.OutstandingBalance * rate,
			methodology: "balance x " + how,
			reference:   RefRetailDeposits,
		}, true

	case deposit:
		var rate float64
		var how string
		switch {
		case item.RunoffRate != nil:
			rate, how = *item.RunoffRate, "declared runoff rate"
		case item.SubProduct == domain.SubProductOperational:
			rate, how = op.WholesaleOperational, "operational deposit runoff"
		case item.CounterpartyType == domain.CounterpartyFinancialInstitution:
			rate, how = op.FinancialInstitution, "financial institution runoff"
		default:
			rate, how = op.WholesaleOther, "non-operational wholesale runoff"
		}
		return outflowTreatment{
			category:    liquidity.OutflowWholesale,
			base:        item.OutstandingBalance,
			amount:      item.OutstandingBalance * rate,
			methodology: "balance x " + how,
			reference:   RefWholesaleFunding,
		}, true

	case item.Category == domain.CategorySecuredFunding:
		t := outflowTreatment{
			category:    liquidity.OutflowSecured,
			base:        item.OutstandingBalance,
			amount:      item.OutstandingBalance,
			methodology: "full balance, collateral not Level 1",
			reference:   RefSecuredFunding,
		}
		if item.IsHQLA && item.HQLALevel == domain.HQLALevel1 {
			t.amount = 0
			t.methodology = "no outflow, backed by Level 1 collateral"
		}
		return t, true

	case item.Category == domain.CategoryDerivatives:
		return outflowTreatment{
			category:    liquidity.OutflowDerivatives,
			base:        item.ProjectedCashOutflow,
			amount:      item.ProjectedCashOutflow,
			methodology: "projected net derivative outflow",
			reference:   RefDerivatives,
		}, true

	case item.Category == domain.CategoryCreditFacilities || item.Category == domain.CategoryLiquidityFacilities:
		return outflowTreatment{
			category:    liquidity.OutflowOtherContingent,
			base:        item.OutstandingBalance,
			amount:      item.OutstandingBalance * op.ContingentFacilityRate,
			methodology: fmt.Sprintf("committed facility drawdown at %.0f%%", op.ContingentFacilityRate*100),
			reference:   RefFacilities,
		}, true

	case item.MaturityBucket.Days() <= e.params.ShortTermHorizonDays:
		return outflowTreatment{
			category:    liquidity.OutflowOtherContractual,
			base:        item.ProjectedCashOutflow,
			amount:      item.ProjectedCashOutflow,
			methodology: fmt.Sprintf("contractual outflow within %d days", e.params.ShortTermHorizonDays),
			reference:   RefOtherContractual,
		}, true
	}

	return outflowTreatment{}, false
}

// InflowComponents groups contractual inflows due within the stress horizon
func (e *Engine) InflowComponents(ctx context.Context, items []domain.LineItem) []InflowComponent {
	groups := make(map[FlowKey]*InflowComponent)
	ip := e.params.Inflows

	for _, item := range items {
		if item.ProjectedCashInflow <= 0 || item.MaturityBucket.Days() > e.params.ShortTermHorizonDays {
			continue
		}

		rate, how := ip.ComponentDefaultRate, "contractual inflow at default rate"
		if item.CounterpartyType == domain.CounterpartyCentralBank && item.SubProduct == domain.SubProductReverseRepo {
			rate, how = ip.CentralBankReverseRepoRate, "central bank reverse repo inflow"
		}

		key := flowKey(item)
		c, exists := groups[key]
		if !exists {
			c = &InflowComponent{
				FlowKey:             key,
				Methodology:         how,
				RegulatoryReference: RefInflows,
			}
			groups[key] = c
		}

		c.TotalAmount += item.ProjectedCashInflow
		c.ComputedAmount += item.ProjectedCashInflow * rate
		c.LineItemIDs = append(c.LineItemIDs, item.ProductID)
		c.RecordCount++
	}

	components := make([]InflowComponent, 0, len(groups))
	for _, c := range groups {
		c.EffectiveRate = effectiveRate(c.ComputedAmount, c.TotalAmount)
		components = append(components, *c)
	}

	sort.Slice(components, func(i, j int) bool {
		return components[i].FlowKey.less(components[j].FlowKey)
	})

	e.logger.DebugContext(ctx, "inflow components built", "components", len(components))

	return components
}

func flowKey(item domain.LineItem) FlowKey {
	return FlowKey{
		Category:         item.Category,
		ProductType:      item.SubProduct,
		CounterpartyType: item.CounterpartyType,
		MaturityBucket:   item.MaturityBucket,
	}
}

func effectiveRate(computed, total float64) float64 {
	if total == 0 {
		return 0
	}
	return computed / total
}
