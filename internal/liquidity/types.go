package liquidity

import (
	"regliq/pkg/contracts/domain"
)

// OutflowCategory groups cash outflows for LCR reporting
type OutflowCategory string

const (
	OutflowRetail           OutflowCategory = "retail"
	OutflowWholesale        OutflowCategory = "wholesale"
	OutflowSecured          OutflowCategory = "secured"
	OutflowDerivatives      OutflowCategory = "derivatives"
	OutflowOtherContractual OutflowCategory = "other_contractual"
	OutflowOtherContingent  OutflowCategory = "other_contingent"
)

// OutflowCategories lists outflow categories in reporting order
var OutflowCategories = []OutflowCategory{
	OutflowRetail,
	OutflowWholesale,
	OutflowSecured,
	OutflowDerivatives,
	OutflowOtherContractual,
	OutflowOtherContingent,
}

// HQLAResult holds the stock of high-quality liquid assets after haircuts and caps
type HQLAResult struct {
	Level1          float64 `json:"level1"`
	Level2A         float64 `json:"level2a"`          // after the concentration cap
	Level2B         float64 `json:"level2b"`          // after the concentration cap
	Level2AUncapped float64 `json:"level2a_uncapped"` // before the concentration cap
	Level2BUncapped float64 `json:"level2b_uncapped"` // before the concentration cap
	Total           float64 `json:"total"`
}

// OutflowBreakdown holds stressed cash outflows per category
type OutflowBreakdown struct {
	Retail           float64 `json:"retail"`
	Wholesale        float64 `json:"wholesale"`
	Secured          float64 `json:"secured"`
	Derivatives      float64 `json:"derivatives"`
	OtherContractual float64 `json:"other_contractual"`
	OtherContingent  float64 `json:"other_contingent"`
	Total            float64 `json:"total"`
}

// Get returns the amount for a category
func (ob OutflowBreakdown) Get(category OutflowCategory) float64 {
	switch category {
	case OutflowRetail:
		return ob.Retail
	case OutflowWholesale:
		return ob.Wholesale
	case OutflowSecured:
		return ob.Secured
	case OutflowDerivatives:
		return ob.Derivatives
	case OutflowOtherContractual:
		return ob.OtherContractual
	case OutflowOtherContingent:
		return ob.OtherContingent
	default:
		return 0
	}
}

// Add accumulates amount into category and the running total
func (ob *OutflowBreakdown) Add(category OutflowCategory, amount float64) {
	switch category {
	case OutflowRetail:
		ob.Retail += amount
	case OutflowWholesale:
		ob.Wholesale += amount
	case OutflowSecured:
		ob.Secured += amount
	case OutflowDerivatives:
		ob.Derivatives += amount
	case OutflowOtherContractual:
		ob.OtherContractual += amount
	case OutflowOtherContingent:
		ob.OtherContingent += amount
	default:
		return
	}
	ob.Total += amount
}

// LCRResult is the Liquidity Coverage Ratio for one dataset
type LCRResult struct {
	TotalHQLA         float64          `json:"total_hqla"`
	Level1            float64          `json:"level1"`
	Level2A           float64          `json:"level2a"`
	Level2B           float64          `json:"level2b"`
	TotalCashOutflows float64          `json:"total_cash_outflows"`
	TotalCashInflows  float64          `json:"total_cash_inflows"`
	CappedInflows     float64          `json:"capped_inflows"`
	NetCashOutflows   float64          `json:"net_cash_outflows"`
	LCRRatio          float64          `json:"lcr_ratio"`
	IsCompliant       bool             `json:"is_compliant"`
	Outflows          OutflowBreakdown `json:"outflows"`
}

// ASFBreakdown splits available stable funding by source
type ASFBreakdown struct {
	Capital   float64 `json:"capital"`
	Retail    float64 `json:"retail"`
	Wholesale float64 `json:"wholesale"`
	Other     float64 `json:"other"`
	Total     float64 `json:"total"`
}

// RSFBreakdown splits required stable funding by asset type
type RSFBreakdown struct {
	Level1  float64 `json:"level1"`
	Level2A float64 `json:"level2a"`
	Level2B float64 `json:"level2b"`
	Loans   float64 `json:"loans"`
	Other   float64 `json:"other"`
	Total   float64 `json:"total"`
}

// NSFRResult is the Net Stable Funding Ratio for one dataset
type NSFRResult struct {
	AvailableStableFunding float64      `json:"available_stable_funding"`
	RequiredStableFunding  float64      `json:"required_stable_funding"`
	NSFRRatio              float64      `json:"nsfr_ratio"`
	IsCompliant            bool         `json:"is_compliant"`
	ASF                    ASFBreakdown `json:"asf"`
	RSF                    RSFBreakdown `json:"rsf"`
}

// isRetailDeposit reports whether the item is a deposit from a retail counterparty
func isRetailDeposit(item domain.LineItem) bool {
	return item.Category == domain.CategoryDeposits && item.CounterpartyType == domain.CounterpartyRetail
}

// isWholesaleDeposit reports whether the item is a deposit from any non-retail counterparty
func isWholesaleDeposit(item domain.LineItem) bool {
	return item.Category == domain.CategoryDeposits && item.CounterpartyType != domain.CounterpartyRetail
}

// ValidationError represents an invalid calculation parameter
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	return ve.Field + ": " + ve.Message
}
