// Package breakdown produces itemized HQLA, outflow and inflow components
// and reconciles them with the LCR calculator.
package breakdown

import (
	"regliq/internal/liquidity"
	"regliq/pkg/contracts/domain"
)

// HQLAKey groups liquid assets for itemized reporting
type HQLAKey struct {
	Level      domain.HQLALevel `json:"level"`
	Category   domain.Category  `json:"category"`
	AssetClass string           `json:"asset_class"`
}

func (k HQLAKey) less(o HQLAKey) bool {
	if k.Level != o.Level {
		return k.Level < o.Level
	}
	if k.Category != o.Category {
		return k.Category < o.Category
	}
	return k.AssetClass < o.AssetClass
}

// FlowKey groups cash flows for itemized reporting
type FlowKey struct {
	Category         domain.Category         `json:"category"`
	ProductType      string                  `json:"product_type"`
	CounterpartyType domain.CounterpartyType `json:"counterparty_type"`
	MaturityBucket   domain.MaturityBucket   `json:"maturity_bucket"`
}

func (k FlowKey) less(o FlowKey) bool {
	if k.Category != o.Category {
		return k.Category < o.Category
	}
	if k.ProductType != o.ProductType {
		return k.ProductType < o.ProductType
	}
	if k.CounterpartyType != o.CounterpartyType {
		return k.CounterpartyType < o.CounterpartyType
	}
	return k.MaturityBucket < o.MaturityBucket
}

// HQLAComponent is the itemized detail of one group of liquid assets
type HQLAComponent struct {
	HQLAKey
	TotalAmount            float64  `json:"total_amount"`
	EncumberedAmount       float64  `json:"encumbered_amount"`
	AverageHaircut         float64  `json:"average_haircut"`
	AmountAfterHaircut     float64  `json:"amount_after_haircut"`
	LiquidityValueFactor   float64  `json:"liquidity_value_factor"`
	UncappedLiquidityValue float64  `json:"uncapped_liquidity_value"`
	CapAdjustment          float64  `json:"cap_adjustment"`
	LiquidityValue         float64  `json:"liquidity_value"`
	Methodology            string   `json:"methodology"`
	RegulatoryReference    string   `json:"regulatory_reference"`
	LineItemIDs            []string `json:"line_item_ids"`
	RecordCount            int      `json:"record_count"`
}

// OutflowComponent is the itemized detail of one group of stressed outflows
type OutflowComponent struct {
	FlowKey
	OutflowCategory     liquidity.OutflowCategory `json:"outflow_category"`
	TotalAmount         float64                   `json:"total_amount"`
	EffectiveRate       float64                   `json:"effective_rate"`
	ComputedAmount      float64                   `json:"computed_amount"`
	Methodology         string                    `json:"methodology"`
	RegulatoryReference string                    `json:"regulatory_reference"`
	LineItemIDs         []string                  `json:"line_item_ids"`
	RecordCount         int                       `json:"record_count"`
}

// InflowComponent is the itemized detail of one group of contractual inflows
type InflowComponent struct {
	FlowKey
	TotalAmount         float64  `json:"total_amount"`
	EffectiveRate       float64  `json:"effective_rate"`
	ComputedAmount      float64  `json:"computed_amount"`
	Methodology         string   `json:"methodology"`
	RegulatoryReference string   `json:"regulatory_reference"`
	LineItemIDs         []string `json:"line_item_ids"`
	RecordCount         int      `json:"record_count"`
}

// Result holds every component list of one breakdown pass with their totals
type Result struct {
	HQLA     []HQLAComponent    `json:"hqla"`
	Outflows []OutflowComponent `json:"outflows"`
	Inflows  []InflowComponent  `json:"inflows"`
	Totals   Totals             `json:"totals"`
}

// Totals are the component sums used for reconciliation
type Totals struct {
	HQLA     float64                    `json:"hqla"`
	Outflows liquidity.OutflowBreakdown `json:"outflows"`
	Inflows  float64                    `json:"inflows"`
}

// Regulatory reference codes attached to components (Basel Framework, LCR standard)
const (
	RefLevel1           = "LCR30.41"
	RefLevel2A          = "LCR30.43"
	RefLevel2B          = "LCR30.46"
	RefRetailDeposits   = "LCR40.4"
	RefWholesaleFunding = "LCR40.15"
	RefSecuredFunding   = "LCR40.37"
	RefDerivatives      = "LCR40.44"
	RefOtherContractual = "LCR40.80"
	RefFacilities       = "LCR40.48"
	RefInflows          = "LCR40.81"
)
