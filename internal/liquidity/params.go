package liquidity

import (
	"fmt"

	"regliq/pkg/contracts/domain"
)

// Default thresholds and horizons
const (
	DefaultMinLCR               = 1.0
	DefaultMinNSFR              = 1.0
	DefaultShortTermHorizonDays = 30
	DefaultASFShortDays         = 180
	DefaultASFLongDays          = 365
	DefaultRSFLongLoanDays      = 365
)

// HQLAParams holds liquidity-value factors and concentration caps.
// Caps are expressed relative to Level 1 assets.
type HQLAParams struct {
	Level2AFactor   float64 `yaml:"level2a_factor" json:"level2a_factor"`
	Level2BFactor   float64 `yaml:"level2b_factor" json:"level2b_factor"`
	Level2ACapRatio float64 `yaml:"level2a_cap_ratio" json:"level2a_cap_ratio"`
	Level2BCapRatio float64 `yaml:"level2b_cap_ratio" json:"level2b_cap_ratio"`
}

// OutflowParams holds stressed runoff rates
type OutflowParams struct {
	RetailStable           float64 `yaml:"retail_stable" json:"retail_stable"`
	RetailLessStable       float64 `yaml:"retail_less_stable" json:"retail_less_stable"`
	WholesaleOperational   float64 `yaml:"wholesale_operational" json:"wholesale_operational"`
	FinancialInstitution   float64 `yaml:"financial_institution" json:"financial_institution"`
	WholesaleOther         float64 `yaml:"wholesale_other" json:"wholesale_other"`
	ContingentFacilityRate float64 `yaml:"contingent_facility_rate" json:"contingent_facility_rate"`
}

// InflowParams holds inflow rates, the inflow cap and the outflow floor
type InflowParams struct {
	LoanInflowRate    float64 `yaml:"loan_inflow_rate" json:"loan_inflow_rate"`
	OtherInflowRate   float64 `yaml:"other_inflow_rate" json:"other_inflow_rate"`
	InflowCapRatio    float64 `yaml:"inflow_cap_ratio" json:"inflow_cap_ratio"`
	OutflowFloorRatio float64 `yaml:"outflow_floor_ratio" json:"outflow_floor_ratio"`

	// Rates used by the itemized inflow breakdown
	ComponentDefaultRate       float64 `yaml:"component_default_rate" json:"component_default_rate"`
	CentralBankReverseRepoRate float64 `yaml:"central_bank_reverse_repo_rate" json:"central_bank_reverse_repo_rate"`
}

// ASFParams holds available stable funding factors
type ASFParams struct {
	Capital              float64 `yaml:"capital" json:"capital"`
	RetailStable         float64 `yaml:"retail_stable" json:"retail_stable"`
	RetailLessStable     float64 `yaml:"retail_less_stable" json:"retail_less_stable"`
	WholesaleOperational float64 `yaml:"wholesale_operational" json:"wholesale_operational"`
	WholesaleShort       float64 `yaml:"wholesale_short" json:"wholesale_short"`
	WholesaleMedium      float64 `yaml:"wholesale_medium" json:"wholesale_medium"`
	WholesaleLong        float64 `yaml:"wholesale_long" json:"wholesale_long"`
	OtherLiability       float64 `yaml:"other_liability" json:"other_liability"`
	ShortDays            int     `yaml:"short_days" json:"short_days"`
	LongDays             int     `yaml:"long_days" json:"long_days"`
}

// RSFParams holds required stable funding factors
type RSFParams struct {
	Level1             float64           `yaml:"level1" json:"level1"`
	Level2A            float64           `yaml:"level2a" json:"level2a"`
	Level2B            float64           `yaml:"level2b" json:"level2b"`
	LongRetailLoans    float64           `yaml:"long_retail_loans" json:"long_retail_loans"`
	OtherLoans         float64           `yaml:"other_loans" json:"other_loans"`
	Securities         float64           `yaml:"securities" json:"securities"`
	Derivatives        float64           `yaml:"derivatives" json:"derivatives"`
	Facilities         float64           `yaml:"facilities" json:"facilities"`
	CashLike           float64           `yaml:"cash_like" json:"cash_like"`
	NonLiquidAssets    float64           `yaml:"non_liquid_assets" json:"non_liquid_assets"`
	Unclassified       float64           `yaml:"unclassified" json:"unclassified"`
	LongLoanDays       int               `yaml:"long_loan_days" json:"long_loan_days"`
	ExcludedCategories []domain.Category `yaml:"excluded_categories" json:"excluded_categories"`
}

// Parameters is the full set of regulatory rates used by the calculators
// and the breakdown engine.
type Parameters struct {
	HQLA                 HQLAParams    `yaml:"hqla" json:"hqla"`
	Outflows             OutflowParams `yaml:"outflows" json:"outflows"`
	Inflows              InflowParams  `yaml:"inflows" json:"inflows"`
	ASF                  ASFParams     `yaml:"asf" json:"asf"`
	RSF                  RSFParams     `yaml:"rsf" json:"rsf"`
	ShortTermHorizonDays int           `yaml:"short_term_horizon_days" json:"short_term_horizon_days"`
	MinLCR               float64       `yaml:"min_lcr" json:"min_lcr"`
	MinNSFR              float64       `yaml:"min_nsfr" json:"min_nsfr"`
}

// DefaultParameters returns the Basel III rates
func DefaultParameters() Parameters {
	return Parameters{
		HQLA: HQLAParams{
			Level2AFactor:   0.85,
			Level2BFactor:   0.50,
			Level2ACapRatio: 2.0 / 3.0,
			Level2BCapRatio: 15.0 / 85.0,
		},
		Outflows: OutflowParams{
			RetailStable:           0.03,
			RetailLessStable:       0.10,
			WholesaleOperational:   0.25,
			FinancialInstitution:   1.00,
			WholesaleOther:         0.40,
			ContingentFacilityRate: 0.05,
		},
		Inflows: InflowParams{
			LoanInflowRate:             0.50,
			OtherInflowRate:            1.00,
			InflowCapRatio:             0.75,
			OutflowFloorRatio:          0.25,
			ComponentDefaultRate:       0.50,
			CentralBankReverseRepoRate: 1.00,
		},
		ASF: ASFParams{
			Capital:              1.00,
			RetailStable:         0.95,
			RetailLessStable:     0.90,
			WholesaleOperational: 0.50,
			WholesaleShort:       0.00,
			WholesaleMedium:      0.50,
			WholesaleLong:        1.00,
			OtherLiability:       0.00,
			ShortDays:            DefaultASFShortDays,
			LongDays:             DefaultASFLongDays,
		},
		RSF: RSFParams{
			Level1:             0.00,
			Level2A:            0.15,
			Level2B:            0.50,
			LongRetailLoans:    0.65,
			OtherLoans:         0.85,
			Securities:         0.85,
			Derivatives:        1.00,
			Facilities:         0.05,
			CashLike:           0.00,
			NonLiquidAssets:    1.00,
			Unclassified:       1.00,
			LongLoanDays:       DefaultRSFLongLoanDays,
			ExcludedCategories: []domain.Category{domain.CategoryDeposits, domain.CategoryCapital},
		},
		ShortTermHorizonDays: DefaultShortTermHorizonDays,
		MinLCR:               DefaultMinLCR,
		MinNSFR:              DefaultMinNSFR,
	}
}

// IsExcludedFromRSF reports whether a category is outside the RSF scope
func (p Parameters) IsExcludedFromRSF(category domain.Category) bool {
	for _, excluded := range p.RSF.ExcludedCategories {
		if excluded == category {
			return true
		}
	}
	return false
}

// Validate checks every rate lies in [0,1] and that caps and thresholds are positive
func (p Parameters) Validate() error {
	rates := []struct {
		field string
		value float64
	}{
		{"hqla.level2a_factor", p.HQLA.Level2AFactor},
		{"hqla.level2b_factor", p.HQLA.Level2BFactor},
		{"outflows.retail_stable", p.Outflows.RetailStable},
		{"outflows.retail_less_stable", p.Outflows.RetailLessStable},
		{"outflows.wholesale_operational", p.Outflows.WholesaleOperational},
		{"outflows.financial_institution", p.Outflows.FinancialInstitution},
		{"outflows.wholesale_other", p.Outflows.WholesaleOther},
		{"outflows.contingent_facility_rate", p.Outflows.ContingentFacilityRate},
		{"inflows.loan_inflow_rate", p.Inflows.LoanInflowRate},
		{"inflows.other_inflow_rate", p.Inflows.OtherInflowRate},
		{"inflows.inflow_cap_ratio", p.Inflows.InflowCapRatio},
		{"inflows.outflow_floor_ratio", p.Inflows.OutflowFloorRatio},
		{"inflows.component_default_rate", p.Inflows.ComponentDefaultRate},
		{"inflows.central_bank_reverse_repo_rate", p.Inflows.CentralBankReverseRepoRate},
		{"asf.capital", p.ASF.Capital},
		{"asf.retail_stable", p.ASF.RetailStable},
		{"asf.retail_less_stable", p.ASF.RetailLessStable},
		{"asf.wholesale_operational", p.ASF.WholesaleOperational},
		{"asf.wholesale_short", p.ASF.WholesaleShort},
		{"asf.wholesale_medium", p.ASF.WholesaleMedium},
		{"asf.wholesale_long", p.ASF.WholesaleLong},
		{"asf.other_liability", p.ASF.OtherLiability},
		{"rsf.level1", p.RSF.Level1},
		{"rsf.level2a", p.RSF.Level2A},
		{"rsf.level2b", p.RSF.Level2B},
		{"rsf.long_retail_loans", p.RSF.LongRetailLoans},
		{"rsf.other_loans", p.RSF.OtherLoans},
		{"rsf.securities", p.RSF.Securities},
		{"rsf.derivatives", p.RSF.Derivatives},
		{"rsf.facilities", p.RSF.Facilities},
		{"rsf.cash_like", p.RSF.CashLike},
		{"rsf.non_liquid_assets", p.RSF.NonLiquidAssets},
		{"rsf.unclassified", p.RSF.Unclassified},
	}

	for _, r := range rates {
		if r.value < 0 || r.value > 1 {
			return &ValidationError{
				Field:   r.field,
				Message: "rate must be between 0 and 1",
				Value:   r.value,
			}
		}
	}

	if p.HQLA.Level2ACapRatio <= 0 {
		return &ValidationError{Field: "hqla.level2a_cap_ratio", Message: "cap ratio must be positive", Value: p.HQLA.Level2ACapRatio}
	}
	if p.HQLA.Level2BCapRatio <= 0 {
		return &ValidationError{Field: "hqla.level2b_cap_ratio", Message: "cap ratio must be positive", Value: p.HQLA.Level2BCapRatio}
	}
	if p.MinLCR <= 0 {
		return &ValidationError{Field: "min_lcr", Message: "compliance threshold must be positive", Value: p.MinLCR}
	}
	if p.MinNSFR <= 0 {
		return &ValidationError{Field: "min_nsfr", Message: "compliance threshold must be positive", Value: p.MinNSFR}
	}
	if p.ShortTermHorizonDays <= 0 {
		return &ValidationError{Field: "short_term_horizon_days", Message: "horizon must be positive", Value: p.ShortTermHorizonDays}
	}
	if p.ASF.ShortDays <= 0 || p.ASF.LongDays <= p.ASF.ShortDays {
		return &ValidationError{
			Field:   "asf.short_days",
			Message: "maturity bands must be positive and increasing",
			Value:   map[string]int{"short": p.ASF.ShortDays, "long": p.ASF.LongDays},
		}
	}
	if p.RSF.LongLoanDays <= 0 {
		return &ValidationError{Field: "rsf.long_loan_days", Message: "long loan threshold must be positive", Value: p.RSF.LongLoanDays}
	}
	for _, c := range p.RSF.ExcludedCategories {
		if !c.IsValid() {
			return &ValidationError{Field: "rsf.excluded_categories", Message: fmt.Sprintf("unknown category %q", c), Value: c}
		}
	}

	return nil
}
