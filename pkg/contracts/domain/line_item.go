package domain

import (
	"time"
)

// LineItem is a single position-level record for one legal entity and reporting date.
// It is read-only for the duration of a calculation pass.
type LineItem struct {
	ProductID                    string           `json:"product_id" db:"product_id" validate:"required"`
	Category                     Category         `json:"category" db:"category" validate:"required"`
	SubProduct                   string           `json:"sub_product,omitempty" db:"sub_product"`
	MaturityBucket               MaturityBucket   `json:"maturity_bucket" db:"maturity_bucket" validate:"required"`
	CounterpartyType             CounterpartyType `json:"counterparty_type" db:"counterparty_type"`
	AssetClass                   string           `json:"asset_class,omitempty" db:"asset_class"`
	Currency                     string           `json:"currency" db:"currency" validate:"required,iso4217"`
	OutstandingBalance           float64          `json:"outstanding_balance" db:"outstanding_balance"`
	ProjectedCashInflow          float64          `json:"projected_cash_inflow" db:"projected_cash_inflow"`
	ProjectedCashOutflow         float64          `json:"projected_cash_outflow" db:"projected_cash_outflow"`
	IsHQLA                       bool             `json:"is_hqla" db:"is_hqla"`
	HQLALevel                    HQLALevel        `json:"hqla_level,omitempty" db:"hqla_level" validate:"omitempty,min=1,max=3"`
	Haircut                      float64          `json:"haircut" db:"haircut" validate:"min=0,max=1"`
	RunoffRate                   *float64         `json:"runoff_rate,omitempty" db:"runoff_rate"`
	RequiredStableFundingFactor  *float64         `json:"required_stable_funding_factor,omitempty" db:"rsf_factor"`
	AvailableStableFundingFactor *float64         `json:"available_stable_funding_factor,omitempty" db:"asf_factor"`
	EncumberedAmount             float64          `json:"encumbered_amount" db:"encumbered_amount"`
	InternalRating               string           `json:"internal_rating,omitempty" db:"internal_rating"`
	ReportDate                   time.Time        `json:"report_date" db:"report_date"`
}

// MaturesWithin reports whether the item's remaining maturity is at most days.
func (li LineItem) MaturesWithin(days int) bool {
	return li.MaturityBucket.Days() <= days
}

// Category is the product family of a line item
type Category string

const (
	CategoryDeposits            Category = "deposits"
	CategoryLoans               Category = "loans"
	CategorySecurities          Category = "securities"
	CategoryDerivatives         Category = "derivatives"
	CategorySecuredFunding      Category = "secured_funding"
	CategoryCreditFacilities    Category = "credit_facilities"
	CategoryLiquidityFacilities Category = "liquidity_facilities"
	CategoryCapital             Category = "capital"
	CategoryOtherAssets         Category = "other_assets"
	CategoryOtherLiabilities    Category = "other_liabilities"
)

// Categories lists every known category in reporting order
var Categories = []Category{
	CategoryDeposits,
	CategoryLoans,
	CategorySecurities,
	CategoryDerivatives,
	CategorySecuredFunding,
	CategoryCreditFacilities,
	CategoryLiquidityFacilities,
	CategoryCapital,
	CategoryOtherAssets,
	CategoryOtherLiabilities,
}

// IsValid checks the category against the known set
func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// IsFacility reports whether the category is a committed credit or liquidity facility
func (c Category) IsFacility() bool {
	return c == CategoryCreditFacilities || c == CategoryLiquidityFacilities
}

// MaturityBucket is the residual maturity band of a position
type MaturityBucket string

const (
	MaturityOvernight   MaturityBucket = "overnight"
	Maturity2To7Days    MaturityBucket = "2_7days"
	Maturity8To30Days   MaturityBucket = "8_30days"
	Maturity31To90Days  MaturityBucket = "31_90days"
	Maturity91To180Days MaturityBucket = "91_180days"
	Maturity181To365    MaturityBucket = "181_365days"
	MaturityOver1Year   MaturityBucket = "gt_1year"
	MaturityOpen        MaturityBucket = "open"
)

// maturityDays holds the minimum remaining maturity of each bucket.
// Open maturity positions are callable on demand.
var maturityDays = map[MaturityBucket]int{
	MaturityOvernight:   0,
	Maturity2To7Days:    2,
	Maturity8To30Days:   8,
	Maturity31To90Days:  31,
	Maturity91To180Days: 91,
	Maturity181To365:    181,
	MaturityOver1Year:   366,
	MaturityOpen:        0,
}

// Days returns the minimum remaining maturity in days. Unknown buckets are
// treated as longer than one year.
func (m MaturityBucket) Days() int {
	if d, ok := maturityDays[m]; ok {
		return d
	}
	return maturityDays[MaturityOver1Year]
}

// IsValid checks the bucket against the known set
func (m MaturityBucket) IsValid() bool {
	_, ok := maturityDays[m]
	return ok
}

// CounterpartyType classifies the other side of a position
type CounterpartyType string

const (
	CounterpartyRetail               CounterpartyType = "retail"
	CounterpartySmallBusiness        CounterpartyType = "small_business"
	CounterpartyWholesale            CounterpartyType = "wholesale"
	CounterpartyCorporate            CounterpartyType = "corporate"
	CounterpartyFinancialInstitution CounterpartyType = "financial_institution"
	CounterpartySovereign            CounterpartyType = "sovereign"
	CounterpartyCentralBank          CounterpartyType = "central_bank"
	CounterpartyOther                CounterpartyType = "other"
)

// HQLALevel is the liquidity tier of an eligible asset. Zero means no level.
type HQLALevel int

const (
	HQLALevelNone HQLALevel = 0
	HQLALevel1    HQLALevel = 1
	HQLALevel2A   HQLALevel = 2
	HQLALevel2B   HQLALevel = 3
)

// String returns the reporting label of the level
func (l HQLALevel) String() string {
	switch l {
	case HQLALevel1:
		return "level1"
	case HQLALevel2A:
		return "level2a"
	case HQLALevel2B:
		return "level2b"
	default:
		return "none"
	}
}

// Well-known sub-product codes referenced by the regulatory treatments
const (
	SubProductStable              = "stable"
	SubProductLessStable          = "less_stable"
	SubProductOperational         = "operational"
	SubProductMortgage            = "mortgage"
	SubProductConsumer            = "consumer"
	SubProductCash                = "cash"
	SubProductCentralBankReserves = "central_bank_reserves"
	SubProductFixedAssets         = "fixed_assets"
	SubProductIntangibles         = "intangibles"
	SubProductReverseRepo         = "reverse_repo"
)
