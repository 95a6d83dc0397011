package validation

import (
	"time"
)

// Severity ranks a validation finding. Only SeverityError fails a run.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// RuleCategory selects the evaluator a rule is dispatched to
type RuleCategory string

const (
	CategoryEnumeration     RuleCategory = "enumeration"
	CategoryDataType        RuleCategory = "data_type"
	CategoryCrossField      RuleCategory = "cross_field"
	CategoryFieldDependency RuleCategory = "field_dependency"
	CategoryDuplicate       RuleCategory = "duplicate"
	CategoryLegalEntity     RuleCategory = "legal_entity"
)

// RuleCategories lists every category the engine can evaluate
var RuleCategories = []RuleCategory{
	CategoryEnumeration,
	CategoryDataType,
	CategoryCrossField,
	CategoryFieldDependency,
	CategoryDuplicate,
	CategoryLegalEntity,
}

// IsValid checks the category against the known set
func (c RuleCategory) IsValid() bool {
	_, ok := evaluators[c]
	return ok
}

// ValidationRule is one entry of the rule registry
type ValidationRule struct {
	ID          string       `json:"id" yaml:"id" db:"id"`
	Category    RuleCategory `json:"category" yaml:"category" db:"category"`
	Name        string       `json:"name" yaml:"name" db:"name"`
	TargetField string       `json:"target_field,omitempty" yaml:"target_field" db:"target_field"`
	IsActive    bool         `json:"is_active" yaml:"is_active" db:"is_active"`
}

// ValidationError is a single finding against a row
type ValidationError struct {
	SubmissionID  string   `json:"submission_id" db:"submission_id"`
	RowID         string   `json:"row_id,omitempty" db:"row_id"`
	RuleID        string   `json:"rule_id" db:"rule_id"`
	ErrorType     string   `json:"error_type" db:"error_type"`
	Message       string   `json:"message" db:"message"`
	FieldName     string   `json:"field_name,omitempty" db:"field_name"`
	ExpectedValue string   `json:"expected_value,omitempty" db:"expected_value"`
	ActualValue   string   `json:"actual_value,omitempty" db:"actual_value"`
	Severity      Severity `json:"severity" db:"severity"`
}

// RuleExecutionStat summarizes one rule's pass over the dataset.
// RowsFailed counts errors, so a row flagged twice by one rule counts twice;
// DistinctRowsFailed counts offending rows.
type RuleExecutionStat struct {
	RuleID             string       `json:"rule_id" db:"rule_id"`
	Name               string       `json:"name" db:"name"`
	Category           RuleCategory `json:"category" db:"category"`
	RowsChecked        int          `json:"rows_checked" db:"rows_checked"`
	RowsPassed         int          `json:"rows_passed" db:"rows_passed"`
	RowsFailed         int          `json:"rows_failed" db:"rows_failed"`
	DistinctRowsFailed int          `json:"distinct_rows_failed" db:"distinct_rows_failed"`
	ExecutionTimeMs    int64        `json:"execution_time_ms" db:"execution_time_ms"`
	Notes              string       `json:"notes,omitempty" db:"notes"`
}

// RunResult is the complete outcome of one validation pass
type RunResult struct {
	SubmissionID   string              `json:"submission_id"`
	TotalRows      int                 `json:"total_rows"`
	ValidRows      int                 `json:"valid_rows"`
	ErrorRows      int                 `json:"error_rows"`
	Errors         []ValidationError   `json:"errors"`
	RuleExecutions []RuleExecutionStat `json:"rule_executions"`
	Passed         bool                `json:"passed"`
	Warnings       []string            `json:"warnings,omitempty"`
	StartedAt      time.Time           `json:"started_at"`
	CompletedAt    time.Time           `json:"completed_at"`
}

// CountBySeverity returns the number of findings per severity
func (r RunResult) CountBySeverity() map[Severity]int {
	counts := make(map[Severity]int)
	for _, e := range r.Errors {
		counts[e.Severity]++
	}
	return counts
}

// Row is one raw reporting row as submitted, before conversion to line items
type Row struct {
	ID                   string            `json:"id"`
	LegalEntityID        string            `json:"legal_entity_id"`
	ProductID            string            `json:"product_id"`
	SubProduct           string            `json:"sub_product"`
	CounterpartyID       string            `json:"counterparty_id"`
	MaturityBucket       string            `json:"maturity_bucket"`
	Currency             string            `json:"currency"`
	MarketValue          *float64          `json:"market_value,omitempty"`
	LendableValue        *float64          `json:"lendable_value,omitempty"`
	InternalFlag         bool              `json:"internal_flag"`
	InternalCounterparty string            `json:"internal_counterparty"`
	Attributes           map[string]string `json:"attributes,omitempty"`
}

// Field returns a named field as a string. Names outside the fixed
// columns are looked up in Attributes.
func (r Row) Field(name string) string {
	switch name {
	case "id":
		return r.ID
	case "legal_entity_id":
		return r.LegalEntityID
	case "product_id":
		return r.ProductID
	case "sub_product":
		return r.SubProduct
	case "counterparty_id":
		return r.CounterpartyID
	case "maturity_bucket":
		return r.MaturityBucket
	case "currency":
		return r.Currency
	case "internal_counterparty":
		return r.InternalCounterparty
	default:
		return r.Attributes[name]
	}
}

// Registries are the externally supplied reference sets used by evaluators
type Registries struct {
	// AllowedValues maps a field name to its permitted values
	AllowedValues map[string][]string `json:"allowed_values" yaml:"allowed_values"`
	LegalEntities []string            `json:"legal_entities" yaml:"legal_entities"`
}

// Input is everything a validation pass needs
type Input struct {
	SubmissionID string
	Rows         []Row
	Rules        []ValidationRule
	Registries   Registries
}
