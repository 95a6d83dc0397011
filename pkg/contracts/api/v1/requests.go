// Package api contains the HTTP API contract of the liquidity engine.
// Version v1 represents the current stable API version.
package api

import (
	"regliq/pkg/contracts/domain"
)

// DateFormat is the wire format of report dates
const DateFormat = "2006-01-02"

// CalculationRequest carries line items for a stateless LCR, NSFR or breakdown calculation
type CalculationRequest struct {
	LegalEntityID string            `json:"legal_entity_id,omitempty"`
	ReportDate    string            `json:"report_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Items         []domain.LineItem `json:"items" validate:"required,min=1,dive"`
}

// ValidationRow is one raw reporting row submitted for validation
type ValidationRow struct {
	ID                   string            `json:"id" validate:"required"`
	LegalEntityID        string            `json:"legal_entity_id,omitempty"`
	ProductID            string            `json:"product_id,omitempty"`
	SubProduct           string            `json:"sub_product,omitempty"`
	CounterpartyID       string            `json:"counterparty_id,omitempty"`
	MaturityBucket       string            `json:"maturity_bucket,omitempty"`
	Currency             string            `json:"currency,omitempty"`
	MarketValue          *float64          `json:"market_value,omitempty"`
	LendableValue        *float64          `json:"lendable_value,omitempty"`
	InternalFlag         bool              `json:"internal_flag,omitempty"`
	InternalCounterparty string            `json:"internal_counterparty,omitempty"`
	Attributes           map[string]string `json:"attributes,omitempty"`
}

// ValidationRequest runs the registry rules over rows without persisting anything
type ValidationRequest struct {
	SubmissionID  string          `json:"submission_id,omitempty"`
	LegalEntityID string          `json:"legal_entity_id,omitempty"`
	Rows          []ValidationRow `json:"rows" validate:"required,min=1,dive"`
}

// SubmissionRequest creates and processes a submission from JSON.
// Rows are optional; when absent they are derived from the items.
type SubmissionRequest struct {
	SubmissionID  string            `json:"submission_id,omitempty" validate:"omitempty,max=64"`
	LegalEntityID string            `json:"legal_entity_id" validate:"required,max=64,excludesall=./\\"`
	ReportDate    string            `json:"report_date" validate:"required,datetime=2006-01-02"`
	Items         []domain.LineItem `json:"items" validate:"required,min=1,dive"`
	Rows          []ValidationRow   `json:"rows,omitempty" validate:"omitempty,dive"`
}

// SubmissionUploadParams are the query parameters of a CSV or XLSX upload
type SubmissionUploadParams struct {
	SubmissionID  string `json:"submission_id" validate:"omitempty,max=64"`
	LegalEntityID string `json:"legal_entity_id" validate:"required,max=64,excludesall=./\\"`
	ReportDate    string `json:"report_date" validate:"required,datetime=2006-01-02"`
}

// ListSubmissionsParams are the query parameters of the submission listing
type ListSubmissionsParams struct {
	LegalEntityID string `json:"legal_entity_id" validate:"required,max=64,excludesall=./\\"`
}
