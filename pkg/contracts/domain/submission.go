package domain

import (
	"time"
)

// Submission is one regulatory reporting package for a legal entity and date
type Submission struct {
	ID            string           `json:"id" db:"id" validate:"required"`
	LegalEntityID string           `json:"legal_entity_id" db:"legal_entity_id" validate:"required"`
	ReportDate    time.Time        `json:"report_date" db:"report_date"`
	Status        SubmissionStatus `json:"status" db:"status"`
	ErrorMessage  string           `json:"error_message,omitempty" db:"error_message"`
	RowCount      int              `json:"row_count" db:"row_count"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at" db:"updated_at"`
}

// SubmissionStatus represents where a submission is in its lifecycle
type SubmissionStatus string

const (
	SubmissionStatusPending          SubmissionStatus = "pending"
	SubmissionStatusValidating       SubmissionStatus = "validating"
	SubmissionStatusValidationFailed SubmissionStatus = "validation_failed"
	SubmissionStatusCalculating      SubmissionStatus = "calculating"
	SubmissionStatusCalculated       SubmissionStatus = "calculated"
	SubmissionStatusFailed           SubmissionStatus = "failed"
)

// IsTerminal reports whether no further transitions are expected
func (s SubmissionStatus) IsTerminal() bool {
	switch s {
	case SubmissionStatusValidationFailed, SubmissionStatusCalculated, SubmissionStatusFailed:
		return true
	default:
		return false
	}
}
