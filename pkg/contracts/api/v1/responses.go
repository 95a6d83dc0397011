package api

import (
	"time"

	"regliq/pkg/contracts/domain"
)

// SubmissionSummary is the condensed view of a submission used in listings
// and status responses.
type SubmissionSummary struct {
	ID            string                  `json:"id"`
	LegalEntityID string                  `json:"legal_entity_id"`
	ReportDate    string                  `json:"report_date"`
	Status        domain.SubmissionStatus `json:"status"`
	ErrorMessage  string                  `json:"error_message,omitempty"`
	RowCount      int                     `json:"row_count"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

// NewSubmissionSummary converts a domain submission
func NewSubmissionSummary(s domain.Submission) SubmissionSummary {
	summary := SubmissionSummary{
		ID:            s.ID,
		LegalEntityID: s.LegalEntityID,
		Status:        s.Status,
		ErrorMessage:  s.ErrorMessage,
		RowCount:      s.RowCount,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
	if !s.ReportDate.IsZero() {
		summary.ReportDate = s.ReportDate.Format(DateFormat)
	}
	return summary
}

// SubmissionList is the response of the submission listing
type SubmissionList struct {
	LegalEntityID string              `json:"legal_entity_id"`
	Count         int                 `json:"count"`
	Submissions   []SubmissionSummary `json:"submissions"`
}
