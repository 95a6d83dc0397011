package http

import (
	"fmt"
	"net/http"
	"time"

	apierrors "regliq/internal/errors"
	"regliq/internal/validation"
	api "regliq/pkg/contracts/api/v1"
)

// parseReportDate parses an optional YYYY-MM-DD date
func parseReportDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(api.DateFormat, value)
	if err != nil {
		return time.Time{}, apierrors.ErrValidation(field, fmt.Sprintf("%s must be a date in the format YYYY-MM-DD", field))
	}
	return t, nil
}

// toRows converts wire rows to validation rows
func toRows(in []api.ValidationRow) []validation.Row {
	if in == nil {
		return nil
	}
	out := make([]validation.Row, len(in))
	for i, r := range in {
		out[i] = validation.Row{
			ID:                   r.ID,
			LegalEntityID:        r.LegalEntityID,
			ProductID:            r.ProductID,
			SubProduct:           r.SubProduct,
			CounterpartyID:       r.CounterpartyID,
			MaturityBucket:       r.MaturityBucket,
			Currency:             r.Currency,
			MarketValue:          r.MarketValue,
			LendableValue:        r.LendableValue,
			InternalFlag:         r.InternalFlag,
			InternalCounterparty: r.InternalCounterparty,
			Attributes:           r.Attributes,
		}
	}
	return out
}

// uploadParams reads the query parameters of a file upload
func uploadParams(r *http.Request) api.SubmissionUploadParams {
	q := r.URL.Query()
	return api.SubmissionUploadParams{
		SubmissionID:  q.Get("submission_id"),
		LegalEntityID: q.Get("legal_entity_id"),
		ReportDate:    q.Get("report_date"),
	}
}
