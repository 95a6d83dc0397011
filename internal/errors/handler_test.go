package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regliq/internal/infrastructure"
	"regliq/internal/liquidity"
	"regliq/internal/services"
	"regliq/internal/storage"
)

func testHandler(includeStack bool) *ErrorHandler {
	return NewErrorHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), includeStack)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"deadline", fmt.Errorf("calculate: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, TypeTimeout},
		{"api error", ErrValidation("report_date", "must be YYYY-MM-DD"), http.StatusBadRequest, TypeValidation},
		{"wrapped api error", fmt.Errorf("decode: %w", ErrRateLimitExceeded), http.StatusTooManyRequests, TypeRateLimit},
		{"parameters", &liquidity.ValidationError{Field: "min_lcr", Message: "must be positive"}, http.StatusBadRequest, TypeInvalidParameters},
		{"submission missing", fmt.Errorf("%w: abc", services.ErrSubmissionNotFound), http.StatusNotFound, TypeSubmissionNotFound},
		{"storage missing", storage.ErrNotFound, http.StatusNotFound, TypeNotFound},
		{"duplicate", fmt.Errorf("create submission: %w", storage.ErrDuplicateKey), http.StatusConflict, TypeSubmissionExists},
		{"invalid submission", fmt.Errorf("%w: no items", services.ErrInvalidSubmission), http.StatusBadRequest, TypeValidation},
		{"body too large", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge, TypePayloadTooLarge},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, TypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/submissions/abc", nil)
			rec := httptest.NewRecorder()

			testHandler(false).HandleError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, float64(tt.wantStatus), body["status"])
			assert.Equal(t, "/api/v1/submissions/abc", body["instance"])
			assert.NotContains(t, body, "stack")
		})
	}
}

func TestErrorHandler_HandleError_Nil(t *testing.T) {
	rec := httptest.NewRecorder()
	testHandler(false).HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Empty(t, rec.Body.String())
}

func TestErrorHandler_ValidationErrorsExtension(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/lcr", nil)
	rec := httptest.NewRecorder()

	testHandler(false).HandleError(rec, req, NewValidationErrors([]ValidationError{
		{Field: "items", Message: "required"},
		{Field: "legal_entity_id", Message: "required"},
	}))

	body := decode(t, rec)
	assert.Equal(t, CodeValidationFailed, body["error_code"])
	errs, ok := body["errors"].([]any)
	require.True(t, ok)
	assert.Len(t, errs, 2)
}

func TestErrorHandler_Correlation(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	ctx := context.WithValue(req.Context(), middleware.RequestIDKey, "req-1")
	ctx = infrastructure.WithTraceID(ctx, "trace-1")
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	testHandler(false).NotFound(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "req-1", body["request_id"])
	assert.Equal(t, "trace-1", body["trace_id"])
}

func TestErrorHandler_Recoverer(t *testing.T) {
	h := testHandler(true).Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "kaboom", body["panic"])
	assert.Contains(t, body, "stack")
}

func TestErrorHandler_MethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	testHandler(false).MethodNotAllowed(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/lcr", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, decode(t, rec)["detail"], "DELETE")
}

func TestProblemDetails_MarshalJSON(t *testing.T) {
	pd := NewProblemDetails(http.StatusConflict, TypeConflict, "Conflict", "", "")
	pd.WithExtension("status", 999)

	data, err := json.Marshal(pd)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, float64(http.StatusConflict), body["status"], "standard members win over extensions")
	assert.NotContains(t, body, "detail")
	assert.NotContains(t, body, "instance")
}
