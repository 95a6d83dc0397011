package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regliq/internal/config"
	apierrors "regliq/internal/errors"
	"regliq/internal/exporter"
	"regliq/internal/liquidity"
	"regliq/internal/middleware"
	"regliq/internal/services"
	"regliq/internal/storage"
	"regliq/internal/storage/memory"
	"regliq/internal/validation"
	api "regliq/pkg/contracts/api/v1"
	"regliq/pkg/contracts/domain"
)

const itemsJSON = `[
	{"product_id":"BOND","category":"securities","maturity_bucket":"gt_1year","currency":"USD","is_hqla":true,"hqla_level":1,"outstanding_balance":1000},
	{"product_id":"DEP","category":"deposits","sub_product":"stable","counterparty_type":"retail","maturity_bucket":"overnight","currency":"USD","outstanding_balance":2000}
]`

const uploadCSV = `row_id,product_id,category,maturity_bucket,counterparty_type,currency,outstanding_balance,is_hqla,hqla_level
r1,BOND,securities,gt_1year,sovereign,USD,1000,true,1
r2,DEP,deposits,overnight,retail,USD,2000,false,
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testServer struct {
	router  http.Handler
	paths   *config.Paths
	service *services.LiquidityService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := testLogger()

	stores := memory.NewStores()
	rules := []validation.ValidationRule{
		{ID: "LE_REGISTERED", Category: validation.CategoryLegalEntity, Name: "Legal entity registered", IsActive: true},
	}
	require.NoError(t, storage.SeedRegistry(ctx, stores.Registry, rules, validation.Registries{LegalEntities: []string{"LE001"}}))

	service, err := services.NewLiquidityService(liquidity.DefaultParameters(), stores, logger)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Paths.BaseDir = t.TempDir()
	paths, err := cfg.ResolvePaths()
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirectories())

	errorHandler := apierrors.NewErrorHandler(logger, false)
	validator := middleware.NewRequestValidator()

	liquidityHandler := NewLiquidityHandler(service, validator, errorHandler, logger)
	submissionHandler := NewSubmissionHandler(service, exporter.NewReportExporter(paths, logger), paths, validator, errorHandler, logger)
	healthHandler := NewHealthHandler(services.NewHealthService(config.StorageMemory, nil, nil, paths.DataDir, logger), logger)

	r := chi.NewRouter()
	r.NotFound(errorHandler.NotFound)
	r.Route("/api/v1", func(r chi.Router) {
		healthHandler.RegisterRoutes(r)
		liquidityHandler.RegisterRoutes(r)
		r.Mount("/submissions", submissionHandler.Routes())
	})

	return &testServer{router: r, paths: paths, service: service}
}

func (s *testServer) do(t *testing.T, method, target, contentType string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) postJSON(t *testing.T, target, body string) *httptest.ResponseRecorder {
	return s.do(t, http.MethodPost, target, "application/json", strings.NewReader(body))
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestLiquidityHandler_Calculations(t *testing.T) {
	srv := newTestServer(t)
	body := `{"items":` + itemsJSON + `}`

	t.Run("lcr", func(t *testing.T) {
		rec := srv.postJSON(t, "/api/v1/lcr", body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		lcr := decode[liquidity.LCRResult](t, rec)
		assert.Equal(t, 1000.0, lcr.TotalHQLA)
		assert.Greater(t, lcr.TotalCashOutflows, 0.0)
	})

	t.Run("nsfr", func(t *testing.T) {
		rec := srv.postJSON(t, "/api/v1/nsfr", body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `"nsfr_ratio"`)
	})

	t.Run("breakdown reconciles", func(t *testing.T) {
		rec := srv.postJSON(t, "/api/v1/breakdown", body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decode[BreakdownResponse](t, rec)
		assert.True(t, resp.Reconciliation.Reconciled)
	})

	t.Run("calculate", func(t *testing.T) {
		rec := srv.postJSON(t, "/api/v1/calculate", body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		calc := decode[services.Calculation](t, rec)
		assert.Equal(t, 1000.0, calc.LCR.TotalHQLA)
		assert.True(t, calc.Reconciliation.Reconciled)
	})
}

func TestLiquidityHandler_InvalidRequests(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantField  string
	}{
		{
			name:       "malformed json",
			body:       `{"items":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "no items",
			body:       `{"items":[]}`,
			wantStatus: http.StatusBadRequest,
			wantField:  "items",
		},
		{
			name:       "missing currency",
			body:       `{"items":[{"product_id":"P","category":"loans","maturity_bucket":"open"}]}`,
			wantStatus: http.StatusBadRequest,
			wantField:  "items[0].currency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.postJSON(t, "/api/v1/lcr", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), `"type":"/errors/`)
			if tt.wantField != "" {
				assert.Contains(t, rec.Body.String(), `"field":"`+tt.wantField+`"`)
			}
		})
	}
}

func TestLiquidityHandler_Validate(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.postJSON(t, "/api/v1/validate", `{
		"legal_entity_id": "LE001",
		"rows": [
			{"id": "r1", "product_id": "BOND"},
			{"id": "r2", "product_id": "DEP", "legal_entity_id": "LE999"}
		]
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	run := decode[validation.RunResult](t, rec)
	assert.Equal(t, 2, run.TotalRows)
	assert.False(t, run.Passed)
	require.NotEmpty(t, run.Errors)
	for _, ve := range run.Errors {
		assert.Equal(t, "r2", ve.RowID, "rows without an entity inherit the request's")
	}
}

func TestSubmissionHandler_Lifecycle(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.postJSON(t, "/api/v1/submissions", `{
		"submission_id": "SUB-1",
		"legal_entity_id": "LE001",
		"report_date": "2024-06-30",
		"items": `+itemsJSON+`
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "/api/v1/submissions/SUB-1", rec.Header().Get("Location"))

	created := decode[services.SubmissionReport](t, rec)
	assert.Equal(t, "calculated", string(created.Submission.Status))
	require.NotNil(t, created.LCR)
	assert.Equal(t, 1000.0, created.LCR.TotalHQLA)
	assert.Equal(t, 2, created.Validation.TotalRows, "rows derived from items")

	rec = srv.do(t, http.MethodGet, "/api/v1/submissions/SUB-1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	fetched := decode[services.SubmissionReport](t, rec)
	assert.Equal(t, created.Submission.ID, fetched.Submission.ID)
	require.NotNil(t, fetched.Reconciliation)
	assert.True(t, fetched.Reconciliation.Reconciled)

	rec = srv.do(t, http.MethodGet, "/api/v1/submissions?legal_entity_id=LE001", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[api.SubmissionList](t, rec)
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, "2024-06-30", list.Submissions[0].ReportDate)

	rec = srv.do(t, http.MethodPost, "/api/v1/submissions/SUB-1/export?format=json", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	export := decode[ExportResponse](t, rec)
	assert.Equal(t, "json", export.Format)
	require.NotEmpty(t, export.Files)
	for _, f := range export.Files {
		_, err := os.Stat(f)
		assert.NoError(t, err, f)
	}

	rec = srv.postJSON(t, "/api/v1/submissions", `{
		"submission_id": "SUB-1",
		"legal_entity_id": "LE001",
		"report_date": "2024-06-30",
		"items": `+itemsJSON+`
	}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSubmissionHandler_ValidationFailed(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.postJSON(t, "/api/v1/submissions", `{
		"legal_entity_id": "LE999",
		"report_date": "2024-06-30",
		"items": `+itemsJSON+`
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	report := decode[services.SubmissionReport](t, rec)
	assert.Equal(t, "validation_failed", string(report.Submission.Status))
	assert.Nil(t, report.LCR)
	assert.NotEmpty(t, report.Submission.ID)
}

func TestSubmissionHandler_CSVUpload(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost,
		"/api/v1/submissions?legal_entity_id=LE001&report_date=2024-06-30&submission_id=CSV-1",
		"text/csv", strings.NewReader(uploadCSV))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	report := decode[services.SubmissionReport](t, rec)
	assert.Equal(t, "CSV-1", report.Submission.ID)
	assert.Equal(t, 2, report.Submission.RowCount)
	assert.Equal(t, "calculated", string(report.Submission.Status))
}

func TestSubmissionHandler_MultipartUpload(t *testing.T) {
	srv := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "positions.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(uploadCSV))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec := srv.do(t, http.MethodPost,
		"/api/v1/submissions?legal_entity_id=LE001&report_date=2024-06-30",
		mw.FormDataContentType(), &buf)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	report := decode[services.SubmissionReport](t, rec)
	assert.Equal(t, 2, report.Validation.TotalRows)
}

func TestSubmissionHandler_Errors(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name        string
		method      string
		target      string
		contentType string
		body        string
		wantStatus  int
	}{
		{
			name:       "unknown submission",
			method:     http.MethodGet,
			target:     "/api/v1/submissions/missing",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "list without legal entity",
			method:     http.MethodGet,
			target:     "/api/v1/submissions",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:        "bad report date",
			method:      http.MethodPost,
			target:      "/api/v1/submissions",
			contentType: "application/json",
			body:        `{"legal_entity_id":"LE001","report_date":"30/06/2024","items":` + itemsJSON + `}`,
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "csv without metadata",
			method:      http.MethodPost,
			target:      "/api/v1/submissions",
			contentType: "text/csv",
			body:        uploadCSV,
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "csv without required columns",
			method:      http.MethodPost,
			target:      "/api/v1/submissions?legal_entity_id=LE001&report_date=2024-06-30",
			contentType: "text/csv",
			body:        "currency\nUSD\n",
			wantStatus:  http.StatusUnprocessableEntity,
		},
		{
			name:        "csv with non-finite amount",
			method:      http.MethodPost,
			target:      "/api/v1/submissions?legal_entity_id=LE001&report_date=2024-06-30&submission_id=NAN-1",
			contentType: "text/csv",
			body:        "product_id,category,outstanding_balance\nBOND,securities,NaN\n",
			wantStatus:  http.StatusUnprocessableEntity,
		},
		{
			name:       "unsupported export format",
			method:     http.MethodPost,
			target:     "/api/v1/submissions/missing/export?format=pdf",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "export unknown submission",
			method:     http.MethodPost,
			target:     "/api/v1/submissions/missing/export",
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(t, tt.method, tt.target, tt.contentType, strings.NewReader(tt.body))
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestSubmissionHandler_LegalEntityPathTraversal(t *testing.T) {
	srv := newTestServer(t)
	const escaped = "../../../escaped"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "positions.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(uploadCSV))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	tests := []struct {
		name        string
		method      string
		target      string
		contentType string
		body        io.Reader
	}{
		{
			name:        "json body",
			method:      http.MethodPost,
			target:      "/api/v1/submissions",
			contentType: "application/json",
			body:        strings.NewReader(`{"legal_entity_id":"` + escaped + `","report_date":"2024-06-30","items":` + itemsJSON + `}`),
		},
		{
			name:        "csv query",
			method:      http.MethodPost,
			target:      "/api/v1/submissions?report_date=2024-06-30&legal_entity_id=..%2F..%2Fescaped",
			contentType: "text/csv",
			body:        strings.NewReader(uploadCSV),
		},
		{
			name:        "multipart query",
			method:      http.MethodPost,
			target:      "/api/v1/submissions?report_date=2024-06-30&legal_entity_id=..%5Cescaped",
			contentType: mw.FormDataContentType(),
			body:        &buf,
		},
		{
			name:   "list query",
			method: http.MethodGet,
			target: "/api/v1/submissions?legal_entity_id=LE.001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(t, tt.method, tt.target, tt.contentType, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"field":"legal_entity_id"`)
		})
	}

	t.Run("export of a stored submission stays in the reports dir", func(t *testing.T) {
		var items []domain.LineItem
		require.NoError(t, json.Unmarshal([]byte(itemsJSON), &items))

		_, err := srv.service.ProcessSubmission(context.Background(), services.SubmissionRequest{
			SubmissionID:  "SUB-ESC",
			LegalEntityID: escaped,
			ReportDate:    time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
			Items:         items,
			Rows:          []validation.Row{{ID: "r1", ProductID: "BOND"}},
		})
		require.NoError(t, err)

		rec := srv.do(t, http.MethodPost, "/api/v1/submissions/SUB-ESC/export?format=json", "", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `"field":"legal_entity_id"`)
		assert.NoDirExists(t, filepath.Join(srv.paths.ReportsDir, escaped))
	})
}

func TestHealthHandler(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		target     string
		wantStatus string
	}{
		{"/api/v1/health", services.StatusOK},
		{"/api/v1/health/ready", services.StatusReady},
		{"/api/v1/health/live", services.StatusAlive},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := srv.do(t, http.MethodGet, tt.target, "", nil)
			require.Equal(t, http.StatusOK, rec.Code)

			status := decode[services.HealthStatus](t, rec)
			assert.Equal(t, tt.wantStatus, status.Status)
		})
	}

	rec := srv.do(t, http.MethodGet, "/api/v1/version", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version"`)
}
