package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regliq/internal/config"
)

const registryYAML = `
rules:
  - id: LE_REGISTERED
    category: legal_entity
    name: Legal entity registered
    is_active: true
legal_entities: [LE001]
`

const submissionJSON = `{
	"submission_id": "APP-1",
	"legal_entity_id": "LE001",
	"report_date": "2024-06-30",
	"items": [
		{"product_id":"BOND","category":"securities","maturity_bucket":"gt_1year","currency":"USD","is_hqla":true,"hqla_level":1,"outstanding_balance":1000},
		{"product_id":"DEP","category":"deposits","sub_product":"stable","counterparty_type":"retail","maturity_bucket":"overnight","currency":"USD","outstanding_balance":2000}
	]
}`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	registry := filepath.Join(base, "registry.yaml")
	require.NoError(t, os.WriteFile(registry, []byte(registryYAML), 0644))

	cfg := config.Default()
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = 5 * time.Second
	cfg.Paths.BaseDir = base
	cfg.Paths.RegistryFile = registry
	cfg.Security.RateLimit.Enabled = false
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *Application {
	t.Helper()
	app, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.OTelProviders.Shutdown(context.Background()) })
	return app
}

func serve(app *Application, method, target, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func TestApplication_SubmissionFlow(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	rec := serve(app, http.MethodPost, "/api/v1/submissions", "application/json", submissionJSON)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rec.Body.String(), `"status":"calculated"`)

	rec = serve(app, http.MethodPost, "/api/v1/submissions/APP-1/export?format=csv", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), filepath.Join("reports", "LE001", "2024-06-30"))

	scrape := serve(app, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, scrape.Code)
	assert.Contains(t, scrape.Body.String(), "submissions_total")
	assert.Contains(t, scrape.Body.String(), "http_requests_total")
}

func TestApplication_RegistrySeeded(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	body := strings.Replace(submissionJSON, `"LE001"`, `"LE002"`, 1)
	rec := serve(app, http.MethodPost, "/api/v1/submissions", "application/json", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"validation_failed"`)
}

func TestApplication_Routing(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	app.WebSocketHub.Start()
	t.Cleanup(app.WebSocketHub.Stop)

	tests := []struct {
		name        string
		method      string
		target      string
		contentType string
		body        string
		want        int
	}{
		{"health", http.MethodGet, "/api/v1/health", "", "", http.StatusOK},
		{"readiness", http.MethodGet, "/api/v1/health/ready", "", "", http.StatusOK},
		{"version", http.MethodGet, "/api/v1/version", "", "", http.StatusOK},
		{"unknown route", http.MethodGet, "/api/v1/nope", "", "", http.StatusNotFound},
		{"wrong method", http.MethodDelete, "/api/v1/lcr", "", "", http.StatusMethodNotAllowed},
		{"unsupported media type", http.MethodPost, "/api/v1/lcr", "application/xml", "<items/>", http.StatusUnsupportedMediaType},
		{"csv on calculation route", http.MethodPost, "/api/v1/lcr", "text/csv", "a,b", http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(app, tt.method, tt.target, tt.contentType, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestApplication_BodyLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.MaxBodyBytes = 64
	app := newTestApp(t, cfg)

	rec := serve(app, http.MethodPost, "/api/v1/submissions", "application/json", submissionJSON)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
}

func TestApplication_InvalidRegistry(t *testing.T) {
	cfg := testConfig(t)
	bad := filepath.Join(t.TempDir(), "registry.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("rules:\n  - id: A\n  - id: A\n"), 0644))
	cfg.Paths.RegistryFile = bad

	_, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load registry")
}

func TestApplication_StartStop(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, app.Start(ctx, cancel))
	assert.Eventually(t, app.WebSocketHub.Running, time.Second, 10*time.Millisecond)

	require.NoError(t, app.Stop(context.Background()))
	assert.False(t, app.WebSocketHub.Running())
	assert.NoError(t, ctx.Err(), "clean shutdown does not cancel the run context")
}
