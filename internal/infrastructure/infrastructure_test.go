package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regliq/internal/config"
)

func TestNewLogger_InjectsTraceID(t *testing.T) {
	var buf bytes.Buffer
	logger, file, err := NewLogger(config.LoggingConfig{Level: "debug", Output: "console"}, &buf)
	require.NoError(t, err)
	assert.Nil(t, file)

	ctx := WithTraceID(context.Background(), "trace-123")
	logger.DebugContext(ctx, "hello", slog.String("k", "v"))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "hello", record["msg"])
	assert.Equal(t, "trace-123", record["trace_id"])
	assert.Equal(t, "v", record["k"])
}

func TestNewLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := NewLogger(config.LoggingConfig{Level: "warn", Output: "console"}, &buf)
	require.NoError(t, err)

	logger.Info("dropped")
	assert.Empty(t, buf.String())

	logger.With("component", "test").Warn("kept")
	assert.Contains(t, buf.String(), `"component":"test"`)
}

func TestNewLogger_FileOutput(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "app.log")

	logger, file, err := NewLogger(config.LoggingConfig{Level: "info", Output: "both", FilePath: path}, &buf)
	require.NoError(t, err)
	require.NotNil(t, file)

	logger.Info("written twice")
	require.NoError(t, file.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written twice")
	assert.Contains(t, buf.String(), "written twice")
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), in)
	}
}

// resetLogger clears the process-wide logger between tests
func resetLogger() {
	_ = CloseLogFile()
	globalLogger = nil
	globalLoggerOnce = sync.Once{}
}

func TestInitializeLogger_Once(t *testing.T) {
	resetLogger()
	defer resetLogger()

	first, err := InitializeLogger(config.LoggingConfig{Level: "info", Output: "console"})
	require.NoError(t, err)
	second, err := InitializeLogger(config.LoggingConfig{Level: "debug", Output: "console"})
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Same(t, first, GetLogger())
}

func TestEnsureTraceID(t *testing.T) {
	ctx := EnsureTraceID(context.Background())
	id := GetTraceID(ctx)
	assert.Len(t, id, 36)

	assert.Equal(t, id, GetTraceID(EnsureTraceID(ctx)), "existing id kept")
	assert.Empty(t, GetTraceID(context.Background()))
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	WithComponent(logger, "exporter").Info("report table written")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "exporter", entry["component"])
}

func TestInitializeOTel(t *testing.T) {
	providers, err := InitializeOTel(config.TelemetryConfig{
		Environment:    "test",
		TraceExporter:  "none",
		MetricExporter: "prometheus",
		SampleRatio:    1,
	}, nil)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	require.NotNil(t, providers.PrometheusHTTP)
	assert.Nil(t, providers.TracerProvider)
	assert.NotNil(t, providers.Tracer, "disabled tracing gets a no-op tracer")

	metrics, err := CreateLiquidityMetrics(providers.Meter)
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordSubmission(ctx, "calculated")
	metrics.RecordRatios(ctx, "LE001", 1.2, 1.05)
	metrics.RecordStage(ctx, "lcr", 15*time.Millisecond)
	metrics.RecordValidationError(ctx, "error", "data_type")

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "submissions_total")
	assert.Contains(t, rec.Body.String(), "liquidity_lcr_ratio")
}

func TestInitializeOTel_Disabled(t *testing.T) {
	providers, err := InitializeOTel(config.TelemetryConfig{TraceExporter: "none", MetricExporter: "none"}, slog.Default())
	require.NoError(t, err)

	assert.Nil(t, providers.PrometheusHTTP)
	metrics, err := CreateLiquidityMetrics(providers.Meter)
	require.NoError(t, err)
	metrics.RecordSubmission(context.Background(), "failed")

	var nilMetrics *LiquidityMetrics
	assert.NotPanics(t, func() { nilMetrics.RecordSubmission(context.Background(), "failed") })
	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestInitializeOTel_UnsupportedExporter(t *testing.T) {
	_, err := InitializeOTel(config.TelemetryConfig{TraceExporter: "jaeger"}, nil)
	assert.ErrorContains(t, err, "unsupported trace exporter")
}
