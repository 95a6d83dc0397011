package infrastructure

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// LiquidityMetrics holds the application metrics
type LiquidityMetrics struct {
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	CalculationDuration metric.Float64Histogram
	LCRRatio            metric.Float64Histogram
	NSFRRatio           metric.Float64Histogram
	ValidationErrors    metric.Int64Counter
	SubmissionsTotal    metric.Int64Counter
	Reconciliations     metric.Int64Counter

	WebSocketClients metric.Int64UpDownCounter
}

// CreateLiquidityMetrics registers every instrument on meter
func CreateLiquidityMetrics(meter metric.Meter) (*LiquidityMetrics, error) {
	var (
		m   LiquidityMetrics
		err error
	)

	if m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	); err != nil {
		return nil, err
	}
	if m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.HTTPActiveRequests, err = meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of active HTTP requests"),
	); err != nil {
		return nil, err
	}
	if m.CalculationDuration, err = meter.Float64Histogram(
		"liquidity_calculation_duration_seconds",
		metric.WithDescription("Duration of one calculation stage in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.LCRRatio, err = meter.Float64Histogram(
		"liquidity_lcr_ratio",
		metric.WithDescription("Computed liquidity coverage ratios"),
		metric.WithExplicitBucketBoundaries(0.5, 0.8, 1, 1.1, 1.25, 1.5, 2, 3, 5),
	); err != nil {
		return nil, err
	}
	if m.NSFRRatio, err = meter.Float64Histogram(
		"liquidity_nsfr_ratio",
		metric.WithDescription("Computed net stable funding ratios"),
		metric.WithExplicitBucketBoundaries(0.5, 0.8, 1, 1.1, 1.25, 1.5, 2, 3, 5),
	); err != nil {
		return nil, err
	}
	if m.ValidationErrors, err = meter.Int64Counter(
		"validation_errors_total",
		metric.WithDescription("Validation findings by severity and rule category"),
	); err != nil {
		return nil, err
	}
	if m.SubmissionsTotal, err = meter.Int64Counter(
		"submissions_total",
		metric.WithDescription("Processed submissions by final status"),
	); err != nil {
		return nil, err
	}
	if m.Reconciliations, err = meter.Int64Counter(
		"breakdown_reconciliations_total",
		metric.WithDescription("Breakdown reconciliations by outcome"),
	); err != nil {
		return nil, err
	}
	if m.WebSocketClients, err = meter.Int64UpDownCounter(
		"websocket_clients",
		metric.WithDescription("Connected WebSocket clients"),
	); err != nil {
		return nil, err
	}

	return &m, nil
}

// RecordHTTPRequest records one served request
func (m *LiquidityMetrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordActiveRequest applies a change in in-flight requests
func (m *LiquidityMetrics) RecordActiveRequest(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.HTTPActiveRequests.Add(ctx, delta)
}

// RecordStage records the duration of one calculation stage
func (m *LiquidityMetrics) RecordStage(ctx context.Context, stage string, duration time.Duration) {
	if m == nil {
		return
	}
	m.CalculationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordRatios records computed LCR and NSFR ratios
func (m *LiquidityMetrics) RecordRatios(ctx context.Context, legalEntity string, lcr, nsfr float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("legal_entity", legalEntity))
	m.LCRRatio.Record(ctx, lcr, attrs)
	m.NSFRRatio.Record(ctx, nsfr, attrs)
}

// RecordValidationError counts one finding
func (m *LiquidityMetrics) RecordValidationError(ctx context.Context, severity, category string) {
	if m == nil {
		return
	}
	m.ValidationErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("severity", severity),
		attribute.String("category", category),
	))
}

// RecordSubmission counts a submission reaching a final status
func (m *LiquidityMetrics) RecordSubmission(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.SubmissionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordReconciliation counts a reconciliation outcome
func (m *LiquidityMetrics) RecordReconciliation(ctx context.Context, reconciled bool) {
	if m == nil {
		return
	}
	m.Reconciliations.Add(ctx, 1, metric.WithAttributes(attribute.Bool("reconciled", reconciled)))
}

// RecordWebSocketClients applies a change in connected clients
func (m *LiquidityMetrics) RecordWebSocketClients(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.WebSocketClients.Add(ctx, delta)
}
