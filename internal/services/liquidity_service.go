package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"regliq/internal/breakdown"
	"regliq/internal/exporter"
	"regliq/internal/infrastructure"
	"regliq/internal/liquidity"
	"regliq/internal/storage"
	"regliq/internal/validation"
	"regliq/pkg/contracts/domain"
)

// Broadcaster publishes submission events to subscribers
type Broadcaster interface {
	Broadcast(ctx context.Context, messageType string, data any)
}

// Broadcast message types
const (
	EventSubmissionStatus = "submission:status"
	EventSubmissionResult = "submission:result"
)

// StatusEvent is broadcast on every submission status change
type StatusEvent struct {
	SubmissionID  string                  `json:"submission_id"`
	LegalEntityID string                  `json:"legal_entity_id"`
	Status        domain.SubmissionStatus `json:"status"`
	Message       string                  `json:"message,omitempty"`
}

// ResultEvent is broadcast once a submission is calculated
type ResultEvent struct {
	SubmissionID    string  `json:"submission_id"`
	LegalEntityID   string  `json:"legal_entity_id"`
	LCRRatio        float64 `json:"lcr_ratio"`
	LCRCompliant    bool    `json:"lcr_compliant"`
	NSFRRatio       float64 `json:"nsfr_ratio"`
	NSFRCompliant   bool    `json:"nsfr_compliant"`
	Reconciled      bool    `json:"reconciled"`
	ValidationCount int     `json:"validation_findings"`
}

// SubmissionRequest is one reporting package to process
type SubmissionRequest struct {
	// SubmissionID is generated when empty
	SubmissionID  string
	LegalEntityID string
	ReportDate    time.Time
	Items         []domain.LineItem
	Rows          []validation.Row
}

// SubmissionReport is everything known about a processed submission.
// Calculation fields are nil until the submission is calculated.
type SubmissionReport struct {
	Submission     domain.Submission     `json:"submission"`
	Validation     validation.RunResult  `json:"validation"`
	LCR            *liquidity.LCRResult  `json:"lcr,omitempty"`
	NSFR           *liquidity.NSFRResult `json:"nsfr,omitempty"`
	Breakdown      *breakdown.Result     `json:"breakdown,omitempty"`
	Reconciliation *breakdown.Report     `json:"reconciliation,omitempty"`
}

// ExportReport converts the report for the exporters
func (r SubmissionReport) ExportReport() exporter.Report {
	return exporter.Report{
		SubmissionID:   r.Submission.ID,
		LegalEntityID:  r.Submission.LegalEntityID,
		ReportDate:     r.Submission.ReportDate,
		Validation:     r.Validation,
		LCR:            r.LCR,
		NSFR:           r.NSFR,
		Breakdown:      r.Breakdown,
		Reconciliation: r.Reconciliation,
	}
}

// Calculation bundles the stateless calculator outputs for one dataset
type Calculation struct {
	LCR            liquidity.LCRResult  `json:"lcr"`
	NSFR           liquidity.NSFRResult `json:"nsfr"`
	Breakdown      breakdown.Result     `json:"breakdown"`
	Reconciliation breakdown.Report     `json:"reconciliation"`
}

// LiquidityService orchestrates validation, calculation and persistence of submissions
type LiquidityService struct {
	stores    storage.Stores
	lcr       *liquidity.LCRCalculator
	nsfr      *liquidity.NSFRCalculator
	breakdown *breakdown.Engine
	validator *validation.Engine

	tolerance      float64
	maxConcurrency int
	broadcaster    Broadcaster
	metrics        *infrastructure.LiquidityMetrics
	tracer         trace.Tracer
	clock          func() time.Time
	logger         *slog.Logger
}

// Option configures a LiquidityService
type Option func(*LiquidityService)

// WithBroadcaster publishes status events through b
func WithBroadcaster(b Broadcaster) Option {
	return func(s *LiquidityService) { s.broadcaster = b }
}

// WithMetrics records engine metrics
func WithMetrics(m *infrastructure.LiquidityMetrics) Option {
	return func(s *LiquidityService) { s.metrics = m }
}

// WithTracer creates spans for every processing stage
func WithTracer(t trace.Tracer) Option {
	return func(s *LiquidityService) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithClock replaces time.Now for submission timestamps
func WithClock(clock func() time.Time) Option {
	return func(s *LiquidityService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithReconcileTolerance sets the relative tolerance of the reconciliation report
func WithReconcileTolerance(tolerance float64) Option {
	return func(s *LiquidityService) { s.tolerance = tolerance }
}

// WithMaxConcurrency bounds the parallel validation evaluators
func WithMaxConcurrency(n int) Option {
	return func(s *LiquidityService) { s.maxConcurrency = n }
}

// NewLiquidityService creates the service. params are validated once here.
func NewLiquidityService(params liquidity.Parameters, stores storage.Stores, logger *slog.Logger, opts ...Option) (*LiquidityService, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid regulatory parameters: %w", err)
	}
	if stores.Submissions == nil || stores.Registry == nil || stores.Validation == nil || stores.Results == nil {
		return nil, errors.New("liquidity service requires every store")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &LiquidityService{
		stores:         stores,
		tolerance:      breakdown.DefaultTolerance,
		maxConcurrency: validation.DefaultMaxConcurrency,
		tracer:         tracenoop.NewTracerProvider().Tracer("services"),
		clock:          time.Now,
		logger:         logger.With(slog.String("component", "liquidity_service")),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.lcr = liquidity.NewLCRCalculator(params, logger)
	s.nsfr = liquidity.NewNSFRCalculator(params, logger)
	s.breakdown = breakdown.NewEngine(params, logger)
	s.validator = validation.NewEngine(logger,
		validation.WithClock(s.clock),
		validation.WithMaxConcurrency(s.maxConcurrency),
	)

	return s, nil
}

// Parameters returns the regulatory parameters in use
func (s *LiquidityService) Parameters() liquidity.Parameters {
	return s.lcr.Parameters()
}

// CalculateLCR computes the LCR of items without persisting anything
func (s *LiquidityService) CalculateLCR(ctx context.Context, items []domain.LineItem) liquidity.LCRResult {
	ctx, span := s.tracer.Start(ctx, "liquidity.lcr", trace.WithAttributes(attribute.Int("items", len(items))))
	defer span.End()

	start := time.Now()
	result := s.lcr.Calculate(ctx, items)
	s.metrics.RecordStage(ctx, "lcr", time.Since(start))

	span.SetAttributes(attribute.Float64("lcr_ratio", result.LCRRatio))
	return result
}

// CalculateNSFR computes the NSFR of items without persisting anything
func (s *LiquidityService) CalculateNSFR(ctx context.Context, items []domain.LineItem) liquidity.NSFRResult {
	ctx, span := s.tracer.Start(ctx, "liquidity.nsfr", trace.WithAttributes(attribute.Int("items", len(items))))
	defer span.End()

	start := time.Now()
	result := s.nsfr.Calculate(ctx, items)
	s.metrics.RecordStage(ctx, "nsfr", time.Since(start))

	span.SetAttributes(attribute.Float64("nsfr_ratio", result.NSFRRatio))
	return result
}

// CalculateBreakdown itemizes items and reconciles the components with lcr
func (s *LiquidityService) CalculateBreakdown(ctx context.Context, items []domain.LineItem, lcr liquidity.LCRResult) (breakdown.Result, breakdown.Report) {
	ctx, span := s.tracer.Start(ctx, "liquidity.breakdown", trace.WithAttributes(attribute.Int("items", len(items))))
	defer span.End()

	start := time.Now()
	result := s.breakdown.Compute(ctx, items)
	report := breakdown.Reconcile(result, lcr, s.tolerance)
	s.metrics.RecordStage(ctx, "breakdown", time.Since(start))
	s.metrics.RecordReconciliation(ctx, report.Reconciled)

	if !report.Reconciled {
		s.logger.WarnContext(ctx, "breakdown does not reconcile with the LCR calculator",
			slog.Any("mismatches", report.Mismatches))
	}
	span.SetAttributes(attribute.Bool("reconciled", report.Reconciled))
	return result, report
}

// Calculate runs every calculator over items
func (s *LiquidityService) Calculate(ctx context.Context, items []domain.LineItem) Calculation {
	var c Calculation
	c.LCR = s.CalculateLCR(ctx, items)
	c.NSFR = s.CalculateNSFR(ctx, items)
	c.Breakdown, c.Reconciliation = s.CalculateBreakdown(ctx, items, c.LCR)
	return c
}

// Validate runs the registry rules over rows without persisting the run
func (s *LiquidityService) Validate(ctx context.Context, submissionID string, rows []validation.Row) (validation.RunResult, error) {
	ctx, span := s.tracer.Start(ctx, "liquidity.validate", trace.WithAttributes(
		attribute.String("submission_id", submissionID),
		attribute.Int("rows", len(rows)),
	))
	defer span.End()

	rules, err := s.stores.Registry.Rules(ctx)
	if err != nil {
		return validation.RunResult{}, fmt.Errorf("load validation rules: %w", err)
	}
	registries, err := storage.LoadRegistries(ctx, s.stores.Registry)
	if err != nil {
		return validation.RunResult{}, err
	}

	start := time.Now()
	run, err := s.validator.Run(ctx, validation.Input{
		SubmissionID: submissionID,
		Rows:         rows,
		Rules:        rules,
		Registries:   registries,
	})
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return validation.RunResult{}, err
	}
	s.metrics.RecordStage(ctx, "validation", time.Since(start))

	for _, ve := range run.Errors {
		s.metrics.RecordValidationError(ctx, string(ve.Severity), ve.ErrorType)
	}
	span.SetAttributes(attribute.Bool("passed", run.Passed), attribute.Int("findings", len(run.Errors)))
	return run, nil
}

// ProcessSubmission validates, calculates and persists one submission.
// A submission that fails validation is not an error: the returned report
// carries status validation_failed and no calculation results. Storage or
// cancellation errors move the submission to failed and are returned
// together with the partial report.
func (s *LiquidityService) ProcessSubmission(ctx context.Context, req SubmissionRequest) (*SubmissionReport, error) {
	if req.LegalEntityID == "" {
		return nil, fmt.Errorf("%w: legal entity is required", ErrInvalidSubmission)
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSubmission, ErrNoLineItems)
	}
	if req.SubmissionID == "" {
		req.SubmissionID = uuid.New().String()
	}

	ctx, span := s.tracer.Start(ctx, "liquidity.process_submission", trace.WithAttributes(
		attribute.String("submission_id", req.SubmissionID),
		attribute.String("legal_entity_id", req.LegalEntityID),
	))
	defer span.End()

	now := s.clock()
	report := &SubmissionReport{
		Submission: domain.Submission{
			ID:            req.SubmissionID,
			LegalEntityID: req.LegalEntityID,
			ReportDate:    req.ReportDate,
			Status:        domain.SubmissionStatusValidating,
			RowCount:      len(req.Items),
			CreatedAt:     now,
			UpdatedAt:     now,
		},
	}

	logger := s.logger.With(
		slog.String("submission_id", req.SubmissionID),
		slog.String("legal_entity_id", req.LegalEntityID))

	if err := s.stores.Submissions.Create(ctx, &report.Submission); err != nil {
		return nil, fmt.Errorf("create submission: %w", err)
	}
	s.publishStatus(ctx, report.Submission)

	logger.InfoContext(ctx, "processing submission",
		slog.Int("items", len(req.Items)),
		slog.Int("rows", len(req.Rows)))

	rows := inheritLegalEntity(req.Rows, req.LegalEntityID)
	run, err := s.Validate(ctx, req.SubmissionID, rows)
	if err != nil {
		return report, s.fail(ctx, report, fmt.Errorf("validate submission: %w", err))
	}
	report.Validation = run

	if err := s.stores.Validation.SaveRun(ctx, &run); err != nil {
		return report, s.fail(ctx, report, fmt.Errorf("save validation run: %w", err))
	}

	if !run.Passed {
		counts := run.CountBySeverity()
		message := fmt.Sprintf("validation failed: %d errors, %d warnings",
			counts[validation.SeverityError], counts[validation.SeverityWarning])
		if err := s.transition(ctx, report, domain.SubmissionStatusValidationFailed, message); err != nil {
			return report, s.fail(ctx, report, err)
		}
		logger.WarnContext(ctx, "submission failed validation",
			slog.Int("errors", counts[validation.SeverityError]),
			slog.Int("error_rows", run.ErrorRows))
		return report, nil
	}

	if err := s.transition(ctx, report, domain.SubmissionStatusCalculating, ""); err != nil {
		return report, s.fail(ctx, report, err)
	}

	if err := ctx.Err(); err != nil {
		return report, s.fail(ctx, report, fmt.Errorf("calculate submission: %w", err))
	}
	calc := s.Calculate(ctx, req.Items)

	err = s.stores.Results.Save(ctx, &storage.Results{
		SubmissionID:   req.SubmissionID,
		LCR:            calc.LCR,
		NSFR:           calc.NSFR,
		Breakdown:      calc.Breakdown,
		Reconciliation: calc.Reconciliation,
		CreatedAt:      s.clock(),
	})
	if err != nil {
		return report, s.fail(ctx, report, fmt.Errorf("save results: %w", err))
	}

	report.LCR = &calc.LCR
	report.NSFR = &calc.NSFR
	report.Breakdown = &calc.Breakdown
	report.Reconciliation = &calc.Reconciliation

	if err := s.transition(ctx, report, domain.SubmissionStatusCalculated, ""); err != nil {
		return report, s.fail(ctx, report, err)
	}

	s.metrics.RecordRatios(ctx, req.LegalEntityID, calc.LCR.LCRRatio, calc.NSFR.NSFRRatio)
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(ctx, EventSubmissionResult, ResultEvent{
			SubmissionID:    req.SubmissionID,
			LegalEntityID:   req.LegalEntityID,
			LCRRatio:        calc.LCR.LCRRatio,
			LCRCompliant:    calc.LCR.IsCompliant,
			NSFRRatio:       calc.NSFR.NSFRRatio,
			NSFRCompliant:   calc.NSFR.IsCompliant,
			Reconciled:      calc.Reconciliation.Reconciled,
			ValidationCount: len(run.Errors),
		})
	}

	logger.InfoContext(ctx, "submission calculated",
		slog.Float64("lcr_ratio", calc.LCR.LCRRatio),
		slog.Bool("lcr_compliant", calc.LCR.IsCompliant),
		slog.Float64("nsfr_ratio", calc.NSFR.NSFRRatio),
		slog.Bool("nsfr_compliant", calc.NSFR.IsCompliant),
		slog.Bool("reconciled", calc.Reconciliation.Reconciled))

	return report, nil
}

// GetSubmission loads a submission with its validation run and results
func (s *LiquidityService) GetSubmission(ctx context.Context, id string) (*SubmissionReport, error) {
	sub, err := s.stores.Submissions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSubmissionNotFound, id)
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}

	report := &SubmissionReport{Submission: *sub}

	run, err := s.stores.Validation.GetRun(ctx, id)
	switch {
	case err == nil:
		report.Validation = *run
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("get validation run: %w", err)
	}

	results, err := s.stores.Results.Get(ctx, id)
	switch {
	case err == nil:
		report.LCR = &results.LCR
		report.NSFR = &results.NSFR
		report.Breakdown = &results.Breakdown
		report.Reconciliation = &results.Reconciliation
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("get results: %w", err)
	}

	return report, nil
}

// ListSubmissions returns the submissions of one legal entity, newest first
func (s *LiquidityService) ListSubmissions(ctx context.Context, legalEntityID string) ([]*domain.Submission, error) {
	subs, err := s.stores.Submissions.ListByLegalEntity(ctx, legalEntityID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return subs, nil
}

// transition persists and publishes a status change
func (s *LiquidityService) transition(ctx context.Context, report *SubmissionReport, status domain.SubmissionStatus, message string) error {
	at := s.clock()
	if err := s.stores.Submissions.UpdateStatus(ctx, report.Submission.ID, status, message, at); err != nil {
		return fmt.Errorf("update submission status to %s: %w", status, err)
	}

	report.Submission.Status = status
	report.Submission.ErrorMessage = message
	report.Submission.UpdatedAt = at

	s.publishStatus(ctx, report.Submission)
	if status.IsTerminal() {
		s.metrics.RecordSubmission(ctx, string(status))
	}
	return nil
}

// fail moves the submission to failed and returns cause. The status update
// runs detached from ctx so cancellation still leaves a terminal status.
func (s *LiquidityService) fail(ctx context.Context, report *SubmissionReport, cause error) error {
	infrastructure.RecordError(ctx, cause)
	s.logger.ErrorContext(ctx, "submission processing failed",
		slog.String("submission_id", report.Submission.ID),
		slog.String("error", cause.Error()))

	if err := s.transition(context.WithoutCancel(ctx), report, domain.SubmissionStatusFailed, cause.Error()); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

func (s *LiquidityService) publishStatus(ctx context.Context, sub domain.Submission) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Broadcast(ctx, EventSubmissionStatus, StatusEvent{
		SubmissionID:  sub.ID,
		LegalEntityID: sub.LegalEntityID,
		Status:        sub.Status,
		Message:       sub.ErrorMessage,
	})
}

// inheritLegalEntity returns rows where a missing legal entity is set to the submission's
func inheritLegalEntity(rows []validation.Row, legalEntityID string) []validation.Row {
	out := make([]validation.Row, len(rows))
	for i, row := range rows {
		if row.LegalEntityID == "" {
			row.LegalEntityID = legalEntityID
		}
		out[i] = row
	}
	return out
}
