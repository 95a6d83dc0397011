package validation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultMaxConcurrency bounds how many rule evaluators run at once
const DefaultMaxConcurrency = 4

// Engine runs a rule registry over a row set
type Engine struct {
	logger         *slog.Logger
	clock          func() time.Time
	maxConcurrency int
}

// Option configures an Engine
type Option func(*Engine)

// WithClock replaces the wall clock used for timestamps and rule timings.
// The clock is called from evaluator goroutines and must be safe for concurrent use.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithMaxConcurrency bounds the number of evaluators running in parallel
func WithMaxConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxConcurrency = n
		}
	}
}

// NewEngine creates a validation engine
func NewEngine(logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		logger:         logger,
		clock:          time.Now,
		maxConcurrency: DefaultMaxConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ruleOutcome is the per-rule slot filled by one evaluator goroutine
type ruleOutcome struct {
	rule     ValidationRule
	eval     evaluation
	duration time.Duration
	skipped  bool
}

// Run evaluates every active rule against the rows. Evaluators run in
// parallel; their findings are merged in rule order so the result does not
// depend on scheduling. An error is returned only when ctx is done.
func (e *Engine) Run(ctx context.Context, in Input) (RunResult, error) {
	result := RunResult{
		SubmissionID:   in.SubmissionID,
		TotalRows:      len(in.Rows),
		Errors:         []ValidationError{},
		RuleExecutions: []RuleExecutionStat{},
		StartedAt:      e.clock(),
	}

	e.logger.InfoContext(ctx, "starting validation run",
		"submission_id", in.SubmissionID,
		"rows", len(in.Rows),
		"rules", len(in.Rules),
	)

	var active []ValidationRule
	for _, rule := range in.Rules {
		if rule.IsActive {
			active = append(active, rule)
		}
	}

	sets := newRegistrySets(in.Registries)
	outcomes := make([]ruleOutcome, len(active))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrency)

	for i, rule := range active {
		outcomes[i].rule = rule

		eval, ok := evaluators[rule.Category]
		if !ok {
			outcomes[i].skipped = true
			continue
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := e.clock()
			outcomes[i].eval = eval(rule, in.Rows, sets)
			outcomes[i].duration = e.clock().Sub(start)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return RunResult{}, fmt.Errorf("run validation rules: %w", err)
	}

	errorRows := make(map[string]struct{})
	for _, o := range outcomes {
		if o.skipped {
			e.logger.WarnContext(ctx, "skipping rule with unrecognized category",
				"rule_id", o.rule.ID,
				"category", string(o.rule.Category),
			)
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("rule %s skipped: unrecognized category %q", o.rule.ID, o.rule.Category))
			continue
		}

		if o.eval.registryMissing {
			e.logger.WarnContext(ctx, "validation rule ran against an empty registry",
				"rule_id", o.rule.ID,
				"category", string(o.rule.Category),
				"note", o.eval.note,
			)
			result.Warnings = append(result.Warnings, fmt.Sprintf("rule %s: %s", o.rule.ID, o.eval.note))
		}

		distinct := make(map[string]struct{})
		for _, ve := range o.eval.errors {
			ve.SubmissionID = in.SubmissionID
			result.Errors = append(result.Errors, ve)

			if ve.RowID != "" {
				distinct[ve.RowID] = struct{}{}
				errorRows[ve.RowID] = struct{}{}
			}
		}

		failed := len(o.eval.errors)
		result.RuleExecutions = append(result.RuleExecutions, RuleExecutionStat{
			RuleID:             o.rule.ID,
			Name:               o.rule.Name,
			Category:           o.rule.Category,
			RowsChecked:        len(in.Rows),
			RowsPassed:         len(in.Rows) - failed,
			RowsFailed:         failed,
			DistinctRowsFailed: len(distinct),
			ExecutionTimeMs:    o.duration.Milliseconds(),
			Notes:              o.eval.note,
		})
	}

	result.Passed = true
	for _, ve := range result.Errors {
		if ve.Severity == SeverityError {
			result.Passed = false
			break
		}
	}

	result.ErrorRows = len(errorRows)
	result.ValidRows = result.TotalRows - result.ErrorRows
	result.CompletedAt = e.clock()

	e.logger.InfoContext(ctx, "validation run completed",
		"submission_id", in.SubmissionID,
		"errors", len(result.Errors),
		"error_rows", result.ErrorRows,
		"passed", result.Passed,
		"duration", result.CompletedAt.Sub(result.StartedAt),
	)

	return result, nil
}
