package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"regliq/internal/storage"
	"regliq/internal/validation"
)

// ValidationStore implements storage.ValidationStore using PostgreSQL.
type ValidationStore struct {
	pool *Pool
}

// NewValidationStore creates a new ValidationStore.
func NewValidationStore(pool *Pool) *ValidationStore {
	return &ValidationStore{pool: pool}
}

var _ storage.ValidationStore = (*ValidationStore)(nil)

// SaveRun stores the run of a submission atomically. Returns ErrDuplicateKey
// if one exists and ErrInvalidInput if the submission does not exist.
func (s *ValidationStore) SaveRun(ctx context.Context, run *validation.RunResult) error {
	if run == nil || run.SubmissionID == "" {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	warnings := run.Warnings
	if warnings == nil {
		warnings = []string{}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO validation_runs (
			submission_id, total_rows, valid_rows, error_rows, passed, warnings, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		run.SubmissionID,
		run.TotalRows,
		run.ValidRows,
		run.ErrorRows,
		run.Passed,
		warnings,
		run.StartedAt,
		run.CompletedAt,
	)
	if err != nil {
		switch {
		case isDuplicateKeyError(err):
			return storage.ErrDuplicateKey
		case isForeignKeyError(err):
			return fmt.Errorf("%w: unknown submission %s", storage.ErrInvalidInput, run.SubmissionID)
		}
		return fmt.Errorf("insert validation run: %w", err)
	}

	if len(run.Errors) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"validation_errors"},
			[]string{"submission_id", "seq", "row_id", "rule_id", "error_type", "message", "field_name", "expected_value", "actual_value", "severity"},
			pgx.CopyFromSlice(len(run.Errors), func(i int) ([]any, error) {
				ve := run.Errors[i]
				return []any{
					run.SubmissionID, i, ve.RowID, ve.RuleID, ve.ErrorType, ve.Message,
					ve.FieldName, ve.ExpectedValue, ve.ActualValue, string(ve.Severity),
				}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copy validation errors: %w", err)
		}
	}

	for i, stat := range run.RuleExecutions {
		_, err := tx.Exec(ctx, `
			INSERT INTO rule_executions (
				submission_id, seq, rule_id, name, category, rows_checked, rows_passed,
				rows_failed, distinct_rows_failed, execution_time_ms, notes
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`,
			run.SubmissionID, i, stat.RuleID, stat.Name, string(stat.Category),
			stat.RowsChecked, stat.RowsPassed, stat.RowsFailed, stat.DistinctRowsFailed,
			stat.ExecutionTimeMs, stat.Notes,
		)
		if err != nil {
			return fmt.Errorf("insert rule execution: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetRun retrieves the run of a submission. Returns ErrNotFound if not exists.
func (s *ValidationStore) GetRun(ctx context.Context, submissionID string) (*validation.RunResult, error) {
	run := validation.RunResult{
		SubmissionID:   submissionID,
		Errors:         []validation.ValidationError{},
		RuleExecutions: []validation.RuleExecutionStat{},
	}

	err := s.pool.QueryRow(ctx, `
		SELECT total_rows, valid_rows, error_rows, passed, warnings, started_at, completed_at
		FROM validation_runs
		WHERE submission_id = $1
	`, submissionID).Scan(
		&run.TotalRows,
		&run.ValidRows,
		&run.ErrorRows,
		&run.Passed,
		&run.Warnings,
		&run.StartedAt,
		&run.CompletedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get validation run: %w", err)
	}
	if len(run.Warnings) == 0 {
		run.Warnings = nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT row_id, rule_id, error_type, message, field_name, expected_value, actual_value, severity
		FROM validation_errors
		WHERE submission_id = $1
		ORDER BY seq ASC
	`, submissionID)
	if err != nil {
		return nil, fmt.Errorf("list validation errors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		ve := validation.ValidationError{SubmissionID: submissionID}
		var severity string
		if err := rows.Scan(&ve.RowID, &ve.RuleID, &ve.ErrorType, &ve.Message, &ve.FieldName, &ve.ExpectedValue, &ve.ActualValue, &severity); err != nil {
			return nil, fmt.Errorf("scan validation error: %w", err)
		}
		ve.Severity = validation.Severity(severity)
		run.Errors = append(run.Errors, ve)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate validation errors: %w", err)
	}

	stats, err := s.pool.Query(ctx, `
		SELECT rule_id, name, category, rows_checked, rows_passed, rows_failed,
			distinct_rows_failed, execution_time_ms, notes
		FROM rule_executions
		WHERE submission_id = $1
		ORDER BY seq ASC
	`, submissionID)
	if err != nil {
		return nil, fmt.Errorf("list rule executions: %w", err)
	}
	defer stats.Close()

	for stats.Next() {
		var (
			stat     validation.RuleExecutionStat
			category string
		)
		if err := stats.Scan(&stat.RuleID, &stat.Name, &category, &stat.RowsChecked, &stat.RowsPassed,
			&stat.RowsFailed, &stat.DistinctRowsFailed, &stat.ExecutionTimeMs, &stat.Notes); err != nil {
			return nil, fmt.Errorf("scan rule execution: %w", err)
		}
		stat.Category = validation.RuleCategory(category)
		run.RuleExecutions = append(run.RuleExecutions, stat)
	}
	if err := stats.Err(); err != nil {
		return nil, fmt.Errorf("iterate rule executions: %w", err)
	}

	return &run, nil
}
