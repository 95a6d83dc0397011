package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"regliq/internal/storage"
	"regliq/pkg/contracts/domain"
)

// SubmissionStore implements storage.SubmissionStore using PostgreSQL.
type SubmissionStore struct {
	pool *Pool
}

// NewSubmissionStore creates a new SubmissionStore.
func NewSubmissionStore(pool *Pool) *SubmissionStore {
	return &SubmissionStore{pool: pool}
}

var _ storage.SubmissionStore = (*SubmissionStore)(nil)

const submissionColumns = `id, legal_entity_id, report_date, status, error_message, row_count, created_at, updated_at`

// Create adds a new submission. Returns ErrDuplicateKey if the id exists.
func (s *SubmissionStore) Create(ctx context.Context, sub *domain.Submission) error {
	if sub == nil || sub.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO submissions (` + submissionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		sub.ID,
		sub.LegalEntityID,
		sub.ReportDate,
		string(sub.Status),
		sub.ErrorMessage,
		sub.RowCount,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// Get retrieves a submission by id. Returns ErrNotFound if not exists.
func (s *SubmissionStore) Get(ctx context.Context, id string) (*domain.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`

	sub, err := scanSubmission(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return sub, nil
}

// UpdateStatus moves a submission to status. Returns ErrNotFound if not exists.
func (s *SubmissionStore) UpdateStatus(ctx context.Context, id string, status domain.SubmissionStatus, message string, at time.Time) error {
	query := `
		UPDATE submissions
		SET status = $2, error_message = $3, updated_at = $4
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query, id, string(status), message, at)
	if err != nil {
		return fmt.Errorf("update submission status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListByLegalEntity returns the submissions of one entity, newest report date first.
func (s *SubmissionStore) ListByLegalEntity(ctx context.Context, legalEntityID string) ([]*domain.Submission, error) {
	query := `
		SELECT ` + submissionColumns + `
		FROM submissions
		WHERE legal_entity_id = $1
		ORDER BY report_date DESC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, legalEntityID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var result []*domain.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		result = append(result, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return result, nil
}

func scanSubmission(row pgx.Row) (*domain.Submission, error) {
	var (
		sub    domain.Submission
		status string
	)
	err := row.Scan(
		&sub.ID,
		&sub.LegalEntityID,
		&sub.ReportDate,
		&status,
		&sub.ErrorMessage,
		&sub.RowCount,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sub.Status = domain.SubmissionStatus(status)
	return &sub, nil
}
