// Package storage defines the persistence contracts for submissions, the
// validation registry, validation runs and calculation results. The memory
// and postgres subpackages implement them.
package storage

import (
	"context"
	"fmt"
	"time"

	"regliq/internal/breakdown"
	"regliq/internal/liquidity"
	"regliq/internal/validation"
	"regliq/pkg/contracts/domain"
)

// SubmissionStore provides access to submissions
type SubmissionStore interface {
	// Create adds a new submission. Returns ErrDuplicateKey if the id exists.
	Create(ctx context.Context, s *domain.Submission) error

	// Get retrieves a submission by id. Returns ErrNotFound if not exists.
	Get(ctx context.Context, id string) (*domain.Submission, error)

	// UpdateStatus moves a submission to status. Returns ErrNotFound if not exists.
	UpdateStatus(ctx context.Context, id string, status domain.SubmissionStatus, message string, at time.Time) error

	// ListByLegalEntity returns the submissions of one entity, newest report date first.
	ListByLegalEntity(ctx context.Context, legalEntityID string) ([]*domain.Submission, error)
}

// RegistryStore provides access to validation rules and reference data
type RegistryStore interface {
	// UpsertRule inserts or replaces a rule. Rules keep their first insertion order.
	UpsertRule(ctx context.Context, rule validation.ValidationRule) error

	// Rules returns every rule in insertion order.
	Rules(ctx context.Context) ([]validation.ValidationRule, error)

	// AddAllowedValues registers values for an enumeration field. Existing values are ignored.
	AddAllowedValues(ctx context.Context, field string, values ...string) error

	// AllowedValues returns the allowed values of every field, each list sorted.
	AllowedValues(ctx context.Context) (map[string][]string, error)

	// AddLegalEntities registers legal entity ids. Existing ids are ignored.
	AddLegalEntities(ctx context.Context, ids ...string) error

	// LegalEntities returns every registered legal entity id, sorted.
	LegalEntities(ctx context.Context) ([]string, error)
}

// ValidationStore provides access to validation runs
type ValidationStore interface {
	// SaveRun stores the run of a submission. Returns ErrDuplicateKey if one exists.
	SaveRun(ctx context.Context, run *validation.RunResult) error

	// GetRun retrieves the run of a submission. Returns ErrNotFound if not exists.
	GetRun(ctx context.Context, submissionID string) (*validation.RunResult, error)
}

// Results are the calculation outputs of one submission
type Results struct {
	SubmissionID   string               `json:"submission_id"`
	LCR            liquidity.LCRResult  `json:"lcr"`
	NSFR           liquidity.NSFRResult `json:"nsfr"`
	Breakdown      breakdown.Result     `json:"breakdown"`
	Reconciliation breakdown.Report     `json:"reconciliation"`
	CreatedAt      time.Time            `json:"created_at"`
}

// ResultStore provides access to calculation results
type ResultStore interface {
	// Save stores the results of a submission. Returns ErrDuplicateKey if they exist.
	Save(ctx context.Context, r *Results) error

	// Get retrieves the results of a submission. Returns ErrNotFound if not exists.
	Get(ctx context.Context, submissionID string) (*Results, error)
}

// Stores bundles one implementation of every store
type Stores struct {
	Submissions SubmissionStore
	Registry    RegistryStore
	Validation  ValidationStore
	Results     ResultStore
}

// LoadRegistries reads the reference data used by a validation run
func LoadRegistries(ctx context.Context, reg RegistryStore) (validation.Registries, error) {
	values, err := reg.AllowedValues(ctx)
	if err != nil {
		return validation.Registries{}, fmt.Errorf("load allowed values: %w", err)
	}
	entities, err := reg.LegalEntities(ctx)
	if err != nil {
		return validation.Registries{}, fmt.Errorf("load legal entities: %w", err)
	}
	return validation.Registries{AllowedValues: values, LegalEntities: entities}, nil
}

// SeedRegistry writes rules and reference data into a registry store
func SeedRegistry(ctx context.Context, reg RegistryStore, rules []validation.ValidationRule, data validation.Registries) error {
	for _, rule := range rules {
		if err := reg.UpsertRule(ctx, rule); err != nil {
			return fmt.Errorf("seed rule %s: %w", rule.ID, err)
		}
	}
	for field, values := range data.AllowedValues {
		if err := reg.AddAllowedValues(ctx, field, values...); err != nil {
			return fmt.Errorf("seed allowed values for %s: %w", field, err)
		}
	}
	if len(data.LegalEntities) > 0 {
		if err := reg.AddLegalEntities(ctx, data.LegalEntities...); err != nil {
			return fmt.Errorf("seed legal entities: %w", err)
		}
	}
	return nil
}
