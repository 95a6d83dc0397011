package memory

import (
	"context"
	"sync"

	"regliq/internal/storage"
	"regliq/internal/validation"
)

// ValidationStore is an in-memory implementation of storage.ValidationStore.
type ValidationStore struct {
	mu   sync.RWMutex
	runs map[string]*validation.RunResult
}

// NewValidationStore creates a new in-memory validation store.
func NewValidationStore() *ValidationStore {
	return &ValidationStore{
		runs: make(map[string]*validation.RunResult),
	}
}

var _ storage.ValidationStore = (*ValidationStore)(nil)

// SaveRun stores the run of a submission. Returns ErrDuplicateKey if one exists.
func (s *ValidationStore) SaveRun(_ context.Context, run *validation.RunResult) error {
	if run == nil || run.SubmissionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.SubmissionID]; exists {
		return storage.ErrDuplicateKey
	}

	runCopy := *run
	runCopy.Errors = append([]validation.ValidationError(nil), run.Errors...)
	runCopy.RuleExecutions = append([]validation.RuleExecutionStat(nil), run.RuleExecutions...)
	s.runs[run.SubmissionID] = &runCopy
	return nil
}

// GetRun retrieves the run of a submission. Returns ErrNotFound if not exists.
func (s *ValidationStore) GetRun(_ context.Context, submissionID string) (*validation.RunResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[submissionID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	runCopy := *run
	return &runCopy, nil
}
