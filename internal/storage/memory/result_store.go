package memory

import (
	"context"
	"sync"

	"regliq/internal/storage"
)

// ResultStore is an in-memory implementation of storage.ResultStore.
type ResultStore struct {
	mu   sync.RWMutex
	data map[string]*storage.Results
}

// NewResultStore creates a new in-memory result store.
func NewResultStore() *ResultStore {
	return &ResultStore{
		data: make(map[string]*storage.Results),
	}
}

var _ storage.ResultStore = (*ResultStore)(nil)

// Save stores the results of a submission. Returns ErrDuplicateKey if they exist.
func (s *ResultStore) Save(_ context.Context, r *storage.Results) error {
	if r == nil || r.SubmissionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.SubmissionID]; exists {
		return storage.ErrDuplicateKey
	}

	resultCopy := *r
	s.data[r.SubmissionID] = &resultCopy
	return nil
}

// Get retrieves the results of a submission. Returns ErrNotFound if not exists.
func (s *ResultStore) Get(_ context.Context, submissionID string) (*storage.Results, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[submissionID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	resultCopy := *r
	return &resultCopy, nil
}
