package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"regliq/internal/storage"
	"regliq/pkg/contracts/domain"
)

// SubmissionStore is an in-memory implementation of storage.SubmissionStore.
type SubmissionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Submission
}

// NewSubmissionStore creates a new in-memory submission store.
func NewSubmissionStore() *SubmissionStore {
	return &SubmissionStore{
		data: make(map[string]*domain.Submission),
	}
}

var _ storage.SubmissionStore = (*SubmissionStore)(nil)

// Create adds a new submission. Returns ErrDuplicateKey if the id exists.
func (s *SubmissionStore) Create(_ context.Context, sub *domain.Submission) error {
	if sub == nil || sub.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[sub.ID]; exists {
		return storage.ErrDuplicateKey
	}

	subCopy := *sub
	s.data[sub.ID] = &subCopy
	return nil
}

// Get retrieves a submission by id. Returns ErrNotFound if not exists.
func (s *SubmissionStore) Get(_ context.Context, id string) (*domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	subCopy := *sub
	return &subCopy, nil
}

// UpdateStatus moves a submission to status. Returns ErrNotFound if not exists.
func (s *SubmissionStore) UpdateStatus(_ context.Context, id string, status domain.SubmissionStatus, message string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}

	sub.Status = status
	sub.ErrorMessage = message
	sub.UpdatedAt = at
	return nil
}

// ListByLegalEntity returns the submissions of one entity, newest report date first.
func (s *SubmissionStore) ListByLegalEntity(_ context.Context, legalEntityID string) ([]*domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Submission
	for _, sub := range s.data {
		if sub.LegalEntityID == legalEntityID {
			subCopy := *sub
			result = append(result, &subCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].ReportDate.Equal(result[j].ReportDate) {
			return result[i].ReportDate.After(result[j].ReportDate)
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}
