package memory

import (
	"context"
	"sort"
	"sync"

	"regliq/internal/storage"
	"regliq/internal/validation"
)

// RegistryStore is an in-memory implementation of storage.RegistryStore.
type RegistryStore struct {
	mu            sync.RWMutex
	rules         []validation.ValidationRule
	ruleIndex     map[string]int
	allowedValues map[string]map[string]struct{}
	legalEntities map[string]struct{}
}

// NewRegistryStore creates a new in-memory registry store.
func NewRegistryStore() *RegistryStore {
	return &RegistryStore{
		ruleIndex:     make(map[string]int),
		allowedValues: make(map[string]map[string]struct{}),
		legalEntities: make(map[string]struct{}),
	}
}

var _ storage.RegistryStore = (*RegistryStore)(nil)

// UpsertRule inserts or replaces a rule. Rules keep their first insertion order.
func (s *RegistryStore) UpsertRule(_ context.Context, rule validation.ValidationRule) error {
	if rule.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i, exists := s.ruleIndex[rule.ID]; exists {
		s.rules[i] = rule
		return nil
	}
	s.ruleIndex[rule.ID] = len(s.rules)
	s.rules = append(s.rules, rule)
	return nil
}

// Rules returns every rule in insertion order.
func (s *RegistryStore) Rules(_ context.Context) ([]validation.ValidationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules := make([]validation.ValidationRule, len(s.rules))
	copy(rules, s.rules)
	return rules, nil
}

// AddAllowedValues registers values for an enumeration field. Existing values are ignored.
func (s *RegistryStore) AddAllowedValues(_ context.Context, field string, values ...string) error {
	if field == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.allowedValues[field]
	if !ok {
		set = make(map[string]struct{})
		s.allowedValues[field] = set
	}
	for _, v := range values {
		set[v] = struct{}{}
	}
	return nil
}

// AllowedValues returns the allowed values of every field, each list sorted.
func (s *RegistryStore) AllowedValues(_ context.Context) (map[string][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string][]string, len(s.allowedValues))
	for field, set := range s.allowedValues {
		result[field] = sortedKeys(set)
	}
	return result, nil
}

// AddLegalEntities registers legal entity ids. Existing ids are ignored.
func (s *RegistryStore) AddLegalEntities(_ context.Context, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if id == "" {
			return storage.ErrInvalidInput
		}
		s.legalEntities[id] = struct{}{}
	}
	return nil
}

// LegalEntities returns every registered legal entity id, sorted.
func (s *RegistryStore) LegalEntities(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sortedKeys(s.legalEntities), nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
