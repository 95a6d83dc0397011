// Package memory provides in-memory implementations of the storage interfaces.
// They back the batch CLI and tests; every method is safe for concurrent use.
package memory

import "regliq/internal/storage"

// NewStores returns a fresh set of in-memory stores
func NewStores() storage.Stores {
	return storage.Stores{
		Submissions: NewSubmissionStore(),
		Registry:    NewRegistryStore(),
		Validation:  NewValidationStore(),
		Results:     NewResultStore(),
	}
}
