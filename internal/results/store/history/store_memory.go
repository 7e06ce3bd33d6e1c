// Package history persists the append-only lab result history per kit,
// oldest first. The latest entry is authoritative for reconciliation.
package history

import (
	"context"
	"sync"

	"kittrack/internal/kit/models"
)

// InMemoryStore keeps result histories in a map.
type InMemoryStore struct {
	mu        sync.RWMutex
	histories map[string][]models.LabResult
}

func New() *InMemoryStore {
	return &InMemoryStore{histories: make(map[string][]models.LabResult)}
}

func (s *InMemoryStore) History(_ context.Context, kitLabel string) ([]models.LabResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.histories[kitLabel]
	out := make([]models.LabResult, len(stored))
	copy(out, stored)
	return out, nil
}

// Replace persists the whole updated ordered sequence for the kit.
func (s *InMemoryStore) Replace(_ context.Context, kitLabel string, results []models.LabResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]models.LabResult, len(results))
	copy(stored, results)
	s.histories[kitLabel] = stored
	return nil
}
