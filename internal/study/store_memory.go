package study

import (
	"context"
	"sync"

	"kittrack/pkg/platform/sentinel"
)

// InMemoryStore holds study configuration seeded at startup or by tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	studies map[string]Study
}

func NewMemory() *InMemoryStore {
	return &InMemoryStore{studies: make(map[string]Study)}
}

// Seed registers or replaces a study configuration.
func (s *InMemoryStore) Seed(study Study) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.studies[study.InstanceID] = study
}

func (s *InMemoryStore) ByInstance(_ context.Context, instanceID string) (*Study, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	study, ok := s.studies[instanceID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &study, nil
}

func (s *InMemoryStore) ListTrackingEnabled(_ context.Context) ([]Study, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Study
	for _, study := range s.studies {
		if study.Active && study.TrackingEnabled {
			out = append(out, study)
		}
	}
	return out, nil
}
