package ledger

import (
	"context"
	"sync"
	"time"

	"kittrack/internal/dispatch"
)

// InMemoryStore keeps the dispatch ledger in a map. Used in tests and in
// deployments without PostgreSQL configured.
type InMemoryStore struct {
	mu      sync.Mutex
	entries map[dispatch.Key]time.Time
}

func New() *InMemoryStore {
	return &InMemoryStore{entries: make(map[dispatch.Key]time.Time)}
}

func (s *InMemoryStore) Insert(_ context.Context, entry dispatch.Entry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[entry.Key]; exists {
		return false, nil
	}
	s.entries[entry.Key] = entry.DispatchedAt
	return true, nil
}

func (s *InMemoryStore) Has(_ context.Context, key dispatch.Key) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.entries[key]
	return exists, nil
}
