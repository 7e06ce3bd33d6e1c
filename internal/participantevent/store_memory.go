// Package participantevent records events triggered directly at the
// participant level by other paths (e.g. study staff actions). The reminder
// sender consults it right before sending as a coarser dedup layer that is
// deliberately independent of the dispatch ledger.
package participantevent

import (
	"context"
	"sync"
)

type memKey struct {
	participantID string
	eventType     string
}

// InMemoryStore keeps direct participant events in a set.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[memKey]struct{}
}

func NewMemory() *InMemoryStore {
	return &InMemoryStore{events: make(map[memKey]struct{})}
}

func (s *InMemoryStore) Record(_ context.Context, participantID, eventType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[memKey{participantID, eventType}] = struct{}{}
	return nil
}

func (s *InMemoryStore) Seen(_ context.Context, participantID, eventType string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.events[memKey{participantID, eventType}]
	return ok, nil
}
