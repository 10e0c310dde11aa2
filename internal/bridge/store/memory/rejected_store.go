package memory

import (
	"context"
	"sync"

	"github.com/gateline/bridge/internal/bridge/store"
)

// RejectedEventStore is an in-memory record of permanent delivery
// rejections.
type RejectedEventStore struct {
	mu     sync.Mutex
	byKey  map[string]store.RejectedEvent
	events []store.RejectedEvent
}

func NewRejectedEventStore() *RejectedEventStore {
	return &RejectedEventStore{
		byKey: make(map[string]store.RejectedEvent),
	}
}

func (s *RejectedEventStore) Record(_ context.Context, ev store.RejectedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byKey[ev.Key]; ok {
		return nil
	}
	s.byKey[ev.Key] = ev
	s.events = append(s.events, ev)
	return nil
}

func (s *RejectedEventStore) IsRejected(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byKey[key]
	return ok, nil
}

func (s *RejectedEventStore) ListRecent(_ context.Context, limit int) ([]store.RejectedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := 0
	if limit > 0 && len(s.events) > limit {
		start = len(s.events) - limit
	}
	out := make([]store.RejectedEvent, len(s.events)-start)
	copy(out, s.events[start:])
	return out, nil
}
