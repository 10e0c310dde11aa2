package memory

import (
	"context"
	"sync"
	"time"

	"github.com/gateline/bridge/internal/bridge/types"
)

// ConflictStore keeps sync conflicts in memory.
type ConflictStore struct {
	mu        sync.Mutex
	conflicts []types.SyncConflict
}

func NewConflictStore() *ConflictStore {
	return &ConflictStore{}
}

func (s *ConflictStore) OpenConflict(_ context.Context, badge string) (types.SyncConflict, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.conflicts {
		if c.Badge == badge && c.Open() {
			return c, true, nil
		}
	}
	return types.SyncConflict{}, false, nil
}

func (s *ConflictStore) Create(_ context.Context, c types.SyncConflict) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.conflicts {
		if existing.Badge == c.Badge && existing.Open() {
			// One open conflict per badge: the first one stands.
			return nil
		}
	}
	s.conflicts = append(s.conflicts, c)
	return nil
}

func (s *ConflictStore) ListOpen(_ context.Context) ([]types.SyncConflict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []types.SyncConflict
	for _, c := range s.conflicts {
		if c.Open() {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *ConflictStore) Clear(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.conflicts {
		if s.conflicts[i].ID == id && s.conflicts[i].Open() {
			t := at
			s.conflicts[i].ClearedAt = &t
		}
	}
	return nil
}
