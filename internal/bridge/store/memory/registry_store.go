package memory

import (
	"context"
	"sync"
	"time"

	"github.com/gateline/bridge/internal/bridge/store"
	"github.com/gateline/bridge/internal/bridge/types"
)

// RegistryStore is an in-memory person/card registry for tests and dev.
type RegistryStore struct {
	mu       sync.Mutex
	persons  map[string]types.PersonIdentity
	bindings []types.BadgeBinding
}

func NewRegistryStore() *RegistryStore {
	return &RegistryStore{
		persons: make(map[string]types.PersonIdentity),
	}
}

func (s *RegistryStore) FindByNormalizedName(_ context.Context, name string) ([]types.PersonIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []types.PersonIdentity
	for _, p := range s.persons {
		if p.NormalizedName == name {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *RegistryStore) UpsertPerson(_ context.Context, p types.PersonIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.persons[p.ID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.persons[p.ID] = p
	return nil
}

func (s *RegistryStore) ActiveBinding(_ context.Context, badge string) (types.BadgeBinding, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.activeIndex(badge); i >= 0 {
		return s.bindings[i], true, nil
	}
	return types.BadgeBinding{}, false, nil
}

func (s *RegistryStore) BindBadge(_ context.Context, badge, personID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	superseded := false
	if i := s.activeIndex(badge); i >= 0 {
		if s.bindings[i].PersonID == personID {
			// Already correctly bound: no-op.
			return false, nil
		}
		t := at
		s.bindings[i].Active = false
		s.bindings[i].SupersededAt = &t
		superseded = true
	}

	s.bindings = append(s.bindings, types.BadgeBinding{
		Badge:    badge,
		PersonID: personID,
		Active:   true,
		BoundAt:  at,
	})
	return superseded, nil
}

func (s *RegistryStore) ActiveBindings(_ context.Context) ([]store.BoundPerson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.BoundPerson
	for _, b := range s.bindings {
		if !b.Active {
			continue
		}
		out = append(out, store.BoundPerson{
			Badge:  b.Badge,
			Person: s.persons[b.PersonID],
		})
	}
	return out, nil
}

// Bindings returns a copy of the full binding history.  Test-only helper.
func (s *RegistryStore) Bindings() []types.BadgeBinding {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.BadgeBinding, len(s.bindings))
	copy(out, s.bindings)
	return out
}

func (s *RegistryStore) activeIndex(badge string) int {
	for i := range s.bindings {
		if s.bindings[i].Badge == badge && s.bindings[i].Active {
			return i
		}
	}
	return -1
}
