package memory

import (
	"context"
	"sync"

	"github.com/gateline/bridge/internal/bridge/types"
)

// CursorStore keeps tail and forward cursors in memory.
type CursorStore struct {
	mu      sync.Mutex
	tail    map[string]types.TailCursor
	forward map[string]types.ForwardCursor
}

func NewCursorStore() *CursorStore {
	return &CursorStore{
		tail:    make(map[string]types.TailCursor),
		forward: make(map[string]types.ForwardCursor),
	}
}

func (s *CursorStore) TailCursor(_ context.Context, path string) (types.TailCursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.tail[path]; ok {
		return cur, nil
	}
	return types.TailCursor{Path: path}, nil
}

func (s *CursorStore) SaveTailCursor(_ context.Context, cur types.TailCursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tail[cur.Path] = cur
	return nil
}

func (s *CursorStore) ForwardCursor(_ context.Context, endpoint string) (types.ForwardCursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.forward[endpoint]; ok {
		return cur, nil
	}
	return types.ForwardCursor{Endpoint: endpoint}, nil
}

func (s *CursorStore) SaveForwardCursor(_ context.Context, cur types.ForwardCursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forward[cur.Endpoint] = cur
	return nil
}
