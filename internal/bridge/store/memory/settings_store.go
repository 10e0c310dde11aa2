package memory

import (
	"context"
	"sync"
)

// SettingsStore is an in-memory key-value settings provider.
type SettingsStore struct {
	mu   sync.Mutex
	data map[string]string
}

func NewSettingsStore() *SettingsStore {
	return &SettingsStore{data: make(map[string]string)}
}

func (s *SettingsStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *SettingsStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}
