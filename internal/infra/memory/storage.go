package memory

import (
	"context"
	"sort"
	"sync"
)

// Storage is an in-memory implementation of app.Storage.
type Storage struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewStorage() *Storage {
	return &Storage{values: make(map[string][]byte)}
}

func (s *Storage) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *Storage) Set(_ context.Context, key string, value []byte) error {
	cp := append([]byte(nil), value...)
	s.mu.Lock()
	s.values[key] = cp
	s.mu.Unlock()
	return nil
}

func (s *Storage) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
	return nil
}

// Keys lists stored keys, used by the export command.
func (s *Storage) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
