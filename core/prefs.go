package core

import (
	"context"
	"sync"
)

// MemoryPreferenceStore is the default in-process preference store. It does
// not survive restarts, so every process start looks like a fresh install to
// the lifecycle guard; hosts that want real reinstall detection inject a
// durable store (see store/prefs).
type MemoryPreferenceStore struct {
	mu     sync.RWMutex
	values map[string]bool
}

func NewMemoryPreferenceStore() *MemoryPreferenceStore {
	return &MemoryPreferenceStore{values: map[string]bool{}}
}

func (s *MemoryPreferenceStore) GetBool(_ context.Context, key string) (bool, bool, error) {
	if s == nil {
		return false, false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, present := s.values[key]
	return value, present, nil
}

func (s *MemoryPreferenceStore) SetBool(_ context.Context, key string, value bool) error {
	if s == nil {
		return NewInternalError(nil, "core: preference store is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

var _ PreferenceStore = (*MemoryPreferenceStore)(nil)
