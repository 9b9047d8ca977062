package kvstore

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	visibleAt time.Time
}

// MemoryStore is an in-process Store that can simulate replication lag:
// a written key is only returned by Get once lag has elapsed.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	lag     time.Duration
	now     func() time.Time

	// PutHook, when set, runs before each Put and can fail it
	PutHook func(key string) error
}

// NewMemoryStore creates a store whose writes become visible after lag
func NewMemoryStore(lag time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		lag:     lag,
		now:     time.Now,
	}
}

// Put writes value under key
func (s *MemoryStore) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.PutHook != nil {
		if err := s.PutHook(key); err != nil {
			return err
		}
	}

	cp := make([]byte, len(value))
	copy(cp, value)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{value: cp, visibleAt: s.now().Add(s.lag)}
	return nil
}

// Get returns the value for key once it is visible
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || s.now().Before(e.visibleAt) {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(e.value))
	copy(cp, e.value)
	return cp, nil
}

// Delete removes key
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Keys returns every written key, visible or not
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys
}
