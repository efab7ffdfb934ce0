package server

import (
	"context"
	"sync"
	"time"
)

// Store is the key-value backend a list lives in. Get reports ok=false for
// keys that were never written or have expired; any other failure comes
// back as an error. Implementations do not retry.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Put writes value under key. A zero ttl keeps the value until it is
	// overwritten.
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type memoryEntry struct {
	Value     string
	ExpiresAt time.Time
}

// MemoryStore keeps values in process memory. It is used by tests and by
// `--store memory` for throwaway servers.
type MemoryStore struct {
	mu sync.Mutex

	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: map[string]memoryEntry{},
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return "", false, nil
	}
	if !e.ExpiresAt.IsZero() && !s.now().Before(e.ExpiresAt) {
		delete(s.entries, key)
		return "", false, nil
	}
	return e.Value, true, nil
}

func (s *MemoryStore) Put(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := memoryEntry{Value: value}
	if ttl > 0 {
		e.ExpiresAt = s.now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Len returns the number of stored keys, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
