package cache

import (
	"context"
	"sync"
	"time"
)

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)

// Entry is a single cached value with its expiry bookkeeping
type Entry struct {
	Data       []byte
	InsertedAt time.Time
	TTL        time.Duration
}

func (e Entry) expired(now time.Time) bool {
	return !now.Before(e.InsertedAt.Add(e.TTL))
}

// MemoryStore is a process-local TTL map. Expiry is passive: entries are
// dropped when read after their deadline and swept on every Set.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

// WithClock replaces the time source
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

// Name returns the backend name
func (s *MemoryStore) Name() string {
	return BackendMemory
}

// Get returns a live entry. An expired entry is deleted and reported as a miss.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrCacheMiss
	}

	if entry.expired(s.now()) {
		s.mu.Lock()
		// re-check: a concurrent Set may have replaced it
		if current, ok := s.entries[key]; ok && current.expired(s.now()) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, ErrCacheMiss
	}

	out := make([]byte, len(entry.Data))
	copy(out, entry.Data)
	return out, nil
}

// Set stores a copy of data and sweeps expired entries
func (s *MemoryStore) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
		}
	}

	if ttl <= 0 {
		delete(s.entries, key)
		return nil
	}
	s.entries[key] = Entry{Data: buf, InsertedAt: now, TTL: ttl}
	return nil
}

// Delete removes a key
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Clear removes every entry
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.entries = make(map[string]Entry)
	s.mu.Unlock()
	return nil
}

// HealthCheck always succeeds
func (s *MemoryStore) HealthCheck(ctx context.Context) error {
	return nil
}

// Len returns the number of stored entries, expired or not
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
