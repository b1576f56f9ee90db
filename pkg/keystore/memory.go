package keystore

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore implements Store on a mutex-guarded map with real TTLs.
// Expiry is enforced lazily on access. Intended for tests and single-binary
// setups without a backing store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: map[string]memoryEntry{},
		now:     time.Now,
	}
}

func (s *MemoryStore) Reserve(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = memoryEntry{expiresAt: s.deadline(ttl)}
	return nil
}

func (s *MemoryStore) Bind(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || entry.expired(s.now()) {
		delete(s.entries, key)
		return ErrNotFound
	}
	s.entries[key] = memoryEntry{value: value, expiresAt: s.deadline(ttl)}
	return nil
}

func (s *MemoryStore) Put(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = memoryEntry{value: value, expiresAt: s.deadline(ttl)}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || entry.expired(s.now()) {
		delete(s.entries, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

func (s *MemoryStore) Pop(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	delete(s.entries, key)
	if !ok || entry.expired(s.now()) {
		return "", false, nil
	}
	return entry.value, true, nil
}

func (s *MemoryStore) TTLRemaining(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || entry.expired(s.now()) || entry.expiresAt.IsZero() {
		return 0, nil
	}
	return entry.expiresAt.Sub(s.now()), nil
}

func (s *MemoryStore) ScanPrefix(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []string
	now := s.now()
	for key, entry := range s.entries {
		if entry.expired(now) {
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *MemoryStore) PopMatching(_ context.Context, prefix string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values := map[string]string{}
	now := s.now()
	for key, entry := range s.entries {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		delete(s.entries, key)
		if entry.expired(now) {
			continue
		}
		values[strings.TrimPrefix(key, prefix)] = entry.value
	}
	return values, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = map[string]memoryEntry{}
	return nil
}

func (s *MemoryStore) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}
