package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value  []byte
	expiry time.Time
}

// Memory is the in-process Cache used when no Redis URL is configured and in
// tests. Expired entries are skipped on Get and deleted lazily; nothing
// mutates an entry in place.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if m.now().After(e.expiry) {
		m.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have replaced
		// the entry with a fresh one.
		if cur, ok := m.entries[key]; ok && m.now().After(cur.expiry) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	m.entries[key] = entry{value: value, expiry: m.now().Add(ttl)}
	m.mu.Unlock()
	return nil
}
