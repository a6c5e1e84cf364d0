package store

import (
	"context"
	"sync"
	"time"
)

// MemCache is an in-memory implementation of Cache[V].
//
// Designed for testing, development, and single-process workflows where
// cache contents need not outlive the process. Thread-safe; expired entries
// are dropped lazily on read.
type MemCache[V any] struct {
	mu      sync.RWMutex
	entries map[string]memEntry[V]
}

type memEntry[V any] struct {
	value     V
	expiresAt time.Time // zero means no expiry
}

// NewMemCache creates an empty in-memory cache.
func NewMemCache[V any]() *MemCache[V] {
	return &MemCache[V]{
		entries: make(map[string]memEntry[V]),
	}
}

// Get returns the live value stored under key, if any.
func (m *MemCache[V]) Get(_ context.Context, key string) (V, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		// Re-check under the write lock; a Set may have replaced the entry.
		if cur, ok := m.entries[key]; ok && cur.expiresAt.Equal(entry.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return zero, false, nil
	}
	return entry.value, true, nil
}

// Set stores value under key, replacing any existing entry.
func (m *MemCache[V]) Set(_ context.Context, key string, value V, ttl time.Duration) error {
	entry := memEntry[V]{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, counting not-yet-collected
// expired ones.
func (m *MemCache[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
