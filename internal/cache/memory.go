package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryKV is an in-memory implementation of KV with per-key expiry.
// Used by tests and by --use-memory-cache deployments.
type MemoryKV struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	now   func() time.Time
}

type memoryItem struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// NewMemoryKV creates an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
}

// Set stores value under key with the given TTL. A zero TTL means no expiry.
func (m *MemoryKV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := memoryItem{value: value}
	if ttl > 0 {
		item.expiresAt = m.now().Add(ttl)
	}
	m.items[key] = item
	return nil
}

// Get returns the value under key, or ErrNotFound when absent or expired.
func (m *MemoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	item, ok := m.items[key]
	m.mu.RUnlock()

	if !ok {
		return "", ErrNotFound
	}
	if !item.expiresAt.IsZero() && m.now().After(item.expiresAt) {
		m.mu.Lock()
		delete(m.items, key)
		m.mu.Unlock()
		return "", ErrNotFound
	}
	return item.value, nil
}

var _ KV = (*MemoryKV)(nil)
