// Package cache provides a TTL key/value store with an explicit stale-read
// escape hatch. A normal Get only returns entries younger than their TTL;
// GetStale ignores the TTL and is used by the fetcher as a fallback when
// upstreams are down. Entries are never proactively purged — key cardinality
// is bounded by the number of upstream sources and pools.
package cache

import (
	"context"
	"sync"
	"time"
)

// Cache is implemented by the in-memory store and the Redis-backed store.
// Values are opaque JSON blobs; callers own the encoding.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	GetStale(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

type entry struct {
	value    []byte
	storedAt time.Time
	ttl      time.Duration
}

// Memory is the in-process implementation, used when no Redis is configured.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if m.now().Sub(e.storedAt) >= e.ttl {
		return nil, false
	}
	return e.value, true
}

func (m *Memory) GetStale(_ context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	return e.value, true
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{value: value, storedAt: m.now(), ttl: ttl}
}
