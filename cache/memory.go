package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	DefaultExpiration      = 10 * time.Minute
	DefaultCleanupInterval = 30 * time.Minute
)

// Memory keeps records in process memory with a per-entry TTL.
type Memory struct {
	ttl   time.Duration
	cache *gocache.Cache
}

// NewMemory builds an in-memory store. Non-positive durations select the defaults.
func NewMemory(ttl, cleanup time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultExpiration
	}
	if cleanup <= 0 {
		cleanup = DefaultCleanupInterval
	}
	return &Memory{ttl: ttl, cache: gocache.New(ttl, cleanup)}
}

func (m *Memory) Get(ctx context.Context, key Key) (Record, bool, error) {
	value, found := m.cache.Get(key.String())
	if !found {
		return Record{}, false, nil
	}
	record, ok := value.(Record)
	if !ok {
		return Record{}, false, nil
	}
	return cloneRecord(record), true, nil
}

func (m *Memory) Set(ctx context.Context, key Key, record Record) error {
	m.cache.Set(key.String(), cloneRecord(record), m.ttl)
	return nil
}

func (m *Memory) Purge(ctx context.Context) error {
	m.cache.Flush()
	return nil
}

// Len reports the number of live entries.
func (m *Memory) Len() int {
	return m.cache.ItemCount()
}
