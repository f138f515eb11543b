package ratelimit

import (
	"sync"
	"time"
)

// Entry is the state of one fixed window.
type Entry struct {
	Count   int
	ResetAt time.Time
}

// Cache stores rate-limit windows by key. The Limiter serializes its own
// read-modify-write sequences, so an implementation only has to make each
// call individually safe. A distributed backend can be swapped in here
// without changing the admission contract.
type Cache interface {
	Get(key string) (Entry, bool, error)
	Set(key string, e Entry) error
	// Sweep removes every entry whose window ended at or before now and
	// returns how many were removed.
	Sweep(now time.Time) (int, error)
	Len() int
}

// MemoryCache is the process-local Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Entry)}
}

func (c *MemoryCache) Get(key string) (Entry, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	return e, ok, nil
}

func (c *MemoryCache) Set(key string, e Entry) error {
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Sweep(now time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.entries {
		if !now.Before(e.ResetAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed, nil
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
