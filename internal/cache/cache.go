package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL applies when Set is called without a positive TTL.
const DefaultTTL = 300 * time.Second

// Store is a byte-level cache backend. Get reports a miss for keys that were
// never set or whose entry has expired. Set overwrites any existing entry;
// a ttl <= 0 selects the store's default TTL.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// InMemoryStore implements Store using a map with per-entry expiration.
// Expired entries are removed on access and by Purge. Safe for concurrent use;
// a single instance is shared by all request handlers in the process.
type InMemoryStore struct {
	mu         sync.RWMutex
	data       map[string]cacheEntry
	defaultTTL time.Duration
	now        func() time.Time
}

// cacheEntry stores an encoded value with its expiration timestamp.
type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewInMemoryStore creates an in-memory store. defaultTTL <= 0 falls back to DefaultTTL.
func NewInMemoryStore(defaultTTL time.Duration) *InMemoryStore {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &InMemoryStore{
		data:       make(map[string]cacheEntry),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Get returns (value, true, nil) on hit and (nil, false, nil) on miss or expiration.
// Expired entries are deleted.
func (c *InMemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	entry, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		// Re-check: a concurrent Set may have refreshed the key.
		if cur, ok := c.data[key]; ok && c.now().After(cur.expiresAt) {
			delete(c.data, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}

	return entry.value, true, nil
}

// Set stores value under key, replacing any previous entry and resetting its expiry.
func (c *InMemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	c.data[key] = cacheEntry{
		value:     value,
		expiresAt: c.now().Add(ttl),
	}
	c.mu.Unlock()
	return nil
}

// Purge removes every expired entry and returns how many were dropped.
func (c *InMemoryStore) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for k, e := range c.data {
		if now.After(e.expiresAt) {
			delete(c.data, k)
			n++
		}
	}
	return n
}

// Len returns the number of entries held, including expired ones not yet purged.
func (c *InMemoryStore) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
