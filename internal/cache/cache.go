// Package cache holds recently fetched upstream payloads keyed by a
// canonical request signature.
package cache

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"
)

type entry struct {
	payload   []byte
	timestamp time.Time
}

// Cache is a TTL keyed store of response payloads. Entries are replaced or
// deleted, never mutated in place. Validity is decided at read time, so a
// single entry can be read with different TTLs by different resources.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates a cache whose Get uses ttl as the default validity window.
func New(ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the default validity window.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the payload for key if it is younger than the default TTL.
func (c *Cache) Get(key string) ([]byte, bool) {
	return c.GetWithTTL(key, c.ttl)
}

// GetWithTTL returns the payload for key if it is younger than ttl. Expired
// entries are reported absent but left in place; the next Set replaces them.
func (c *Cache) GetWithTTL(key string, ttl time.Duration) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if c.now().Sub(e.timestamp) >= ttl {
		return nil, false
	}
	return e.payload, true
}

// Set stores payload under key with the current timestamp.
func (c *Cache) Set(key string, payload []byte) {
	c.mu.Lock()
	c.entries[key] = entry{payload: payload, timestamp: c.now()}
	c.mu.Unlock()
}

// Invalidate removes every entry whose key matches the predicate and returns
// how many were removed.
func (c *Cache) Invalidate(match func(key string) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if match(key) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// InvalidateContaining removes every entry whose key contains substr.
func (c *Cache) InvalidateContaining(substr string) int {
	if substr == "" {
		return 0
	}
	return c.Invalidate(func(key string) bool {
		return strings.Contains(key, substr)
	})
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Prune deletes entries older than maxAge. maxAge should be the longest TTL
// any reader uses, otherwise live entries for long-lived resources are lost.
func (c *Cache) Prune(maxAge time.Duration) int {
	now := c.now()
	return c.Invalidate(func(key string) bool {
		return now.Sub(c.entries[key].timestamp) >= maxAge
	})
}

// StartJanitor prunes entries older than maxAge every interval until ctx ends.
func (c *Cache) StartJanitor(ctx context.Context, interval, maxAge time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Prune(maxAge)
			}
		}
	}()
}

// Key derives the cache signature for a logical endpoint path and its query
// parameters. Parameters are serialized in sorted key order so that the same
// set of parameters always yields the same key.
func Key(path string, params url.Values) string {
	if len(params) == 0 {
		return path
	}
	encoded := params.Encode()
	if encoded == "" {
		return path
	}
	return path + "?" + encoded
}
