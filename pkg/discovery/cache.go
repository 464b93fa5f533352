package discovery

import (
	"strings"
	"sync"
	"time"
)

// DefaultCacheTTL is the memoization window for discovery results.
const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	value   any
	created time.Time
}

// Cache is a keyed TTL memo store for discovery results. It knows nothing
// about what it stores; callers compose keys from whatever identifies the
// scan. Entries expire lazily: an expired entry is removed on the Get that
// observes it, never proactively. Cache is an explicit, injectable
// dependency so tests can supply a zero-TTL or fixed-clock instance.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry
}

// NewCache creates a cache with the given TTL. A non-positive TTL makes
// every entry expire immediately, which is useful in tests.
func NewCache(ttl time.Duration) *Cache {
	return NewCacheWithClock(ttl, time.Now)
}

// NewCacheWithClock creates a cache with an injected clock.
func NewCacheWithClock(ttl time.Duration, now func() time.Time) *Cache {
	return &Cache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]cacheEntry),
	}
}

func cacheKey(parts []string) string {
	return strings.Join(parts, "|")
}

// Get returns the cached value for the composite key, lazily evicting it
// when expired.
func (c *Cache) Get(parts ...string) (any, bool) {
	key := cacheKey(parts)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.created) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.value, true
}

// Set stores value under the composite key. A later Set on the same key
// overwrites; last write wins, which is fine because discovery results are
// idempotent for a fixed key within the TTL window.
func (c *Cache) Set(value any, parts ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(parts)] = cacheEntry{value: value, created: c.now()}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Len reports the number of stored entries, including any not yet lazily
// evicted.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
