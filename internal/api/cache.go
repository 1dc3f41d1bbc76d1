package api

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// responseCache is a small TTL cache for GET responses (mosque listings,
// timetables). Keys are xxhash digests of method+path+query. Mutating calls
// purge by path prefix so stale listings never outlive a write.
type responseCache struct {
	mu      sync.Mutex
	entries map[uint64]cacheEntry
	// paths maps each key back to its path for prefix purges.
	paths map[uint64]string
}

type cacheEntry struct {
	body      []byte
	expiresAt time.Time
}

func newResponseCache() *responseCache {
	return &responseCache{
		entries: make(map[uint64]cacheEntry),
		paths:   make(map[uint64]string),
	}
}

// cacheKey digests the request identity. Query values are encoded in sorted
// order by url.Values.Encode, so equivalent requests share a key.
func cacheKey(method, path string, query url.Values) uint64 {
	h := xxhash.New()
	_, _ = fmt.Fprintf(h, "%s %s?%s", method, path, query.Encode())
	return h.Sum64()
}

func (c *responseCache) get(key uint64) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		delete(c.paths, key)
		return nil, false
	}
	return entry.body, true
}

func (c *responseCache) put(key uint64, path string, body []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{body: body, expiresAt: time.Now().Add(ttl)}
	c.paths[key] = path
}

// purgePrefix drops every cached response whose path starts with prefix.
func (c *responseCache) purgePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, path := range c.paths {
		if strings.HasPrefix(path, prefix) {
			delete(c.entries, key)
			delete(c.paths, key)
		}
	}
}

// purgeAll empties the cache. Used on logout so a future session never sees
// another account's cached data.
func (c *responseCache) purgeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint64]cacheEntry)
	c.paths = make(map[uint64]string)
}
