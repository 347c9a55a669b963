package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/timvw/evidence-lens/internal/model"
)

// ResultCache caches classification results keyed by page URL.
// When the rendered prompt for a page is unchanged, the cached result is
// reused and no provider call is made.
//
// Entries have a TTL so that long-lived sessions still see model drift.
type ResultCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry // keyed by page URL
	ttl     time.Duration
	hits    int64
	misses  int64
}

type cacheEntry struct {
	contentHash string
	result      model.Result
	cachedAt    time.Time
}

// NewResultCache creates a cache with the given TTL.
// A TTL of 0 disables caching.
func NewResultCache(ttl time.Duration) *ResultCache {
	return &ResultCache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
	}
}

// Enabled reports whether the cache stores anything.
func (c *ResultCache) Enabled() bool {
	return c != nil && c.ttl > 0
}

// Lookup returns a copy of the cached result for key when content matches
// and the entry has not expired.
func (c *ResultCache) Lookup(key, content string) (*model.Result, bool) {
	if !c.Enabled() {
		return nil, false
	}

	hash := hashContent(content)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || entry.contentHash != hash || time.Since(entry.cachedAt) > c.ttl {
		c.misses++
		return nil, false
	}

	c.hits++
	r := entry.result
	return &r, true
}

// Store saves result for key and content.
func (c *ResultCache) Store(key, content string, result model.Result) {
	if !c.Enabled() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &cacheEntry{
		contentHash: hashContent(content),
		result:      result,
		cachedAt:    time.Now(),
	}
}

// Invalidate removes the entry for key, forcing a provider call on the
// next refresh regardless of content.
func (c *ResultCache) Invalidate(key string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// CacheStats are cache counters.
type CacheStats struct {
	Entries int
	Hits    int64
	Misses  int64
}

// Stats returns cache statistics.
func (c *ResultCache) Stats() CacheStats {
	if c == nil {
		return CacheStats{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
}

// hashContent returns a hex-encoded SHA256 hash of the content.
func hashContent(content string) string {
	h := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", h)
}
