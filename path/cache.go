// cache.go implements the path reasoner's cache (C7.b, spec §4.6): TTL +
// max-size, keyed by a hash of the normalised query, with per-entity
// invalidation and hit-rate reporting. Grounded on the teacher's
// store/redis TTL pattern (SET with expiry, lazy eviction on read) but
// implemented in-process here; a Redis-equivalent distributed
// implementation can satisfy the same Cache surface per §5's "protected by
// per-key mutation" discipline.
package path

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/nahisaho/YAGOKORO-sub003/knowledge"
)

// CacheConfig bounds a Cache's TTL and maximum entry count.
type CacheConfig struct {
	TTL     time.Duration
	MaxSize int
}

func (c CacheConfig) withDefaults() CacheConfig {
	if c.TTL <= 0 {
		c.TTL = 5 * time.Minute
	}
	if c.MaxSize <= 0 {
		c.MaxSize = 1000
	}
	return c
}

type cacheEntry struct {
	paths      []knowledge.Path
	expiresAt  time.Time
	touches    map[string]bool // entity IDs appearing in any returned path
	insertedAt time.Time
}

// Cache is the path-reasoner's result cache. Safe for concurrent use.
type Cache struct {
	config CacheConfig

	mu      sync.Mutex
	entries map[string]*cacheEntry
	hits    int64
	misses  int64
}

// NewCache constructs a Cache with the given config (zero-value defaults
// per withDefaults).
func NewCache(config CacheConfig) *Cache {
	return &Cache{config: config.withDefaults(), entries: make(map[string]*cacheEntry)}
}

// CacheKey hashes a normalised query (start/end/options) into a stable
// string key. Callers should build key from every field that affects the
// result (start, end, max_hops, relation_types, ...).
func CacheKey(q Query) string {
	normalized := fmt.Sprintf("start=%s|startname=%s|end=%s|endname=%s|maxhops=%d|maxpaths=%d|starttype=%s|endtype=%s|rels=%v",
		knowledge.Normalize(q.StartID), knowledge.Normalize(q.StartName),
		knowledge.Normalize(q.EndID), knowledge.Normalize(q.EndName),
		q.Options.MaxHops, q.Options.MaxPaths, q.Options.StartType, q.Options.EndType, q.Options.RelationTypes)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Get returns a cached result for key if present and unexpired, recording a
// hit or miss for HitRate. A cache hit is guaranteed structurally equal to
// a fresh computation (spec §8's cache-soundness invariant) because entries
// are only ever populated from Finder.FindPaths's own output and never
// mutated after Put.
func (c *Cache) Get(key string) ([]knowledge.Path, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		if ok {
			delete(c.entries, key)
		}
		c.misses++
		return nil, false
	}
	c.hits++
	out := make([]knowledge.Path, len(entry.paths))
	copy(out, entry.paths)
	return out, true
}

// Put stores paths under key, evicting the oldest entry if MaxSize would be
// exceeded.
func (c *Cache) Put(key string, paths []knowledge.Path) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.config.MaxSize {
		c.evictOldestLocked()
	}

	touches := make(map[string]bool)
	for _, p := range paths {
		for _, id := range p.EntityIDs() {
			touches[id] = true
		}
	}
	stored := make([]knowledge.Path, len(paths))
	copy(stored, paths)
	c.entries[key] = &cacheEntry{
		paths:      stored,
		expiresAt:  time.Now().Add(c.config.TTL),
		touches:    touches,
		insertedAt: time.Now(),
	}
}

func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.insertedAt.Before(oldestAt) {
			oldestKey = k
			oldestAt = e.insertedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Invalidate drops every cache entry whose path touches entityID (spec
// §4.6: "every cache entry whose path touches that entity is dropped").
func (c *Cache) Invalidate(entityID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if e.touches[entityID] {
			delete(c.entries, k)
		}
	}
}

// HitRate returns the fraction of Get calls that were hits, or 0 if Get has
// never been called.
func (c *Cache) HitRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

// Size reports the current entry count.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// CachedFinder wraps a Finder with a Cache, making FindPaths cache-aware.
type CachedFinder struct {
	Finder *Finder
	Cache  *Cache
}

// NewCachedFinder constructs a CachedFinder over finder with the given cache
// config.
func NewCachedFinder(finder *Finder, config CacheConfig) *CachedFinder {
	return &CachedFinder{Finder: finder, Cache: NewCache(config)}
}

// FindPaths serves from cache when possible, otherwise computes via the
// wrapped Finder and populates the cache.
func (cf *CachedFinder) FindPaths(ctx context.Context, q Query) ([]knowledge.Path, error) {
	key := CacheKey(q)
	if cached, ok := cf.Cache.Get(key); ok {
		return cached, nil
	}
	paths, err := cf.Finder.FindPaths(ctx, q)
	if err != nil {
		return nil, err
	}
	cf.Cache.Put(key, paths)
	return paths, nil
}
