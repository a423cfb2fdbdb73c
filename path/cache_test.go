package path

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nahisaho/YAGOKORO-sub003/knowledge"
)

func samplePaths() []knowledge.Path {
	return []knowledge.Path{{
		Steps: []knowledge.PathStep{{Entity: knowledge.Entity{ID: "a"}}, {Entity: knowledge.Entity{ID: "b"}}},
		Hops:  1,
		Score: 0.9,
	}}
}

func TestCacheGetPutRoundTrip(t *testing.T) {
	c := NewCache(CacheConfig{TTL: time.Minute, MaxSize: 10})
	key := CacheKey(Query{StartID: "a", EndID: "b"})

	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Put(key, samplePaths())
	got, ok := c.Get(key)
	assert.True(t, ok)
	assert.Equal(t, samplePaths(), got)
}

func TestCacheSoundnessHitEqualsStructurally(t *testing.T) {
	// §8: "For any path-reasoner cache hit on (a, b, options), the returned
	// result is structurally equal to a fresh computation."
	c := NewCache(CacheConfig{TTL: time.Minute, MaxSize: 10})
	key := CacheKey(Query{StartID: "a", EndID: "b"})
	fresh := samplePaths()
	c.Put(key, fresh)

	hit, ok := c.Get(key)
	assert.True(t, ok)
	assert.Equal(t, fresh, hit)
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(CacheConfig{TTL: time.Millisecond, MaxSize: 10})
	key := CacheKey(Query{StartID: "a", EndID: "b"})
	c.Put(key, samplePaths())
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get(key)
	assert.False(t, ok)
}

func TestInvalidateDropsTouchingEntries(t *testing.T) {
	c := NewCache(CacheConfig{TTL: time.Minute, MaxSize: 10})
	key := CacheKey(Query{StartID: "a", EndID: "b"})
	c.Put(key, samplePaths())

	c.Invalidate("b")

	_, ok := c.Get(key)
	assert.False(t, ok)
}

func TestHitRate(t *testing.T) {
	c := NewCache(CacheConfig{TTL: time.Minute, MaxSize: 10})
	key := CacheKey(Query{StartID: "a", EndID: "b"})
	c.Put(key, samplePaths())

	c.Get(key)
	c.Get("missing")

	assert.InDelta(t, 0.5, c.HitRate(), 0.001)
}

func TestMaxSizeEviction(t *testing.T) {
	c := NewCache(CacheConfig{TTL: time.Minute, MaxSize: 1})
	c.Put(CacheKey(Query{StartID: "a"}), samplePaths())
	c.Put(CacheKey(Query{StartID: "c"}), samplePaths())

	assert.Equal(t, 1, c.Size())
}
