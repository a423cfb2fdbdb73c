package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSlidingWindowAllowsAtMostRPlusOne verifies spec §8's rate-limit
// invariant: over any window of length W with rate R, at most R+1 consume
// calls succeed from a single key.
func TestSlidingWindowAllowsAtMostRPlusOne(t *testing.T) {
	limiter := New(NewMemoryStore(), Config{MaxRequests: 3, WindowMS: 60_000})
	ctx := context.Background()

	successes := 0
	for i := 0; i < 5; i++ {
		allowed, _, err := limiter.Consume(ctx, "k1")
		require.NoError(t, err)
		if allowed {
			successes++
		}
	}
	assert.Equal(t, 3, successes)
}

func TestSkipKeysBypassLimiting(t *testing.T) {
	limiter := New(NewMemoryStore(), Config{MaxRequests: 1, WindowMS: 60_000, SkipKeys: map[string]bool{"admin": true}})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		allowed, _, err := limiter.Consume(ctx, "admin")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
}

func TestPresets(t *testing.T) {
	assert.Equal(t, 100, Presets[PresetStandard].MaxRequests)
	assert.Equal(t, 10, Presets[PresetStrict].MaxRequests)
	assert.Equal(t, int64(86_400_000), Presets[PresetDaily].WindowMS)
}

func TestResetClearsWindow(t *testing.T) {
	limiter := New(NewMemoryStore(), Config{MaxRequests: 1, WindowMS: 60_000})
	ctx := context.Background()

	allowed, _, err := limiter.Consume(ctx, "k2")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, err = limiter.Consume(ctx, "k2")
	require.NoError(t, err)
	require.False(t, allowed)

	require.NoError(t, limiter.Reset(ctx, "k2"))
	allowed, _, err = limiter.Consume(ctx, "k2")
	require.NoError(t, err)
	assert.True(t, allowed)
}
