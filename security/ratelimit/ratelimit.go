// Package ratelimit implements the sliding-window rate limiter of spec
// §4.8: max_requests per window_ms, skip_keys bypass, Consume vs Check, and
// named presets. Grounded on the teacher pack's 2lar-b2
// `pkg/auth/rate_limiter.go` SlidingWindowLimiter (timestamp-slice window
// trimming under a per-key mutex), generalized here into a Store interface
// so an in-memory or Redis-equivalent backend can satisfy it (§5: "the
// rate-limiter store [is] atomic read-modify-write per key").
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Preset names a pre-configured window/limit pair (spec §4.8).
type Preset string

const (
	PresetStandard Preset = "standard"
	PresetStrict   Preset = "strict"
	PresetRelaxed  Preset = "relaxed"
	PresetHourly   Preset = "hourly"
	PresetDaily    Preset = "daily"
)

// Config is the window/limit pair for one limiter instance.
type Config struct {
	MaxRequests int
	WindowMS    int64
	SkipKeys    map[string]bool
}

// Presets maps each named preset to its Config, per spec §4.8.
var Presets = map[Preset]Config{
	PresetStandard: {MaxRequests: 100, WindowMS: 60_000},
	PresetStrict:   {MaxRequests: 10, WindowMS: 60_000},
	PresetRelaxed:  {MaxRequests: 1000, WindowMS: 60_000},
	PresetHourly:   {MaxRequests: 1000, WindowMS: 3_600_000},
	PresetDaily:    {MaxRequests: 10_000, WindowMS: 86_400_000},
}

// FromPreset returns the Config for a named preset, defaulting to standard
// for an unrecognised name.
func FromPreset(p Preset) Config {
	if cfg, ok := Presets[p]; ok {
		return cfg
	}
	return Presets[PresetStandard]
}

// Store is the rate-limiter's backing store contract; Memory is the
// built-in in-process implementation. A Redis-equivalent distributed
// implementation can satisfy the same interface (§6 "Redis-equivalent keyed
// store").
type Store interface {
	// Record appends a timestamped hit for key and returns the hit count
	// still inside the window ending at now.
	Record(ctx context.Context, key string, now time.Time, window time.Duration) (int, error)
	// Count reports the hit count inside the window ending at now, without
	// recording a new hit (used by Check).
	Count(ctx context.Context, key string, now time.Time, window time.Duration) (int, error)
	Reset(ctx context.Context, key string) error
}

// MemoryStore is an in-process sliding-window Store, one timestamp slice
// per key, pruned to the active window on every access.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{windows: make(map[string][]time.Time)} }

func (s *MemoryStore) prune(key string, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	hits := s.windows[key]
	i := 0
	for i < len(hits) && hits[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		hits = hits[i:]
	}
	s.windows[key] = hits
	return hits
}

func (s *MemoryStore) Record(_ context.Context, key string, now time.Time, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hits := s.prune(key, now, window)
	hits = append(hits, now)
	s.windows[key] = hits
	return len(hits), nil
}

func (s *MemoryStore) Count(_ context.Context, key string, now time.Time, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prune(key, now, window)), nil
}

func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}

// Limiter applies Config against a Store.
type Limiter struct {
	Store  Store
	Config Config
}

// New constructs a Limiter; store defaults to a fresh MemoryStore if nil.
func New(store Store, config Config) *Limiter {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Limiter{Store: store, Config: config}
}

// Consume records one request for key and reports whether it is allowed
// under the configured window/limit (spec §8 "at most R+1 consume calls
// succeed... one for the first request at window start" — the first
// request always succeeds because it is the 1st of MaxRequests+0 prior).
func (l *Limiter) Consume(ctx context.Context, key string) (allowed bool, remaining int, err error) {
	if l.Config.SkipKeys[key] {
		return true, l.Config.MaxRequests, nil
	}
	window := time.Duration(l.Config.WindowMS) * time.Millisecond
	count, err := l.Store.Record(ctx, key, time.Now(), window)
	if err != nil {
		return false, 0, err
	}
	if count > l.Config.MaxRequests {
		return false, 0, nil
	}
	return true, l.Config.MaxRequests - count, nil
}

// Check reports whether key currently has room under the window without
// recording a new hit (a dry-run variant of Consume).
func (l *Limiter) Check(ctx context.Context, key string) (allowed bool, remaining int, err error) {
	if l.Config.SkipKeys[key] {
		return true, l.Config.MaxRequests, nil
	}
	window := time.Duration(l.Config.WindowMS) * time.Millisecond
	count, err := l.Store.Count(ctx, key, time.Now(), window)
	if err != nil {
		return false, 0, err
	}
	if count >= l.Config.MaxRequests {
		return false, 0, nil
	}
	return true, l.Config.MaxRequests - count, nil
}

// Reset clears key's window, used after manual intervention or tests.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.Store.Reset(ctx, key)
}
