// Package secrets implements the secret-provider abstraction of spec §4.8:
// get / get-required / validate / list / mask / needs-rotation over an
// env-backed or in-memory store. Grounded on the teacher's own environment
// handling style (plain os.Getenv reads in cmd/ and adapter configs) —
// generalized here into an explicit provider interface per DESIGN NOTES §9
// ("Global ... clients. Wrap in an interface and pass explicitly").
package secrets

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/nahisaho/YAGOKORO-sub003/kinderr"
)

// Provider is the secret-provider contract (§4.8).
type Provider interface {
	Get(key string) (string, bool)
	GetRequired(key string) (string, error)
	List() []string
	Mask(value string) string
	NeedsRotation(key string, maxAge time.Duration) bool
}

// Validate checks that every key in required is present and non-empty,
// returning a kinderr.ValidationError naming the first missing key.
func Validate(p Provider, required []string) error {
	for _, key := range required {
		v, ok := p.Get(key)
		if !ok || v == "" {
			return kinderr.New(kinderr.ValidationError, "required secret %q is not set", key).WithField(key)
		}
	}
	return nil
}

// Mask redacts all but the last 4 characters of value, per the common
// "show last 4" convention; short values are fully redacted.
func Mask(value string) string {
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	return strings.Repeat("*", len(value)-4) + value[len(value)-4:]
}

// EnvProvider reads secrets from process environment variables, each
// prefixed by Prefix (default "YAGOKORO_" per spec §6).
type EnvProvider struct {
	Prefix string

	mu           sync.RWMutex
	lastRotated  map[string]time.Time
}

// NewEnvProvider constructs an EnvProvider with the given prefix (or the
// spec's default if empty).
func NewEnvProvider(prefix string) *EnvProvider {
	if prefix == "" {
		prefix = "YAGOKORO_"
	}
	return &EnvProvider{Prefix: prefix, lastRotated: make(map[string]time.Time)}
}

func (p *EnvProvider) Get(key string) (string, bool) {
	return os.LookupEnv(p.Prefix + key)
}

func (p *EnvProvider) GetRequired(key string) (string, error) {
	v, ok := p.Get(key)
	if !ok || v == "" {
		return "", kinderr.New(kinderr.ValidationError, "required secret %q is not set", key).WithField(key)
	}
	return v, nil
}

func (p *EnvProvider) List() []string {
	var keys []string
	for _, kv := range os.Environ() {
		name, _, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if strings.HasPrefix(name, p.Prefix) {
			keys = append(keys, strings.TrimPrefix(name, p.Prefix))
		}
	}
	return keys
}

func (p *EnvProvider) Mask(value string) string { return Mask(value) }

// RecordRotation notes that key was rotated now; used by NeedsRotation.
func (p *EnvProvider) RecordRotation(key string, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastRotated[key] = at
}

// NeedsRotation reports whether key has never been recorded as rotated, or
// was last rotated longer than maxAge ago.
func (p *EnvProvider) NeedsRotation(key string, maxAge time.Duration) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	last, ok := p.lastRotated[key]
	if !ok {
		return true
	}
	return time.Since(last) > maxAge
}

// MemoryProvider is an in-memory secret store, used in tests and for
// deployments that inject secrets programmatically rather than via env.
type MemoryProvider struct {
	mu          sync.RWMutex
	values      map[string]string
	lastRotated map[string]time.Time
}

// NewMemoryProvider constructs an empty MemoryProvider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{values: make(map[string]string), lastRotated: make(map[string]time.Time)}
}

// Set stores value for key and records the rotation time as now.
func (p *MemoryProvider) Set(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[key] = value
	p.lastRotated[key] = time.Now()
}

func (p *MemoryProvider) Get(key string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[key]
	return v, ok
}

func (p *MemoryProvider) GetRequired(key string) (string, error) {
	v, ok := p.Get(key)
	if !ok || v == "" {
		return "", kinderr.New(kinderr.ValidationError, "required secret %q is not set", key).WithField(key)
	}
	return v, nil
}

func (p *MemoryProvider) List() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	return keys
}

func (p *MemoryProvider) Mask(value string) string { return Mask(value) }

func (p *MemoryProvider) NeedsRotation(key string, maxAge time.Duration) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	last, ok := p.lastRotated[key]
	if !ok {
		return true
	}
	return time.Since(last) > maxAge
}
