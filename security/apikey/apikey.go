// Package apikey implements API-key issuance, storage, and authentication
// (spec §4.8, §3 APIKey, §8 Authz). Format is `prefix_` followed by >=16
// alphanumerics; grounded on the teacher pack's 2lar-b2 `pkg/auth/jwt.go`
// (github.com/golang-jwt/jwt/v5 token issuance/validation shape), adapted
// here from bearer-JWT-per-request to a long-lived opaque key whose body is
// itself a signed JWT carrying the key ID and role — so Authenticate can
// reject a tampered or forged key string without a store round-trip, while
// Revoke still requires the store lookup (a signature alone can't know a
// key was deleted).
package apikey

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nahisaho/YAGOKORO-sub003/kinderr"
	"github.com/nahisaho/YAGOKORO-sub003/knowledge"
)

// formatPattern matches `prefix_` followed by >=16 alphanumerics (spec §4.8).
var formatPattern = regexp.MustCompile(`^[a-z][a-z0-9]*_[A-Za-z0-9]{16,}$`)

// DefaultPermissions is the default permission set granted to each role,
// per spec §4.8 "Creation assigns a role and the role's default permission
// set". Admin is granted a wildcard rather than an enumerated list; Authorize
// special-cases it ("admin passes any permission").
var DefaultPermissions = map[knowledge.UserRole][]knowledge.Permission{
	knowledge.RoleReader: {"read:entities", "read:relations", "read:communities", "read:paths", "query:local", "query:global"},
	knowledge.RoleWriter: {"read:entities", "read:relations", "read:communities", "read:paths", "query:local", "query:global",
		"write:entities", "write:relations", "write:ingest"},
	knowledge.RoleAdmin: {"admin:*"},
}

// Reason is a closed tag for why Authenticate rejected a key.
type Reason string

const (
	ReasonMissing Reason = "missing"
	ReasonFormat  Reason = "format_invalid"
	ReasonUnknown Reason = "unknown"
	ReasonExpired Reason = "expired"
)

// AuthError reports an authentication failure with its Reason.
type AuthError struct {
	Reason Reason
	*kinderr.Error
}

// Store persists APIKey records, keyed by ID. Implementations must be safe
// for concurrent use (§5: "the API-key store is atomic").
type Store interface {
	Save(ctx context.Context, key knowledge.APIKey) error
	Get(ctx context.Context, id string) (knowledge.APIKey, bool, error)
	Delete(ctx context.Context, id string) error
	Touch(ctx context.Context, id string, at time.Time) error
}

// MemoryStore is an in-memory Store, the default for tests and single-process
// deployments.
type MemoryStore struct {
	mu   sync.RWMutex
	keys map[string]knowledge.APIKey
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{keys: make(map[string]knowledge.APIKey)} }

func (s *MemoryStore) Save(_ context.Context, key knowledge.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key.ID] = key
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (knowledge.APIKey, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.keys[id]
	return k, ok, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, id)
	return nil
}

func (s *MemoryStore) Touch(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[id]
	if !ok {
		return kinderr.New(kinderr.NotFound, "api key %q not found", id)
	}
	k.LastUsedAt = &at
	s.keys[id] = k
	return nil
}

// Manager issues and authenticates API keys.
type Manager struct {
	Store  Store
	Prefix string // default "yag"
	signingKey []byte
}

// NewManager constructs a Manager; signingKey is the HS256 key used to sign
// each key body's embedded JWT.
func NewManager(store Store, prefix string, signingKey []byte) *Manager {
	if prefix == "" {
		prefix = "yag"
	}
	return &Manager{Store: store, Prefix: prefix, signingKey: signingKey}
}

type keyClaims struct {
	KeyID string             `json:"kid"`
	Role  knowledge.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Create issues a new APIKey for name/role, optionally expiring at expiresAt,
// and returns the APIKey record plus the opaque secret string the caller
// must present on every request (never recoverable from the store again).
func (m *Manager) Create(ctx context.Context, name string, role knowledge.UserRole, expiresAt *time.Time) (knowledge.APIKey, string, error) {
	if !role.IsValid() {
		return knowledge.APIKey{}, "", kinderr.New(kinderr.ValidationError, "unknown role %q", role).WithField("role")
	}
	id := uuid.NewString()
	record := knowledge.APIKey{
		ID:          id,
		Name:        name,
		Role:        role,
		Permissions: append([]knowledge.Permission(nil), DefaultPermissions[role]...),
		CreatedAt:   time.Now(),
		ExpiresAt:   expiresAt,
	}
	if err := m.Store.Save(ctx, record); err != nil {
		return knowledge.APIKey{}, "", err
	}

	claims := keyClaims{KeyID: id, Role: role, RegisteredClaims: jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(record.CreatedAt)}}
	if expiresAt != nil {
		claims.ExpiresAt = jwt.NewNumericDate(*expiresAt)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.signingKey)
	if err != nil {
		return knowledge.APIKey{}, "", kinderr.Wrap(kinderr.Fatal, err, "failed to sign api key")
	}
	secret := m.Prefix + "_" + base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString([]byte(signed))
	return record, secret, nil
}

// IsValidFormat reports whether secret matches the `prefix_<>=16 alphanum>`
// shape required before any store lookup is attempted (spec §8 boundary).
func IsValidFormat(secret string) bool {
	return formatPattern.MatchString(secret)
}

// Authenticate validates a presented secret against format, signature, store
// existence, and expiry, in that order (spec §4.8 "distinct error reasons"),
// and touches LastUsedAt on success.
func (m *Manager) Authenticate(ctx context.Context, secret string) (knowledge.APIKey, error) {
	if secret == "" {
		return knowledge.APIKey{}, &AuthError{Reason: ReasonMissing, Error: kinderr.New(kinderr.PermissionDenied, "missing api key")}
	}
	if !IsValidFormat(secret) {
		return knowledge.APIKey{}, &AuthError{Reason: ReasonFormat, Error: kinderr.New(kinderr.PermissionDenied, "malformed api key")}
	}
	_, signedPart, _ := strings.Cut(secret, "_")
	tokenBytes, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(signedPart)
	if err != nil {
		return knowledge.APIKey{}, &AuthError{Reason: ReasonFormat, Error: kinderr.New(kinderr.PermissionDenied, "malformed api key")}
	}

	claims := &keyClaims{}
	// Expiry is judged from the stored record below, so the token's own exp
	// claim is not validated here.
	_, err = jwt.ParseWithClaims(string(tokenBytes), claims, func(t *jwt.Token) (any, error) {
		return m.signingKey, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return knowledge.APIKey{}, &AuthError{Reason: ReasonFormat, Error: kinderr.New(kinderr.PermissionDenied, "api key signature invalid")}
	}

	record, ok, err := m.Store.Get(ctx, claims.KeyID)
	if err != nil {
		return knowledge.APIKey{}, err
	}
	if !ok {
		return knowledge.APIKey{}, &AuthError{Reason: ReasonUnknown, Error: kinderr.New(kinderr.PermissionDenied, "unknown api key")}
	}
	if !record.Valid(time.Now()) {
		return knowledge.APIKey{}, &AuthError{Reason: ReasonExpired, Error: kinderr.New(kinderr.PermissionDenied, "api key expired")}
	}

	now := time.Now()
	_ = m.Store.Touch(ctx, record.ID, now)
	record.LastUsedAt = &now
	return record, nil
}

// Revoke deletes a key by ID, immediately invalidating future Authenticate
// calls for it (the store lookup is what actually gates access).
func (m *Manager) Revoke(ctx context.Context, id string) error {
	return m.Store.Delete(ctx, id)
}

// GenerateRawSecret is a convenience for tests needing a syntactically valid
// but unsigned/unregistered key string (e.g. to exercise "unknown key").
func GenerateRawSecret(prefix string) string {
	if prefix == "" {
		prefix = "yag"
	}
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return prefix + "_" + base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf)[:20]
}
