// Package security composes the access-control fabric (spec §4.8, C3):
// secret management, API-key authentication, RBAC authorization, rate
// limiting, and input validation, wired into a single Gate that every
// externally-invoked operation passes through before reaching C1-C9.
package security

import (
	"context"

	"github.com/nahisaho/YAGOKORO-sub003/kinderr"
	"github.com/nahisaho/YAGOKORO-sub003/knowledge"
	"github.com/nahisaho/YAGOKORO-sub003/security/apikey"
	"github.com/nahisaho/YAGOKORO-sub003/security/ratelimit"
	"github.com/nahisaho/YAGOKORO-sub003/security/rbac"
)

// Gate mediates every externally-triggered operation: authenticate the
// caller, authorize the operation, then rate-limit it. Request carries the
// operation name and raw API key string presented by the caller.
type Gate struct {
	Keys    *apikey.Manager
	RBAC    *rbac.Middleware
	Limiter *ratelimit.Limiter
}

// NewGate wires a Gate from its three sub-fabrics.
func NewGate(keys *apikey.Manager, rbacMW *rbac.Middleware, limiter *ratelimit.Limiter) *Gate {
	return &Gate{Keys: keys, RBAC: rbacMW, Limiter: limiter}
}

// Admit authenticates rawKey, authorizes operation against it, and consumes
// one rate-limit slot, in that order (fail fast on the cheapest check
// first). Returns the authenticated APIKey on success, or the first
// kinderr.Error encountered. A nil rawKey for a public_operations entry is
// allowed through RBAC but still rate-limited by a synthetic "anonymous" key.
func (g *Gate) Admit(ctx context.Context, operation, rawKey string) (*knowledge.APIKey, error) {
	var key *knowledge.APIKey
	rateKey := "anonymous"

	if rawKey != "" {
		authenticated, err := g.Keys.Authenticate(ctx, rawKey)
		if err != nil {
			return nil, rbac.FromAuthError(err)
		}
		key = &authenticated
		rateKey = authenticated.ID
	} else if g.RBAC.Enabled && !g.RBAC.PublicOperations[operation] {
		return nil, kinderr.New(kinderr.PermissionDenied, "operation %q requires an api key", operation)
	}

	if err := g.RBAC.Check(ctx, operation, key); err != nil {
		return nil, err
	}

	if g.Limiter != nil {
		allowed, _, err := g.Limiter.Consume(ctx, rateKey)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, kinderr.New(kinderr.RateLimited, "rate limit exceeded for %q", rateKey).WithRetryAfter(1)
		}
	}

	return key, nil
}
