// Package rbac implements role-based authorization and the request-gating
// middleware described in spec §4.8: role -> implicit permission set,
// operation+resource -> required permission, public_operations bypass, and
// a global enabled switch. Grounded on the teacher pack's 2lar-b2
// `interfaces/http/rest/middleware/auth.go` (permission-check-before-handler
// shape), generalized from HTTP middleware to a transport-agnostic
// `Authorize`/`Check` pair any entry point (CLI, MCP server, HTTP) can call.
package rbac

import (
	"context"
	"fmt"

	"github.com/nahisaho/YAGOKORO-sub003/kinderr"
	"github.com/nahisaho/YAGOKORO-sub003/knowledge"
	"github.com/nahisaho/YAGOKORO-sub003/security/apikey"
)

// Permission builds an "operation:resource" permission string (spec §4.8).
func Permission(operation, resource string) knowledge.Permission {
	return knowledge.Permission(fmt.Sprintf("%s:%s", operation, resource))
}

// Authorize reports whether key's role/permission set grants permission.
// Admin passes any permission (spec §4.8 "admin passes any permission").
func Authorize(key knowledge.APIKey, permission knowledge.Permission) bool {
	if key.Role == knowledge.RoleAdmin {
		return true
	}
	for _, p := range key.Permissions {
		if p == permission || p == "admin:*" {
			return true
		}
	}
	return false
}

// OperationMap maps an "operation:resource" key to its required permission.
// In the common case the required permission equals the operation+resource
// themselves; OperationMap exists for the cases where several operations
// share one coarser permission (e.g. both "search" and "list" on "entities"
// only require "read:entities").
type OperationMap map[string]knowledge.Permission

// DefaultOperationMap covers the CLI/server surface named in spec §6.
var DefaultOperationMap = OperationMap{
	"create:entity":      Permission("write", "entities"),
	"get:entity":         Permission("read", "entities"),
	"search:entity":      Permission("read", "entities"),
	"update:entity":      Permission("write", "entities"),
	"delete:entity":      Permission("admin", "entities"),
	"create:relation":    Permission("write", "relations"),
	"search:relation":    Permission("read", "relations"),
	"list:community":     Permission("read", "communities"),
	"get:community":      Permission("read", "communities"),
	"detect:community":   Permission("write", "communities"),
	"summarize:community": Permission("write", "communities"),
	"stats:graph":        Permission("read", "entities"),
	"export:graph":       Permission("admin", "backup"),
	"search:local":       Permission("query", "local"),
	"search:global":      Permission("query", "global"),
	"ingest:arxiv":       Permission("write", "ingest"),
	"ingest:batch":       Permission("write", "ingest"),
	"ingest:pdf":         Permission("write", "ingest"),
	"path:find":          Permission("read", "paths"),
	"backup:create":      Permission("admin", "backup"),
	"backup:restore":     Permission("admin", "backup"),
}

// Middleware gates operation+resource calls behind Authorize, with a
// public_operations bypass list and a global Enabled switch (§4.8: "when
// disabled or auth is absent, every request is allowed").
type Middleware struct {
	Operations        OperationMap
	PublicOperations  map[string]bool
	Enabled           bool
}

// NewMiddleware constructs a Middleware enabled by default, using
// DefaultOperationMap.
func NewMiddleware() *Middleware {
	return &Middleware{Operations: DefaultOperationMap, PublicOperations: map[string]bool{}, Enabled: true}
}

// Check authorizes a single operation for the caller identified by key
// (nil if no auth context is present). It returns nil to allow the request
// and a *kinderr.Error (kind PermissionDenied) to deny it.
func (m *Middleware) Check(ctx context.Context, operation string, key *knowledge.APIKey) error {
	if !m.Enabled || key == nil {
		return nil
	}
	if m.PublicOperations[operation] {
		return nil
	}
	required, ok := m.Operations[operation]
	if !ok {
		// Unmapped operations default to requiring admin, the fail-closed
		// posture for anything the deployment forgot to register.
		required = "admin:*"
	}
	if !Authorize(*key, required) {
		return kinderr.New(kinderr.PermissionDenied, "key %q lacks permission %q for operation %q", key.ID, required, operation)
	}
	return nil
}

// RequireAuthenticated returns the standard "no key at all" denial used by
// write paths regardless of the Enabled switch (spec §8 Authz: "For any
// request with no valid API key, no write operation reaches C1").
func RequireAuthenticated(key *knowledge.APIKey) error {
	if key == nil {
		return kinderr.New(kinderr.PermissionDenied, "request carries no api key")
	}
	return nil
}

// FromAuthError maps an apikey.AuthError's Reason into a denial message
// without leaking the offending key value (§7: "do not log the failing API
// key").
func FromAuthError(err error) error {
	var ae *apikey.AuthError
	if e, ok := err.(*apikey.AuthError); ok {
		ae = e
	}
	if ae == nil {
		return err
	}
	return kinderr.New(kinderr.PermissionDenied, "authentication failed: %s", ae.Reason)
}
