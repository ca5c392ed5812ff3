package entity

import (
	"context"

	"github.com/fieldserve/fieldserve/internal/authz"
)

// Scope is the resolved request scope the pipeline hands to handlers:
// the entity's metadata, the operation being performed, and the
// authorization snapshot (role, user, policy). It is created once per
// request and read-only afterwards.
type Scope struct {
	Meta      Metadata
	Operation authz.Operation
	Auth      *authz.RequestAuthContext
}

type scopeContextKey struct{}

// ContextWithScope stores the resolved scope in the request context.
func ContextWithScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, scope)
}

// ScopeFromContext extracts the resolved scope, nil when the pipeline
// did not run.
func ScopeFromContext(ctx context.Context) *Scope {
	scope, _ := ctx.Value(scopeContextKey{}).(*Scope)
	return scope
}
