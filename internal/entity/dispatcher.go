package entity

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fieldserve/fieldserve/internal/authz"
	"github.com/fieldserve/fieldserve/internal/platform/httpx"
	"github.com/fieldserve/fieldserve/internal/shared"
)

// Dispatcher runs the per-request pipeline for the generic surface:
// authenticate, resolve entity metadata, gate the operation through the
// permission table, resolve the row-level-security policy and attach the
// scope to the request context. Stages execute strictly in this order
// and each can terminate the request; none retries.
type Dispatcher struct {
	registry *Registry
	cfg      *authz.Config
	logger   *slog.Logger
	observer Observer
}

// Observer records authorization outcomes, typically backed by
// Prometheus counters.
type Observer interface {
	AuthzDenied(resource, op string)
	RLSApplied(resource string)
}

// NewDispatcher constructs a Dispatcher. observer may be nil.
func NewDispatcher(registry *Registry, cfg *authz.Config, logger *slog.Logger, observer Observer) *Dispatcher {
	return &Dispatcher{registry: registry, cfg: cfg, logger: logger, observer: observer}
}

// Pipeline is the chi middleware mounted under /api/{entity}.
func (d *Dispatcher) Pipeline(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Stage 1: authenticate. Identity and role come from the session
		// the outer middleware loaded; there is no anonymous access to
		// the generic surface.
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.UserID() == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
			return
		}
		userID, err := strconv.ParseInt(sess.UserID(), 10, 64)
		if err != nil {
			if d.logger != nil {
				d.logger.Error("parse session user id", slog.String("value", sess.UserID()))
			}
			// Malformed identity: the request proceeds only as far as an
			// ownership policy will let an unbound identity go, i.e. not
			// at all.
			userID = 0
		}
		role := sess.Role()

		// Stage 2: resolve entity + metadata.
		meta, ok := d.registry.Lookup(chi.URLParam(r, "entity"))
		if !ok {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown entity")
			return
		}

		// Stage 3: permission gate.
		op := operationFor(r)
		if !d.cfg.IsAllowed(role, meta.Resource, op) {
			if d.observer != nil {
				d.observer.AuthzDenied(meta.Resource, string(op))
			}
			if d.logger != nil {
				d.logger.Warn("authorization denied",
					slog.String("role", role),
					slog.String("resource", meta.Resource),
					slog.String("op", string(op)))
			}
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "operation not permitted")
			return
		}

		// Stage 4: resolve the RLS policy and attach the scope. Row
		// filtering itself happens later, when the handler composes the
		// final predicate; narrowing is not a rejection.
		scope := &Scope{
			Meta:      meta,
			Operation: op,
			Auth: &authz.RequestAuthContext{
				Role:     role,
				UserID:   userID,
				Resource: meta.Resource,
				Policy:   d.cfg.ResolvePolicy(role, meta.Resource),
			},
		}
		next.ServeHTTP(w, r.WithContext(ContextWithScope(r.Context(), scope)))
	})
}

// operationFor maps the request shape onto a gated operation: collection
// GET is a list, item GET a read; POST creates, PATCH/PUT update,
// DELETE deletes.
func operationFor(r *http.Request) authz.Operation {
	item := hasItemSegment(r.URL.Path)
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		if item {
			return authz.OpRead
		}
		return authz.OpList
	case http.MethodPost:
		return authz.OpCreate
	case http.MethodPatch, http.MethodPut:
		return authz.OpUpdate
	case http.MethodDelete:
		return authz.OpDelete
	default:
		return authz.Operation(strings.ToLower(r.Method))
	}
}

// hasItemSegment reports whether the path addresses a single row, i.e.
// /api/{entity}/{id}.
func hasItemSegment(path string) bool {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	return len(segments) >= 3
}
