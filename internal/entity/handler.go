package entity

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fieldserve/fieldserve/internal/authz"
	"github.com/fieldserve/fieldserve/internal/platform/httpx"
	"github.com/fieldserve/fieldserve/internal/shared"
)

// AuditRecorder receives one entry per mutation. Implementations enqueue
// rather than write inline; a recording failure never fails the request.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Handler serves the generic CRUD surface for every registered entity.
// The pipeline has already authenticated, gated and scoped the request
// by the time any of these methods run.
type Handler struct {
	store     Store
	cfg       *authz.Config
	logger    *slog.Logger
	validator *validator.Validate
	audit     AuditRecorder
	observer  Observer
}

// NewHandler constructs a Handler. audit and observer may be nil.
func NewHandler(store Store, cfg *authz.Config, logger *slog.Logger, audit AuditRecorder, observer Observer) *Handler {
	return &Handler{
		store:     store,
		cfg:       cfg,
		logger:    logger,
		validator: validator.New(),
		audit:     audit,
		observer:  observer,
	}
}

// MountRoutes registers the generic routes on the router. The dispatcher
// pipeline must wrap this subtree.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

type listParams struct {
	Page    int `validate:"min=1"`
	PerPage int `validate:"min=1,max=100"`
}

type listResponse struct {
	Data       []Record          `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
	RLSApplied bool              `json:"rls_applied"`
}

type itemResponse struct {
	Data       Record `json:"data"`
	RLSApplied bool   `json:"rls_applied"`
}

// List serves GET /api/{entity}.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	scope := ScopeFromContext(r.Context())
	if scope == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	meta := scope.Meta

	params := listParams{Page: 1, PerPage: 20}
	if raw := r.URL.Query().Get("page"); raw != "" {
		params.Page, _ = strconv.Atoi(raw)
	}
	if raw := r.URL.Query().Get("per_page"); raw != "" {
		params.PerPage, _ = strconv.Atoi(raw)
	}
	if err := h.validator.Struct(params); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid pagination parameters")
		return
	}

	builder := NewQueryBuilder(meta)
	builder.ApplySearch(r.URL.Query().Get("q"))
	filters := make(map[string]string)
	for _, column := range meta.Filterable {
		if value := r.URL.Query().Get(column); value != "" {
			filters[column] = value
		}
	}
	builder.ApplyFilters(filters)

	clause, values := builder.Clause()
	frag := h.cfg.Filter(scope.Auth, meta.Resource)
	where, whereValues, applied, err := authz.Compose(clause, values, frag)
	if err != nil {
		h.internal(w, "compose predicate", meta.Name, err)
		return
	}
	if applied && h.observer != nil {
		h.observer.RLSApplied(meta.Resource)
	}

	orderBy := builder.OrderBy(r.URL.Query().Get("sort"), r.URL.Query().Get("dir"))
	offset := (params.Page - 1) * params.PerPage

	records, total, err := h.store.List(r.Context(), meta, where, whereValues, orderBy, params.PerPage, offset)
	if err != nil {
		h.internal(w, "list", meta.Name, err)
		return
	}
	if records == nil {
		records = []Record{}
	}

	httpx.JSON(w, http.StatusOK, listResponse{
		Data:       records,
		Pagination: shared.NewPagination(params.Page, params.PerPage, total),
		RLSApplied: applied,
	})
}

// Get serves GET /api/{entity}/{id}. A row the policy filters away is a
// plain not-found; existence never leaks.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	scope := ScopeFromContext(r.Context())
	if scope == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	meta := scope.Meta

	id, ok := h.itemID(w, r)
	if !ok {
		return
	}

	where, values, applied, err := h.itemPredicate(scope, id)
	if err != nil {
		h.internal(w, "compose predicate", meta.Name, err)
		return
	}
	if applied && h.observer != nil {
		h.observer.RLSApplied(meta.Resource)
	}

	record, err := h.store.Get(r.Context(), meta, where, values)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, itemResponse{Data: record, RLSApplied: applied})
}

// Create serves POST /api/{entity}.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	scope := ScopeFromContext(r.Context())
	if scope == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	meta := scope.Meta

	var payload map[string]any
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}

	fields := make(map[string]any)
	for _, column := range meta.CreatableFields() {
		if value, ok := payload[column]; ok {
			fields[column] = value
		}
	}
	for _, column := range meta.RequiredFields() {
		if _, ok := fields[column]; !ok {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "missing required field "+column)
			return
		}
	}

	// A caller under an ownership policy can only create rows it will be
	// able to see afterwards.
	if column, ok := h.ownerColumn(scope); ok && scope.Auth.UserID > 0 {
		fields[column] = scope.Auth.UserID
	}

	record, err := h.store.Create(r.Context(), meta, fields)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}

	h.recordAudit(r.Context(), scope, "create", record)
	httpx.JSON(w, http.StatusCreated, itemResponse{Data: record})
}

// Update serves PATCH /api/{entity}/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	scope := ScopeFromContext(r.Context())
	if scope == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	meta := scope.Meta

	id, ok := h.itemID(w, r)
	if !ok {
		return
	}

	var payload map[string]any
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}

	fields := make(map[string]any)
	for _, column := range meta.UpdatableFields() {
		if value, ok := payload[column]; ok {
			fields[column] = value
		}
	}
	if len(fields) == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "no updateable fields in body")
		return
	}

	where, values, applied, err := h.itemPredicate(scope, id)
	if err != nil {
		h.internal(w, "compose predicate", meta.Name, err)
		return
	}
	if applied && h.observer != nil {
		h.observer.RLSApplied(meta.Resource)
	}

	record, err := h.store.Update(r.Context(), meta, fields, where, values)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}

	h.recordAudit(r.Context(), scope, "update", record)
	httpx.JSON(w, http.StatusOK, itemResponse{Data: record, RLSApplied: applied})
}

// Delete serves DELETE /api/{entity}/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	scope := ScopeFromContext(r.Context())
	if scope == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	meta := scope.Meta

	id, ok := h.itemID(w, r)
	if !ok {
		return
	}

	where, values, applied, err := h.itemPredicate(scope, id)
	if err != nil {
		h.internal(w, "compose predicate", meta.Name, err)
		return
	}
	if applied && h.observer != nil {
		h.observer.RLSApplied(meta.Resource)
	}

	deleted, err := h.store.Delete(r.Context(), meta, where, values)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	if !deleted {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}

	h.recordAudit(r.Context(), scope, "delete", Record{meta.IDColumn: id})
	httpx.NoContent(w)
}

// itemPredicate composes the id match with the row-level-security
// fragment in the id predicate's coordinate space.
func (h *Handler) itemPredicate(scope *Scope, id int64) (string, []any, bool, error) {
	meta := scope.Meta
	existing := meta.Alias + "." + meta.IDColumn + " = $1"
	frag := h.cfg.Filter(scope.Auth, meta.Resource)
	return authz.Compose(existing, []any{id}, frag)
}

func (h *Handler) itemID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, httpx.ErrNotFound)
		return 0, false
	}
	return id, true
}

// ownerColumn reports the column an ownership policy binds for the
// scoped resource, when the caller operates under one.
func (h *Handler) ownerColumn(scope *Scope) (string, bool) {
	rule, ok := h.cfg.Resource(scope.Meta.Resource)
	if !ok {
		return "", false
	}
	column, ok := rule.OwnerColumns[scope.Auth.Policy]
	return column, ok
}

func (h *Handler) recordAudit(ctx context.Context, scope *Scope, action string, record Record) {
	if h.audit == nil {
		return
	}
	entityID := ""
	if id, ok := record[scope.Meta.IDColumn]; ok {
		entityID = toString(id)
	}
	log := shared.AuditLog{
		ActorID:  scope.Auth.UserID,
		Role:     scope.Auth.Role,
		Action:   action,
		Entity:   scope.Meta.Name,
		EntityID: entityID,
		At:       time.Now().UTC(),
	}
	if err := h.audit.Record(ctx, log); err != nil && h.logger != nil {
		h.logger.Warn("audit record", slog.String("entity", scope.Meta.Name), slog.Any("error", err))
	}
}

func (h *Handler) respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, shared.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, httpx.ErrDuplicate):
		httpx.RespondError(w, httpx.ErrDuplicate)
	case errors.Is(err, httpx.ErrValidation):
		httpx.RespondError(w, httpx.ErrValidation)
	default:
		if h.logger != nil {
			h.logger.Error("entity store", slog.Any("error", err))
		}
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func (h *Handler) internal(w http.ResponseWriter, op, entity string, err error) {
	if h.logger != nil {
		h.logger.Error(op, slog.String("entity", entity), slog.Any("error", err))
	}
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

func toString(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case int64:
		return strconv.FormatInt(value, 10)
	case int32:
		return strconv.FormatInt(int64(value), 10)
	case int:
		return strconv.Itoa(value)
	default:
		return ""
	}
}
