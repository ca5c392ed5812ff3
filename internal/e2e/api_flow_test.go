package e2e

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/fieldserve/fieldserve/internal/app"
	"github.com/fieldserve/fieldserve/internal/auth"
	"github.com/fieldserve/fieldserve/internal/authz"
	"github.com/fieldserve/fieldserve/internal/entity"
	"github.com/fieldserve/fieldserve/internal/shared"
	_ "github.com/fieldserve/fieldserve/testing"
)

type stubAuthRepo struct {
	user *auth.User
}

func (s *stubAuthRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubAuthRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return nil
}

func (s *stubAuthRepo) DeleteSession(ctx context.Context, id string) error {
	return nil
}

type stubStore struct {
	lastWhere  string
	lastValues []any
}

func (s *stubStore) List(ctx context.Context, meta entity.Metadata, where string, values []any, orderBy string, limit, offset int) ([]entity.Record, int, error) {
	s.lastWhere, s.lastValues = where, values
	return []entity.Record{{"id": int64(1), "title": "Fix pump"}}, 1, nil
}

func (s *stubStore) Get(ctx context.Context, meta entity.Metadata, where string, values []any) (entity.Record, error) {
	return nil, shared.ErrNotFound
}

func (s *stubStore) Create(ctx context.Context, meta entity.Metadata, fields map[string]any) (entity.Record, error) {
	return entity.Record{"id": int64(2)}, nil
}

func (s *stubStore) Update(ctx context.Context, meta entity.Metadata, fields map[string]any, where string, values []any) (entity.Record, error) {
	return nil, shared.ErrNotFound
}

func (s *stubStore) Delete(ctx context.Context, meta entity.Metadata, where string, values []any) (bool, error) {
	return false, nil
}

func newServer(t *testing.T) (http.Handler, *stubStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := &app.Config{
		AppEnv:             "test",
		AppRequestTimeout:  10 * time.Second,
		SessionSecret:      "session-secret",
		SessionTTL:         time.Hour,
		CSRFSecret:         "csrf-secret",
		RateLimitPerMinute: 600,
	}

	sessionManager := shared.NewSessionManager(redisClient, "fieldserve_session", cfg.SessionSecret, cfg.SessionTTL, false)
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	repo := &stubAuthRepo{user: &auth.User{
		ID: 42, Email: "cust@test.local", Name: "Customer", Role: authz.RoleCustomer,
		PasswordHash: string(hashed), IsActive: true,
	}}
	authHandler := auth.NewHandler(logger, auth.NewService(repo), sessionManager, csrfManager)

	authzConfig := authz.DefaultConfig()
	store := &stubStore{}
	dispatcher := entity.NewDispatcher(entity.DefaultRegistry(), authzConfig, logger, nil)
	entityHandler := entity.NewHandler(store, authzConfig, logger, nil, nil)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		AuthHandler:    authHandler,
		Dispatcher:     dispatcher,
		EntityHandler:  entityHandler,
	})
	return router, store
}

func sessionCookie(t *testing.T, res *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range res.Result().Cookies() {
		if c.Name == "fieldserve_session" {
			return c
		}
	}
	t.Fatal("session cookie missing")
	return nil
}

// The full client flow: fetch a CSRF token, log in, list work orders,
// and observe the row-level-security narrowing.
func TestAPIFlow(t *testing.T) {
	router, store := newServer(t)

	// Anonymous API access is rejected.
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/work-orders", nil))
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous list: expected 401, got %d", res.Code)
	}

	// A POST without a CSRF token never reaches the login handler.
	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{}`)))
	if res.Code != http.StatusForbidden {
		t.Fatalf("login without csrf: expected 403, got %d", res.Code)
	}

	// Fetch the CSRF token, which also establishes the session cookie.
	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/auth/csrf", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("csrf: expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var csrfBody struct {
		Token string `json:"csrf_token"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &csrfBody); err != nil {
		t.Fatalf("decode csrf: %v", err)
	}
	cookie := sessionCookie(t, res)

	// Log in with the token.
	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"cust@test.local","password":"correctpass"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", csrfBody.Token)
	req.AddCookie(cookie)
	res = httptest.NewRecorder()
	router.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", res.Code, res.Body.String())
	}
	cookie = sessionCookie(t, res)

	// Listing is narrowed to the caller's own rows.
	req = httptest.NewRequest(http.MethodGet, "/api/work-orders", nil)
	req.AddCookie(cookie)
	res = httptest.NewRecorder()
	router.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if store.lastWhere != "WHERE wo.customer_id = $1" {
		t.Fatalf("where = %q", store.lastWhere)
	}
	if len(store.lastValues) != 1 || store.lastValues[0] != int64(42) {
		t.Fatalf("values = %v", store.lastValues)
	}
	var listBody struct {
		RLSApplied bool `json:"rls_applied"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &listBody); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if !listBody.RLSApplied {
		t.Fatal("expected rls_applied true")
	}

	// A role gate the customer fails: deleting an invoice.
	req = httptest.NewRequest(http.MethodDelete, "/api/invoices/9", nil)
	req.Header.Set("X-CSRF-Token", csrfBody.Token)
	req.AddCookie(cookie)
	res = httptest.NewRecorder()
	router.ServeHTTP(res, req)
	if res.Code != http.StatusForbidden {
		t.Fatalf("invoice delete: expected 403, got %d", res.Code)
	}
}
