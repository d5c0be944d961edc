package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/backoffice/internal/app"
	"github.com/odyssey-erp/backoffice/internal/auth"
	"github.com/odyssey-erp/backoffice/internal/observability"
	"github.com/odyssey-erp/backoffice/internal/platform/httpx"
	"github.com/odyssey-erp/backoffice/internal/queues"
	queueshttp "github.com/odyssey-erp/backoffice/internal/queues/http"
	"github.com/odyssey-erp/backoffice/internal/shared"
	"github.com/odyssey-erp/backoffice/internal/tenancy"
	"github.com/odyssey-erp/backoffice/internal/upstream"
	_ "github.com/odyssey-erp/backoffice/testing"
)

const sessionCookie = "test_session"

type userRepo struct{ user *auth.User }

func (r userRepo) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	if r.user == nil || r.user.Email != email {
		return nil, shared.ErrNotFound
	}
	return r.user, nil
}

func (userRepo) RecordLogin(context.Context, auth.Login) error { return nil }
func (userRepo) DeleteSession(context.Context, string) error   { return nil }

type tenantStore struct {
	tenant  tenancy.Tenant
	modules []string
}

func (s tenantStore) Tenant(_ context.Context, id int64) (tenancy.Tenant, error) {
	if id != s.tenant.ID {
		return tenancy.Tenant{}, httpx.ErrNotFound
	}
	return s.tenant, nil
}

func (s tenantStore) Modules(context.Context, int64) ([]string, error) {
	return s.modules, nil
}

type salesCaller struct{}

func (salesCaller) SearchRead(_ context.Context, model string, _ upstream.Domain, _ upstream.SearchOptions) ([]upstream.Record, error) {
	if model != "sale.order" {
		return nil, nil
	}
	return []upstream.Record{{
		"id":           int64(11),
		"name":         "S00011",
		"partner_id":   []any{int64(5), "Acme"},
		"date_order":   "2025-01-02 09:00:00",
		"amount_total": "120.00",
		"state":        "sale",
	}}, nil
}

func (salesCaller) SearchCount(context.Context, string, upstream.Domain) (int, error) { return 0, nil }

func (salesCaller) Create(context.Context, string, map[string]any) (int64, error) { return 0, nil }

func (salesCaller) Read(context.Context, string, []int64, []string) ([]upstream.Record, error) {
	return nil, nil
}

type server struct {
	handler http.Handler
	cookie  *http.Cookie
	csrf    string
}

func newServer(t *testing.T) *server {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &auth.User{ID: 4, TenantID: 9, Email: "ops@acme.test", PasswordHash: string(hash), IsActive: true}

	cfg := &app.Config{AppEnv: "test", RateLimitPerMinute: 1000, WriteLimitPerMinute: 100}
	sessions := shared.NewSessionManager(client, sessionCookie, "session-secret", time.Hour, false)
	csrf := shared.NewCSRFManager("csrf-secret")
	metrics := observability.NewMetrics()

	tenants := tenancy.NewService(
		tenantStore{tenant: tenancy.Tenant{ID: 9, Name: "Acme", Active: true}, modules: []string{"sales"}},
		tenancy.NewModuleCache(client, time.Minute),
		nil,
		time.Second,
	)
	guard := tenancy.Middleware{Service: tenants}

	svc := queues.NewService(queues.Options{}, nil, queues.NewMetrics(metrics.Registerer()), nil)
	svc.WithNow(func() time.Time { return time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC) })
	queueHandler := queueshttp.NewHandler(svc, func(ctx context.Context) (queues.Caller, int64, error) {
		tenant, ok := tenancy.TenantFromContext(ctx)
		require.True(t, ok)
		return salesCaller{}, tenant.ID, nil
	}, nil)

	router := app.NewRouter(app.RouterParams{
		Config:         cfg,
		SessionManager: sessions,
		CSRFManager:    csrf,
		AuthHandler:    auth.NewHandler(nil, auth.NewService(userRepo{user: user}), sessions, csrf),
		QueueHandler:   queueHandler,
		ModuleGuard:    guard.RequireModule,
		Metrics:        metrics,
	})
	return &server{handler: router}
}

func (s *server) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if s.cookie != nil {
		req.AddCookie(s.cookie)
	}
	if s.csrf != "" {
		req.Header.Set(shared.CSRFHeader, s.csrf)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			s.cookie = c
		}
	}
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, target any) {
	t.Helper()
	env := struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	require.True(t, env.Success)
	require.NoError(t, json.Unmarshal(env.Data, target))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	env := struct {
		Error httpx.ErrorBody `json:"error"`
	}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Error.Code
}

func (s *server) login(t *testing.T) {
	t.Helper()
	rec := s.do(t, http.MethodGet, "/auth/csrf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var token struct {
		CSRFToken string `json:"csrfToken"`
	}
	decode(t, rec, &token)
	s.csrf = token.CSRFToken

	rec = s.do(t, http.MethodPost, "/auth/login", map[string]string{"email": "ops@acme.test", "password": "s3cret-pass"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login struct {
		TenantID  int64  `json:"tenantId"`
		CSRFToken string `json:"csrfToken"`
	}
	decode(t, rec, &login)
	require.Equal(t, int64(9), login.TenantID)
	s.csrf = login.CSRFToken
}

func TestHealthz(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestQueueRequiresSession(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/sales/queues", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, httpx.CodeUnauthorized, errorCode(t, rec))
}

func TestUnsafeRequestWithoutCSRFIsRejected(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodPost, "/auth/login", map[string]string{"email": "ops@acme.test", "password": "s3cret-pass"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, httpx.CodeForbidden, errorCode(t, rec))
}

func TestLoggedInUserReadsEntitledQueue(t *testing.T) {
	s := newServer(t)
	s.login(t)

	rec := s.do(t, http.MethodGet, "/sales/queues?queue=to_fulfill", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result struct {
		Queue    string `json:"queue"`
		ItemType string `json:"itemType"`
		Items    []struct {
			ID    int64  `json:"id"`
			Queue string `json:"queue"`
		} `json:"items"`
		KPI struct {
			ToFulfill struct {
				Count int `json:"count"`
			} `json:"toFulfill"`
		} `json:"kpi"`
	}
	decode(t, rec, &result)
	require.Equal(t, "to_fulfill", result.Queue)
	require.Equal(t, "order", result.ItemType)
	require.Len(t, result.Items, 1)
	require.Equal(t, int64(11), result.Items[0].ID)
	require.Equal(t, 1, result.KPI.ToFulfill.Count)
}

func TestLoggedInUserWithoutEntitlementIsForbidden(t *testing.T) {
	s := newServer(t)
	s.login(t)

	rec := s.do(t, http.MethodGet, "/purchase/queues", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, httpx.CodeForbidden, errorCode(t, rec))
}

func TestMetricsEndpointExposesQueueCounters(t *testing.T) {
	s := newServer(t)
	s.login(t)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/sales/queues", nil).Code)

	rec := s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "odyssey_queue_requests_total"))
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, httpx.CodeNotFound, errorCode(t, rec))
}
