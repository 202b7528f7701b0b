package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/maintlog/logbook-gateway/internal/api/metrics"
	gwmiddleware "github.com/maintlog/logbook-gateway/internal/api/middleware"
	"github.com/maintlog/logbook-gateway/internal/core/domain"
	"github.com/maintlog/logbook-gateway/internal/core/ports"
	"github.com/maintlog/logbook-gateway/internal/infrastructure/sessions"
	"github.com/maintlog/logbook-gateway/internal/upstream"
)

type fakeStore struct {
	state     domain.SessionState
	loginErr  error
	loginHits int
	logoutErr error
	checked   bool
	refreshed bool
	closed    bool
}

func (s *fakeStore) Initialize(context.Context, string) {}
func (s *fakeStore) CheckStatus(context.Context) *domain.User {
	s.checked = true
	return s.state.User
}
func (s *fakeStore) Login(_ context.Context, username, _ string) (*domain.User, error) {
	s.loginHits++
	if s.loginErr != nil {
		s.state = domain.SessionState{Phase: domain.PhaseAnonymous}
		return nil, s.loginErr
	}
	user := &domain.User{Username: username}
	s.state = domain.SessionState{User: user, IsAuthenticated: true, Phase: domain.PhaseAuthenticated}
	return user, nil
}
func (s *fakeStore) Logout(context.Context) error {
	s.state = domain.SessionState{Phase: domain.PhaseAnonymous}
	return s.logoutErr
}
func (s *fakeStore) RefreshUser(context.Context)               { s.refreshed = true }
func (s *fakeStore) Snapshot() domain.SessionState             { return s.state }
func (s *fakeStore) Subscribe(func(domain.SessionState)) func() { return func() {} }
func (s *fakeStore) Close()                                    { s.closed = true }

type fakeLimiter struct {
	allowed bool
	err     error
	resets  int
}

func (l *fakeLimiter) Allow(context.Context, string, string) (bool, error) {
	return l.allowed, l.err
}
func (l *fakeLimiter) Reset(context.Context, string, string) error {
	l.resets++
	return nil
}

type fakeAudit struct {
	events []domain.AuditEvent
}

func (a *fakeAudit) Record(_ context.Context, event domain.AuditEvent) error {
	a.events = append(a.events, event)
	return nil
}
func (a *fakeAudit) FindBySession(_ context.Context, sessionID string, _ int64) ([]domain.AuditEvent, error) {
	var out []domain.AuditEvent
	for _, e := range a.events {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

type handlerFixture struct {
	handler *SessionHandler
	store   *fakeStore
	limiter *fakeLimiter
	audit   *fakeAudit
	echo    *echo.Echo
	entry   *sessions.Entry
}

func newFixture(t *testing.T) *handlerFixture {
	t.Helper()
	store := &fakeStore{state: domain.SessionState{Phase: domain.PhaseAnonymous}}
	registry := sessions.NewRegistry(func(string) (ports.SessionStore, *upstream.Client, error) {
		return store, nil, nil
	}, time.Hour, zerolog.Nop(), nil)
	resolver := gwmiddleware.NewSessionResolver(registry, "secret", time.Hour, "/login", zerolog.Nop())

	limiter := &fakeLimiter{allowed: true}
	audit := &fakeAudit{}

	e := echo.New()
	e.Validator = NewValidator()

	return &handlerFixture{
		handler: NewSessionHandler(resolver, limiter, audit, zerolog.Nop()),
		store:   store,
		limiter: limiter,
		audit:   audit,
		echo:    e,
		entry:   &sessions.Entry{ID: "sess-1", Store: store},
	}
}

func (f *handlerFixture) request(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := f.echo.NewContext(req, rec)
	c.Set(gwmiddleware.ContextKeySession, f.entry)
	return c, rec
}

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)
	c, rec := f.request(http.MethodPost, "/session/login", `{"username":"alice","password":"pw"}`)

	if err := f.handler.Login(c); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["is_authenticated"] != true {
		t.Fatalf("response must reflect the committed login: %v", resp)
	}
	if f.limiter.resets != 1 {
		t.Fatalf("successful login must reset the limiter, resets=%d", f.limiter.resets)
	}
}

func TestLogin_MissingFieldsRejected(t *testing.T) {
	f := newFixture(t)
	c, _ := f.request(http.MethodPost, "/session/login", `{"username":"alice"}`)

	err := f.handler.Login(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	if f.store.loginHits != 0 {
		t.Fatalf("invalid payload must not reach the store")
	}
}

func TestLogin_RateLimited(t *testing.T) {
	f := newFixture(t)
	f.limiter.allowed = false
	c, _ := f.request(http.MethodPost, "/session/login", `{"username":"alice","password":"pw"}`)

	if err := f.handler.Login(c); !errors.Is(err, domain.ErrTooManyAttempts) {
		t.Fatalf("expected ErrTooManyAttempts, got %v", err)
	}
	if f.store.loginHits != 0 {
		t.Fatalf("throttled attempt must not reach the upstream")
	}
}

func TestLogin_LimiterFailureFailsOpen(t *testing.T) {
	f := newFixture(t)
	f.limiter.allowed = false
	f.limiter.err = errors.New("redis down")
	c, rec := f.request(http.MethodPost, "/session/login", `{"username":"alice","password":"pw"}`)

	if err := f.handler.Login(c); err != nil {
		t.Fatalf("broken limiter must not block logins: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestLogin_RejectionPropagates(t *testing.T) {
	f := newFixture(t)
	f.store.loginErr = &domain.LoginError{StatusCode: 401, Payload: map[string]any{"detail": "bad creds"}}
	c, _ := f.request(http.MethodPost, "/session/login", `{"username":"alice","password":"wrong"}`)

	err := f.handler.Login(c)
	var le *domain.LoginError
	if !errors.As(err, &le) {
		t.Fatalf("expected *domain.LoginError, got %v", err)
	}
	if f.limiter.resets != 0 {
		t.Fatalf("rejected login must not reset the limiter")
	}
}

func TestLogin_InFlightCountedSeparately(t *testing.T) {
	f := newFixture(t)
	f.store.loginErr = domain.ErrLoginInFlight
	inFlight := metrics.LoginsTotal.WithLabelValues("in_flight")
	errored := metrics.LoginsTotal.WithLabelValues("error")
	inFlightBefore := testutil.ToFloat64(inFlight)
	erroredBefore := testutil.ToFloat64(errored)

	c, _ := f.request(http.MethodPost, "/session/login", `{"username":"alice","password":"pw"}`)
	if err := f.handler.Login(c); !errors.Is(err, domain.ErrLoginInFlight) {
		t.Fatalf("expected ErrLoginInFlight, got %v", err)
	}

	if got := testutil.ToFloat64(inFlight) - inFlightBefore; got != 1 {
		t.Fatalf("expected one in_flight login, got %v", got)
	}
	if got := testutil.ToFloat64(errored) - erroredBefore; got != 0 {
		t.Fatalf("a concurrent login is not an upstream error, got %v extra", got)
	}
}

func TestCheck_ReturnsSnapshot(t *testing.T) {
	f := newFixture(t)
	c, rec := f.request(http.MethodPost, "/session/check", "")

	if err := f.handler.Check(c); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !f.store.checked {
		t.Fatalf("handler must run the status check")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRefresh_RunsWithoutTouchingLoading(t *testing.T) {
	f := newFixture(t)
	c, _ := f.request(http.MethodPost, "/session/refresh", "")

	if err := f.handler.Refresh(c); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !f.store.refreshed {
		t.Fatalf("handler must invoke RefreshUser")
	}
}

func TestPolicy_ReflectsSession(t *testing.T) {
	f := newFixture(t)
	f.store.state = domain.SessionState{
		User: &domain.User{
			Username: "alice",
			Role: &domain.Role{
				Role:        domain.RoleTechnician,
				RoleName:    "Technician",
				Permissions: []domain.Permission{domain.PermCRUDIssues},
			},
		},
		IsAuthenticated: true,
		Phase:           domain.PhaseAuthenticated,
	}
	c, rec := f.request(http.MethodGet, "/session/policy", "")

	if err := f.handler.Policy(c); err != nil {
		t.Fatalf("Policy: %v", err)
	}
	var policy map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &policy); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if policy["can_crud_issues"] != true || policy["can_manage_users"] != false {
		t.Fatalf("unexpected policy %v", policy)
	}
	for _, key := range []string{"can_view_costs", "can_view_external_contacts"} {
		if _, ok := policy[key]; !ok {
			t.Fatalf("policy payload missing %q: %v", key, policy)
		}
	}
	if policy["role_name"] != "Technician" {
		t.Fatalf("role_name = %v", policy["role_name"])
	}
}

func TestGate_EvaluatesRequest(t *testing.T) {
	f := newFixture(t)
	c, rec := f.request(http.MethodPost, "/session/gate", `{"permission":"manage_users"}`)

	if err := f.handler.Gate(c); err != nil {
		t.Fatalf("Gate: %v", err)
	}
	var resp gateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Granted {
		t.Fatalf("anonymous session must not pass a permission gate")
	}
}

func TestAudit_ListsOwnSessionOnly(t *testing.T) {
	f := newFixture(t)
	f.audit.events = []domain.AuditEvent{
		{SessionID: "sess-1", Username: "alice", Kind: domain.AuditLoginOK},
		{SessionID: "other", Username: "bob", Kind: domain.AuditLogout},
	}
	c, rec := f.request(http.MethodGet, "/session/audit", "")

	if err := f.handler.Audit(c); err != nil {
		t.Fatalf("Audit: %v", err)
	}
	var out []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0]["username"] != "alice" {
		t.Fatalf("audit must be scoped to the caller's session, got %v", out)
	}
}

func TestSession_WithoutResolverFails(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	rec := httptest.NewRecorder()
	c := f.echo.NewContext(req, rec)

	err := f.handler.Session(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a session entry, got %v", err)
	}
}

func TestLogout_AlwaysSucceeds(t *testing.T) {
	f := newFixture(t)
	f.store.logoutErr = errors.New("upstream down")
	c, rec := f.request(http.MethodPost, "/session/logout", "")

	if err := f.handler.Logout(c); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if f.store.state.User != nil {
		t.Fatalf("local state must be cleared even when the upstream fails")
	}
}
