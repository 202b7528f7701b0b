package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/maintlog/logbook-gateway/internal/core/domain"
)

const userPayload = `{
	"username": "alice",
	"email": "alice@example.com",
	"first_name": "Alice",
	"last_name": "Smith",
	"is_staff": false,
	"is_superuser": false,
	"role": {
		"role": "technician",
		"role_name": "Technician",
		"permissions": ["crud_issues", "crud_remedies", "future_cap"],
		"can_view_costs": false,
		"can_view_external_contacts": false
	}
}`

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(srv.URL, time.Second, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestLogin_DecodesUserEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login/" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var creds map[string]string
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			t.Errorf("decode credentials: %v", err)
		}
		if creds["username"] != "alice" || creds["password"] != "pw" {
			t.Errorf("unexpected credentials %v", creds)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"user": ` + userPayload + `}`))
	}))
	defer srv.Close()

	user, err := newTestClient(t, srv).Login(context.Background(), "alice", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.Username != "alice" || user.Role == nil || user.Role.Role != "technician" {
		t.Fatalf("unexpected user %+v", user)
	}
	if !user.Role.HasPermission(domain.PermCRUDIssues) {
		t.Fatalf("known permission lost in decode")
	}
	// Unknown strings ride along opaquely.
	if !user.Role.HasPermission(domain.Permission("future_cap")) {
		t.Fatalf("unknown permission must be carried, not dropped")
	}
}

func TestLogin_RejectionSurfacesUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail": "Invalid credentials."}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Login(context.Background(), "alice", "wrong")

	var ue *domain.UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *domain.UpstreamError, got %v", err)
	}
	if ue.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", ue.StatusCode)
	}
	if ue.Payload["detail"] != "Invalid credentials." {
		t.Fatalf("payload must carry the upstream body, got %v", ue.Payload)
	}
	if !ue.AuthFailure() {
		t.Fatalf("401 must count as an auth failure")
	}
}

func TestCurrentUser_NonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded\n"))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).CurrentUser(context.Background())

	var ue *domain.UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *domain.UpstreamError, got %v", err)
	}
	if ue.AuthFailure() {
		t.Fatalf("502 is a transient failure, not an auth failure")
	}
	if ue.Payload["error"] != "upstream exploded" {
		t.Fatalf("plain-text body must be wrapped, got %v", ue.Payload)
	}
}

func TestCSRFTokenEchoedOnStateChangingCalls(t *testing.T) {
	var sawHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/user/":
			http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "tok-123", Path: "/"})
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(userPayload))
		case "/auth/logout/":
			sawHeader = r.Header.Get("X-CSRFToken")
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	if _, err := c.CurrentUser(context.Background()); err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if sawHeader != "tok-123" {
		t.Fatalf("CSRF cookie must be echoed as a header, got %q", sawHeader)
	}
}

func TestPublicClientSendsNoCSRFHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-CSRFToken"); got != "" {
			t.Errorf("public client must not send CSRF headers, got %q", got)
		}
		if len(r.Cookies()) != 0 {
			t.Errorf("public client must not send cookies")
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c, err := NewPublicClient(srv.URL, time.Second, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewPublicClient: %v", err)
	}
	resp, err := c.Do(context.Background(), http.MethodPost, "/issues/", nil, nil)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestSessionCookiePersistsAcrossCalls(t *testing.T) {
	var sawSession string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login/":
			http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "up-42", Path: "/"})
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"user": ` + userPayload + `}`))
		case "/auth/user/":
			if ck, err := r.Cookie("sessionid"); err == nil {
				sawSession = ck.Value
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(userPayload))
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	if _, err := c.Login(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := c.CurrentUser(context.Background()); err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if sawSession != "up-42" {
		t.Fatalf("upstream session cookie must persist in the jar, got %q", sawSession)
	}
}
