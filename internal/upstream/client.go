// Package upstream implements the HTTP client for the external logbook API
// that owns authentication and all logbook data. Each browser session gets
// its own Client so upstream session cookies never leak across users.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/maintlog/logbook-gateway/internal/core/domain"
)

const (
	defaultTimeout  = 15 * time.Second
	csrfCookieName  = "csrftoken"
	csrfHeaderName  = "X-CSRFToken"
	loginEndpoint   = "/auth/login/"
	logoutEndpoint  = "/auth/logout/"
	currentEndpoint = "/auth/user/"
)

// Client talks to the upstream API on behalf of one browser session. The
// authenticated variant carries a cookie jar and echoes the upstream CSRF
// cookie as a header on state-changing calls; the public variant sends no
// credentials at all and exists for endpoints that intentionally accept
// anonymous writes.
type Client struct {
	base   *url.URL
	http   *http.Client
	log    zerolog.Logger
	public bool
}

// NewClient builds an authenticated client with a fresh cookie jar.
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("upstream base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		base: base,
		http: &http.Client{Jar: jar, Timeout: timeout},
		log:  log,
	}, nil
}

// NewPublicClient builds the credential-less client shared by anonymous
// callers.
func NewPublicClient(baseURL string, timeout time.Duration, log zerolog.Logger) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("upstream base url: %w", err)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		base:   base,
		http:   &http.Client{Timeout: timeout},
		log:    log,
		public: true,
	}, nil
}

// Login posts credentials and returns the user extracted from the response's
// "user" envelope.
func (c *Client) Login(ctx context.Context, username, password string) (*domain.User, error) {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(ctx, http.MethodPost, loginEndpoint, bytes.NewReader(body), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return nil, err
	}

	var envelope struct {
		User wireUser `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	return envelope.User.toDomain(c.log), nil
}

// Logout posts to the logout endpoint. The upstream treats it as idempotent.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.Do(ctx, http.MethodPost, logoutEndpoint, nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkStatus(resp)
}

// CurrentUser fetches the identity bound to the jar's session cookie. A 401
// means no valid session and surfaces as *domain.UpstreamError.
func (c *Client) CurrentUser(ctx context.Context) (*domain.User, error) {
	resp, err := c.Do(ctx, http.MethodGet, currentEndpoint, nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return nil, err
	}

	var wu wireUser
	if err := json.NewDecoder(resp.Body).Decode(&wu); err != nil {
		return nil, fmt.Errorf("decode user response: %w", err)
	}
	return wu.toDomain(c.log), nil
}

// Do issues a request against the upstream, attaching the CSRF header on
// state-changing calls when the client is authenticated. Callers own the
// response body. It is also the forwarding primitive for the guarded proxy
// routes.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader, header http.Header) (*http.Response, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("upstream path: %w", err)
	}
	target := c.base.ResolveReference(ref)

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("Content-Type") == "" && body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if !c.public && isStateChanging(method) {
		if token := c.csrfToken(); token != "" {
			req.Header.Set(csrfHeaderName, token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream %s %s: %w", method, path, err)
	}
	return resp, nil
}

// checkStatus drains non-2xx responses into *domain.UpstreamError.
func (c *Client) checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	payload := map[string]any{}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			payload = map[string]any{"error": strings.TrimSpace(string(raw))}
		}
	}
	return &domain.UpstreamError{StatusCode: resp.StatusCode, Payload: payload}
}

// csrfToken reads the upstream CSRF cookie out of the jar.
func (c *Client) csrfToken() string {
	if c.http.Jar == nil {
		return ""
	}
	for _, ck := range c.http.Jar.Cookies(c.base) {
		if ck.Name == csrfCookieName {
			return ck.Value
		}
	}
	return ""
}

func isStateChanging(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// wireUser mirrors the upstream user payload shape.
type wireUser struct {
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	IsStaff     bool      `json:"is_staff"`
	IsSuperuser bool      `json:"is_superuser"`
	Role        *wireRole `json:"role"`
}

type wireRole struct {
	Role                    string   `json:"role"`
	RoleName                string   `json:"role_name"`
	Permissions             []string `json:"permissions"`
	CanViewCosts            bool     `json:"can_view_costs"`
	CanViewExternalContacts bool     `json:"can_view_external_contacts"`
}

// toDomain validates the payload at the decode boundary. Unknown permission
// strings are logged and carried opaquely; they never crash a check.
func (w wireUser) toDomain(log zerolog.Logger) *domain.User {
	u := &domain.User{
		Username:    w.Username,
		Email:       w.Email,
		FirstName:   w.FirstName,
		LastName:    w.LastName,
		IsStaff:     w.IsStaff,
		IsSuperuser: w.IsSuperuser,
	}
	if w.Role != nil {
		perms, unknown := domain.ParsePermissions(w.Role.Permissions)
		if len(unknown) > 0 {
			log.Warn().
				Strs("permissions", unknown).
				Str("role", w.Role.Role).
				Msg("upstream sent unknown permission strings")
		}
		u.Role = &domain.Role{
			Role:                    w.Role.Role,
			RoleName:                w.Role.RoleName,
			Permissions:             perms,
			CanViewCosts:            w.Role.CanViewCosts,
			CanViewExternalContacts: w.Role.CanViewExternalContacts,
		}
	}
	return u
}
