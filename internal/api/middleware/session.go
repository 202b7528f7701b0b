package middleware

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/maintlog/logbook-gateway/internal/infrastructure/sessions"
)

const (
	// SessionCookieName is the gateway's own cookie, distinct from any
	// upstream session cookie (which never leaves the server side).
	SessionCookieName = "logbook_gw_session"

	// ContextKeySession is where the resolved registry entry lives in the
	// echo context.
	ContextKeySession = "gw_session"

	// HeaderCurrentPath lets the SPA announce which page the browser is on,
	// since the gateway only ever sees its own /session and /api routes.
	HeaderCurrentPath = "X-Current-Path"

	// sessionLoginRoute is the gateway's own login endpoint. A first contact
	// through it means the browser is on the login page.
	sessionLoginRoute = "/session/login"
)

// SessionResolver binds browser requests to their registry entry through an
// HS256-signed cookie. Requests without a valid cookie get a fresh session
// whose store is initialized against the browser's current page, so landing
// directly on the login page skips the upstream status check.
type SessionResolver struct {
	registry  *sessions.Registry
	secret    string
	ttl       time.Duration
	loginPath string
	log       zerolog.Logger
}

func NewSessionResolver(registry *sessions.Registry, secret string, ttl time.Duration, loginPath string, log zerolog.Logger) *SessionResolver {
	return &SessionResolver{registry: registry, secret: secret, ttl: ttl, loginPath: loginPath, log: log}
}

// Middleware resolves (or creates) the browser session and injects it into
// the context. It never rejects a request: an unauthenticated visitor still
// gets a session in the anonymous phase.
func (m *SessionResolver) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if id := m.sessionIDFromCookie(c); id != "" {
				if entry, err := m.registry.Get(id); err == nil {
					c.Set(ContextKeySession, entry)
					return next(c)
				}
				// Stale cookie referencing a swept session: fall
				// through and mint a new one.
			}

			entry, err := m.registry.Create()
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "could not establish session")
			}
			if err := m.issueCookie(c, entry.ID); err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "could not establish session")
			}
			entry.Store.Initialize(c.Request().Context(), m.initPath(c))

			c.Set(ContextKeySession, entry)
			return next(c)
		}
	}
}

// initPath maps the request to the browser page a fresh session should
// settle against. The SPA's announced page wins; failing that, a first
// contact through the gateway's own login endpoint counts as landing on the
// login route, so the store skips the redundant upstream status check.
func (m *SessionResolver) initPath(c echo.Context) string {
	if p := c.Request().Header.Get(HeaderCurrentPath); p != "" {
		return p
	}
	if c.Request().URL.Path == sessionLoginRoute {
		return m.loginPath
	}
	return c.Request().URL.Path
}

// Drop removes the caller's session and expires the cookie (logout path).
func (m *SessionResolver) Drop(c echo.Context) {
	if id := m.sessionIDFromCookie(c); id != "" {
		m.registry.Drop(id)
	}
	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Entry retrieves the registry entry injected by the middleware. Returns nil
// when the middleware did not run.
func Entry(c echo.Context) *sessions.Entry {
	entry, _ := c.Get(ContextKeySession).(*sessions.Entry)
	return entry
}

func (m *SessionResolver) issueCookie(c echo.Context, sessionID string) error {
	claims := jwt.MapClaims{
		"sid": sessionID,
		"exp": time.Now().Add(m.ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.secret))
	if err != nil {
		return err
	}
	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// sessionIDFromCookie validates the signed cookie and extracts the session
// ID. Any parse or signature failure yields "".
func (m *SessionResolver) sessionIDFromCookie(c echo.Context) string {
	cookie, err := c.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}

	claims := jwt.MapClaims{}
	tkn, err := jwt.ParseWithClaims(cookie.Value, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(m.secret), nil
	})
	if err != nil || !tkn.Valid {
		return ""
	}

	sid, _ := claims["sid"].(string)
	return sid
}
