package middleware

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/maintlog/logbook-gateway/internal/api/metrics"
	"github.com/maintlog/logbook-gateway/internal/core/domain"
	"github.com/maintlog/logbook-gateway/internal/core/rbac"
)

// accessDeniedResponse is the access-denied view for authenticated callers
// lacking permission. Back tells the client which navigation to offer.
type accessDeniedResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Back    string `json:"back"`
}

// RouteGuard enforces guard semantics on a route group. While the session is
// still loading it answers 503 instead of deciding; unauthenticated
// non-matches are redirected to loginPath with the original target in the
// `next` query parameter; authenticated callers lacking permission get the
// access-denied view.
func RouteGuard(guard rbac.Guard, loginPath string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			state := sessionState(c)
			path := c.Request().URL.Path

			switch guard.Decide(state, path) {
			case rbac.GuardGrant:
				metrics.GuardDecisionsTotal.WithLabelValues("grant").Inc()
				return next(c)

			case rbac.GuardPending:
				metrics.GuardDecisionsTotal.WithLabelValues("pending").Inc()
				c.Response().Header().Set("Retry-After", "1")
				return c.JSON(http.StatusServiceUnavailable, map[string]string{
					"status":  "pending",
					"message": "session state not yet determined",
				})

			case rbac.GuardRedirect:
				metrics.GuardDecisionsTotal.WithLabelValues("redirect").Inc()
				target := path
				if q := c.Request().URL.RawQuery; q != "" {
					target += "?" + q
				}
				return c.Redirect(http.StatusSeeOther, loginPath+"?next="+url.QueryEscape(target))

			default: // rbac.GuardDeny
				metrics.GuardDecisionsTotal.WithLabelValues("deny").Inc()
				return c.JSON(http.StatusForbidden, accessDeniedResponse{
					Error:   "access_denied",
					Message: "You don't have permission to access this page.",
					Back:    "history_back",
				})
			}
		}
	}
}

// sessionState reads the current snapshot; a request that skipped the
// session resolver counts as a settled anonymous visitor.
func sessionState(c echo.Context) domain.SessionState {
	if entry := Entry(c); entry != nil {
		return entry.Store.Snapshot()
	}
	return domain.SessionState{Phase: domain.PhaseAnonymous}
}
