package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/maintlog/logbook-gateway/internal/api/metrics"
	gwmiddleware "github.com/maintlog/logbook-gateway/internal/api/middleware"
	"github.com/maintlog/logbook-gateway/internal/core/domain"
	"github.com/maintlog/logbook-gateway/internal/core/ports"
	"github.com/maintlog/logbook-gateway/internal/core/rbac"
)

// SessionHandler serves the session lifecycle and authorization queries.
type SessionHandler struct {
	resolver *gwmiddleware.SessionResolver
	limiter  ports.LoginLimiter
	audit    ports.AuditRepository
	log      zerolog.Logger
}

func NewSessionHandler(resolver *gwmiddleware.SessionResolver, limiter ports.LoginLimiter, audit ports.AuditRepository, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{resolver: resolver, limiter: limiter, audit: audit, log: log}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	User            *domain.User `json:"user"`
	IsAuthenticated bool         `json:"is_authenticated"`
	IsPublic        bool         `json:"is_public"`
	Loading         bool         `json:"loading"`
	Phase           string       `json:"phase"`
}

func snapshotResponse(state domain.SessionState) sessionResponse {
	return sessionResponse{
		User:            state.User,
		IsAuthenticated: state.IsAuthenticated,
		IsPublic:        state.IsPublic(),
		Loading:         state.Loading,
		Phase:           string(state.Phase),
	}
}

// Login authenticates the browser session against the upstream API.
//
// @Summary      Log in
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Credentials"
// @Success      200   {object}  sessionResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]any
// @Failure      429   {object}  map[string]string
// @Router       /session/login [post]
func (h *SessionHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	addr := c.RealIP()

	allowed, err := h.limiter.Allow(ctx, req.Username, addr)
	if err != nil {
		// A broken limiter must not lock everyone out.
		h.log.Warn().Err(err).Msg("login limiter unavailable, allowing attempt")
		allowed = true
	}
	if !allowed {
		metrics.LoginsTotal.WithLabelValues("rate_limited").Inc()
		return domain.ErrTooManyAttempts
	}

	entry, err := ctxEntry(c)
	if err != nil {
		return err
	}
	user, err := entry.Store.Login(ctx, req.Username, req.Password)
	if err != nil {
		var le *domain.LoginError
		switch {
		case errors.As(err, &le):
			metrics.LoginsTotal.WithLabelValues("rejected").Inc()
		case errors.Is(err, domain.ErrLoginInFlight):
			metrics.LoginsTotal.WithLabelValues("in_flight").Inc()
		default:
			metrics.LoginsTotal.WithLabelValues("error").Inc()
		}
		return err
	}

	metrics.LoginsTotal.WithLabelValues("ok").Inc()
	if err := h.limiter.Reset(ctx, user.Username, addr); err != nil {
		h.log.Debug().Err(err).Msg("login limiter reset failed")
	}
	return c.JSON(http.StatusOK, snapshotResponse(entry.Store.Snapshot()))
}

// Logout terminates the browser session. Always succeeds from the caller's
// perspective, matching the upstream's idempotent logout.
//
// @Summary      Log out
// @Tags         session
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /session/logout [post]
func (h *SessionHandler) Logout(c echo.Context) error {
	if entry := gwmiddleware.Entry(c); entry != nil {
		_ = entry.Store.Logout(c.Request().Context())
	}
	h.resolver.Drop(c)
	return c.JSON(http.StatusOK, map[string]string{"status": "logged_out"})
}

// Session returns the current state snapshot.
//
// @Summary      Current session
// @Tags         session
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Router       /session [get]
func (h *SessionHandler) Session(c echo.Context) error {
	entry, err := ctxEntry(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snapshotResponse(entry.Store.Snapshot()))
}

// Check runs a full status check against the upstream, clearing the loading
// flag when it settles.
//
// @Summary      Reconcile session with upstream
// @Tags         session
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Router       /session/check [post]
func (h *SessionHandler) Check(c echo.Context) error {
	entry, err := ctxEntry(c)
	if err != nil {
		return err
	}
	user := entry.Store.CheckStatus(c.Request().Context())
	metrics.StatusChecksTotal.WithLabelValues(checkOutcome(user)).Inc()
	return c.JSON(http.StatusOK, snapshotResponse(entry.Store.Snapshot()))
}

// Refresh revalidates the user without disturbing loading indicators.
//
// @Summary      Refresh user payload
// @Tags         session
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Router       /session/refresh [post]
func (h *SessionHandler) Refresh(c echo.Context) error {
	entry, err := ctxEntry(c)
	if err != nil {
		return err
	}
	entry.Store.RefreshUser(c.Request().Context())
	state := entry.Store.Snapshot()
	outcome := "unauthenticated"
	if state.IsAuthenticated {
		outcome = "authenticated"
	}
	metrics.StatusChecksTotal.WithLabelValues(outcome).Inc()
	return c.JSON(http.StatusOK, snapshotResponse(state))
}

// Policy returns every UI-policy answer for the current session.
//
// @Summary      UI policy flags
// @Tags         session
// @Produce      json
// @Success      200  {object}  rbac.Policy
// @Router       /session/policy [get]
func (h *SessionHandler) Policy(c echo.Context) error {
	entry, err := ctxEntry(c)
	if err != nil {
		return err
	}
	e := rbac.NewEvaluator(entry.Store.Snapshot())
	return c.JSON(http.StatusOK, e.CurrentPolicy())
}

type gateResponse struct {
	Granted bool `json:"granted"`
}

// Gate evaluates an ad hoc permission gate for the current session.
//
// @Summary      Evaluate a permission gate
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        body  body      rbac.Gate  true  "Gate configuration"
// @Success      200   {object}  gateResponse
// @Failure      400   {object}  map[string]string
// @Router       /session/gate [post]
func (h *SessionHandler) Gate(c echo.Context) error {
	var gate rbac.Gate
	if err := c.Bind(&gate); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid gate configuration")
	}

	entry, err := ctxEntry(c)
	if err != nil {
		return err
	}
	granted := gate.Allows(rbac.NewEvaluator(entry.Store.Snapshot()))
	metrics.GateDecisionsTotal.WithLabelValues(strconv.FormatBool(granted)).Inc()
	return c.JSON(http.StatusOK, gateResponse{Granted: granted})
}

// Audit lists the most recent auth events for the caller's session.
//
// @Summary      Session audit trail
// @Tags         session
// @Produce      json
// @Success      200  {array}  map[string]any
// @Router       /session/audit [get]
func (h *SessionHandler) Audit(c echo.Context) error {
	entry, err := ctxEntry(c)
	if err != nil {
		return err
	}
	events, err := h.audit.FindBySession(c.Request().Context(), entry.ID, 100)
	if err != nil {
		return err
	}

	out := make([]map[string]any, 0, len(events))
	for _, ev := range events {
		out = append(out, map[string]any{
			"kind":     string(ev.Kind),
			"username": ev.Username,
			"detail":   ev.Detail,
			"at":       ev.At,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func checkOutcome(user *domain.User) string {
	if user != nil {
		return "authenticated"
	}
	return "unauthenticated"
}
