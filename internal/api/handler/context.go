package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	gwmiddleware "github.com/maintlog/logbook-gateway/internal/api/middleware"
	"github.com/maintlog/logbook-gateway/internal/infrastructure/sessions"
)

// ctxEntry extracts the browser session injected by the session resolver and
// fast-fails before any store call: a missing entry means the route was
// wired without the resolver, which must surface as an auth failure rather
// than a nil dereference deep in a handler.
func ctxEntry(c echo.Context) (*sessions.Entry, error) {
	entry := gwmiddleware.Entry(c)
	if entry == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "no session established")
	}
	return entry, nil
}
