package ports

import (
	"context"

	"github.com/maintlog/logbook-gateway/internal/core/domain"
)

// SessionClient wraps the upstream auth API calls for one browser session.
// Non-2xx responses are returned as *domain.UpstreamError so callers can
// inspect the status code.
type SessionClient interface {
	// Login authenticates with the upstream and returns the user payload
	// extracted from the response body.
	Login(ctx context.Context, username, password string) (*domain.User, error)

	// Logout terminates the upstream session. Idempotent upstream; the
	// caller clears local state regardless of the outcome.
	Logout(ctx context.Context) error

	// CurrentUser fetches the identity bound to the session cookie.
	CurrentUser(ctx context.Context) (*domain.User, error)
}
