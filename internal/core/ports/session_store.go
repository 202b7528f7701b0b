package ports

import (
	"context"

	"github.com/maintlog/logbook-gateway/internal/core/domain"
)

// SessionStore is the single source of truth for one browser session's
// authentication state. All writes happen inside the five operations below;
// Snapshot returns a synchronous copy safe to read from any goroutine.
type SessionStore interface {
	// Initialize runs the first status check unless currentPath is the
	// login route, in which case the session settles anonymous at once.
	Initialize(ctx context.Context, currentPath string)

	// CheckStatus reconciles with the upstream. 401/403 evicts the user;
	// any other failure leaves state untouched. Never returns an error to
	// the caller; the UI observes the resulting state instead.
	CheckStatus(ctx context.Context) *domain.User

	// Login authenticates and commits the returned user before returning.
	// A second Login while one is in flight fails with ErrLoginInFlight.
	// Rejection forces the session anonymous and returns *LoginError.
	Login(ctx context.Context, username, password string) (*domain.User, error)

	// Logout clears the session locally even if the upstream call fails.
	Logout(ctx context.Context) error

	// RefreshUser revalidates without touching the loading flag. Only a
	// 401 evicts; other failures preserve state.
	RefreshUser(ctx context.Context)

	// Snapshot returns the current state.
	Snapshot() domain.SessionState

	// Subscribe registers fn to be called synchronously with every
	// committed state. The returned function unsubscribes.
	Subscribe(fn func(domain.SessionState)) (unsubscribe func())

	// Close drops the store; late completions of in-flight operations are
	// discarded instead of written.
	Close()
}
