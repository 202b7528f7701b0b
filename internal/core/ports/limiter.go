package ports

import "context"

// LoginLimiter throttles credential attempts before the upstream is
// contacted.
type LoginLimiter interface {
	// Allow reports whether another attempt for this username/address pair
	// is permitted inside the current window.
	Allow(ctx context.Context, username, remoteAddr string) (bool, error)

	// Reset clears the counter after a successful login.
	Reset(ctx context.Context, username, remoteAddr string) error
}
