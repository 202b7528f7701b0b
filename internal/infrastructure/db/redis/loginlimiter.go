package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultWindow      = 5 * time.Minute
	defaultMaxAttempts = 10
)

// LoginLimiter throttles credential attempts per username and remote
// address using a fixed-window counter in Redis.
// Key format: loginattempts:<username>:<addr>
type LoginLimiter struct {
	client      *redis.Client
	window      time.Duration
	maxAttempts int64
}

// NewLoginLimiter creates a LoginLimiter wrapping the given Redis client.
// Non-positive window/max fall back to 5m / 10 attempts.
func NewLoginLimiter(client *redis.Client, window time.Duration, maxAttempts int64) *LoginLimiter {
	if window <= 0 {
		window = defaultWindow
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &LoginLimiter{client: client, window: window, maxAttempts: maxAttempts}
}

// Allow counts one attempt and reports whether it is still inside the
// window's budget. The window starts at the first attempt.
func (l *LoginLimiter) Allow(ctx context.Context, username, remoteAddr string) (bool, error) {
	key := l.key(username, remoteAddr)
	n, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("login limiter incr: %w", err)
	}
	if n == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, fmt.Errorf("login limiter expire: %w", err)
		}
	}
	return n <= l.maxAttempts, nil
}

// Reset clears the counter after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, username, remoteAddr string) error {
	return l.client.Del(ctx, l.key(username, remoteAddr)).Err()
}

func (l *LoginLimiter) key(username, remoteAddr string) string {
	// Strip the port so one browser does not dodge the limit by cycling
	// ephemeral ports.
	if i := strings.LastIndex(remoteAddr, ":"); i > 0 {
		remoteAddr = remoteAddr[:i]
	}
	return fmt.Sprintf("loginattempts:%s:%s", username, remoteAddr)
}
