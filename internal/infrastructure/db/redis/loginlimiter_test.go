package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiter(t *testing.T, window time.Duration, max int64) (*LoginLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewLoginLimiter(client, window, max), mr
}

func TestLoginLimiter_AllowsUpToBudget(t *testing.T) {
	limiter, _ := newLimiter(t, time.Minute, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "alice", "10.0.0.1:50000")
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !ok {
			t.Fatalf("attempt %d must be inside the budget", i+1)
		}
	}

	ok, err := limiter.Allow(ctx, "alice", "10.0.0.1:50001")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if ok {
		t.Fatalf("fourth attempt must be throttled even from a different port")
	}
}

func TestLoginLimiter_KeysAreIndependent(t *testing.T) {
	limiter, _ := newLimiter(t, time.Minute, 1)
	ctx := context.Background()

	if ok, _ := limiter.Allow(ctx, "alice", "10.0.0.1:1"); !ok {
		t.Fatalf("first attempt for alice must pass")
	}
	if ok, _ := limiter.Allow(ctx, "alice", "10.0.0.1:2"); ok {
		t.Fatalf("alice from the same host is over budget")
	}
	if ok, _ := limiter.Allow(ctx, "bob", "10.0.0.1:3"); !ok {
		t.Fatalf("bob has his own counter")
	}
	if ok, _ := limiter.Allow(ctx, "alice", "10.0.0.2:4"); !ok {
		t.Fatalf("alice from another host has her own counter")
	}
}

func TestLoginLimiter_WindowExpires(t *testing.T) {
	limiter, mr := newLimiter(t, time.Minute, 1)
	ctx := context.Background()

	limiter.Allow(ctx, "alice", "10.0.0.1:1")
	if ok, _ := limiter.Allow(ctx, "alice", "10.0.0.1:1"); ok {
		t.Fatalf("over budget inside the window")
	}

	mr.FastForward(time.Minute + time.Second)

	if ok, err := limiter.Allow(ctx, "alice", "10.0.0.1:1"); err != nil || !ok {
		t.Fatalf("window expiry must reset the counter: ok=%v err=%v", ok, err)
	}
}

func TestLoginLimiter_ResetClearsCounter(t *testing.T) {
	limiter, _ := newLimiter(t, time.Minute, 1)
	ctx := context.Background()

	limiter.Allow(ctx, "alice", "10.0.0.1:1")
	if err := limiter.Reset(ctx, "alice", "10.0.0.1:9999"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if ok, _ := limiter.Allow(ctx, "alice", "10.0.0.1:1"); !ok {
		t.Fatalf("successful login must clear the failure counter")
	}
}
