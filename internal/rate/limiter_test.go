package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rdb, cfg), mr, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func TestCheckResetBudget(t *testing.T) {
	l, mr, done := newTestLimiter(t, Config{MaxResetRequests: 2, ResetWindow: time.Hour})
	defer done()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.CheckReset(ctx, "alice"); err != nil {
			t.Fatalf("send %d rejected: %v", i+1, err)
		}
	}
	if err := l.CheckReset(ctx, "alice"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.CheckReset(ctx, "bob"); err != nil {
		t.Fatalf("other account should not be throttled: %v", err)
	}

	mr.FastForward(time.Hour + time.Second)
	if err := l.CheckReset(ctx, "alice"); err != nil {
		t.Fatalf("expected budget restored after window, got %v", err)
	}
}

func TestCheckEmailCodeDisabled(t *testing.T) {
	l, _, done := newTestLimiter(t, Config{})
	defer done()

	for i := 0; i < 10; i++ {
		if err := l.CheckEmailCode(context.Background(), "m1"); err != nil {
			t.Fatalf("disabled throttle rejected: %v", err)
		}
	}
}

func TestNilLimiterAllows(t *testing.T) {
	var l *Limiter
	if err := l.CheckReset(context.Background(), "alice"); err != nil {
		t.Fatalf("nil limiter rejected: %v", err)
	}
}

func TestCheckEmailCodeBackendDown(t *testing.T) {
	l, mr, done := newTestLimiter(t, Config{MaxEmailCodeRequests: 1, EmailCodeWindow: time.Minute})
	defer done()

	mr.Close()
	if err := l.CheckEmailCode(context.Background(), "m1"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
