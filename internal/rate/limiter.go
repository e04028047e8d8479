package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds throttle budgets for outbound sends.
type Config struct {
	MaxResetRequests     int
	ResetWindow          time.Duration
	MaxEmailCodeRequests int
	EmailCodeWindow      time.Duration
}

// Limiter enforces fixed-window budgets for password-reset and
// email-code sends using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckReset consumes one password-reset send for account.
// Returns ErrRateLimited once the window budget is spent.
func (l *Limiter) CheckReset(ctx context.Context, account string) error {
	if l == nil || l.config.MaxResetRequests <= 0 {
		return nil
	}
	return l.consume(ctx, resetKey(account), l.config.MaxResetRequests, l.config.ResetWindow)
}

// CheckEmailCode consumes one email-code send for memberID.
func (l *Limiter) CheckEmailCode(ctx context.Context, memberID string) error {
	if l == nil || l.config.MaxEmailCodeRequests <= 0 {
		return nil
	}
	return l.consume(ctx, emailCodeKey(memberID), l.config.MaxEmailCodeRequests, l.config.EmailCodeWindow)
}

func (l *Limiter) consume(ctx context.Context, key string, limit int, window time.Duration) error {
	count, err := l.incrementWithTTL(ctx, key, window)
	if err != nil {
		return err
	}
	if count > int64(limit) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func resetKey(account string) string {
	return "ars:" + account
}

func emailCodeKey(memberID string) string {
	return "aes:" + memberID
}
