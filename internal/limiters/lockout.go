package limiters

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const lockedValue = "locked"

// LockoutConfig holds configuration for the failure-lockout counter.
type LockoutConfig struct {
	Prefix      string
	Window      time.Duration
	MaxAttempts int
}

var (
	// ErrLockoutUnavailable indicates the lockout backend is unreachable or holds a corrupt value.
	ErrLockoutUnavailable = errors.New("lockout backend unavailable")
)

// OutcomeKind tags the result of recording a failure.
type OutcomeKind uint8

const (
	// OutcomeCounted means the failure was counted and the identity is still unlocked.
	OutcomeCounted OutcomeKind = iota + 1
	// OutcomeLocked means the identity is locked for the rest of the window.
	OutcomeLocked
)

// Outcome is the result of RecordFailure. Both kinds are terminal for the
// current request: the caller reports either the count or the lock.
type Outcome struct {
	Kind       OutcomeKind
	Count      int
	RetryAfter time.Duration
}

// Locked reports whether the outcome is the locked state.
func (o Outcome) Locked() bool {
	return o.Kind == OutcomeLocked
}

// LockoutLimiter counts authentication failures per identity and flips the
// counter to a locked sentinel once the threshold is reached. Updates are
// plain read-modify-write pairs; concurrent failures may under-count.
type LockoutLimiter struct {
	redis  redis.UniversalClient
	config LockoutConfig
}

// NewLockoutLimiter creates a new lockout limiter.
func NewLockoutLimiter(redisClient redis.UniversalClient, cfg LockoutConfig) *LockoutLimiter {
	return &LockoutLimiter{redis: redisClient, config: cfg}
}

// Key returns the Redis key holding the counter for id.
func (l *LockoutLimiter) Key(id string) string {
	return l.config.Prefix + ":" + id
}

// RecordFailure counts one failure for id.
func (l *LockoutLimiter) RecordFailure(ctx context.Context, id string) (Outcome, error) {
	key := l.Key(id)

	value, err := l.redis.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			return Outcome{}, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
		}
		if err := l.redis.Set(ctx, key, "1", l.config.Window).Err(); err != nil {
			return Outcome{}, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
		}
		return Outcome{Kind: OutcomeCounted, Count: 1}, nil
	}

	if value == lockedValue {
		return l.locked(ctx, key), nil
	}

	count, err := strconv.Atoi(value)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: corrupt counter %q", ErrLockoutUnavailable, value)
	}
	count++

	if count >= l.config.MaxAttempts {
		if err := l.redis.Set(ctx, key, lockedValue, l.config.Window).Err(); err != nil {
			return Outcome{}, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
		}
		return Outcome{Kind: OutcomeLocked, Count: count, RetryAfter: l.config.Window}, nil
	}

	// keep the window anchored at the first failure
	ttl, err := l.redis.TTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		ttl = l.config.Window
	}

	if err := l.redis.Set(ctx, key, strconv.Itoa(count), ttl).Err(); err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return Outcome{Kind: OutcomeCounted, Count: count}, nil
}

// Reset deletes the counter for id. Deleting an absent key is not an error.
func (l *LockoutLimiter) Reset(ctx context.Context, id string) error {
	if err := l.redis.Del(ctx, l.Key(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}

// Status reports whether id is currently locked, without counting a failure.
func (l *LockoutLimiter) Status(ctx context.Context, id string) (Outcome, bool, error) {
	key := l.Key(id)
	value, err := l.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Outcome{}, false, nil
		}
		return Outcome{}, false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	if value != lockedValue {
		return Outcome{}, false, nil
	}
	return l.locked(ctx, key), true, nil
}

// GetFailureCount returns the current failure count for id. A locked
// identity reports MaxAttempts.
func (l *LockoutLimiter) GetFailureCount(ctx context.Context, id string) (int, error) {
	value, err := l.redis.Get(ctx, l.Key(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	if value == lockedValue {
		return l.config.MaxAttempts, nil
	}
	count, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: corrupt counter %q", ErrLockoutUnavailable, value)
	}
	return count, nil
}

func (l *LockoutLimiter) locked(ctx context.Context, key string) Outcome {
	retry := l.config.Window
	if ttl, err := l.redis.TTL(ctx, key).Result(); err == nil && ttl > 0 {
		retry = ttl
	}
	return Outcome{Kind: OutcomeLocked, Count: l.config.MaxAttempts, RetryAfter: retry}
}
