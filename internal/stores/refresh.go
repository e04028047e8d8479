package stores

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRefreshRecordNotFound indicates no verification string is stored for the member.
	ErrRefreshRecordNotFound = errors.New("refresh record not found")
	// ErrRefreshRedisUnavailable indicates the record backend could not be reached.
	ErrRefreshRedisUnavailable = errors.New("refresh redis unavailable")
)

// RefreshStore keeps one verification string per member. Writing a new
// string overwrites the previous one, which revokes every refresh token
// carrying the old value.
type RefreshStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRefreshStore creates a store using keys "<prefix>:<memberID>".
func NewRefreshStore(redisClient redis.UniversalClient, prefix string) *RefreshStore {
	if prefix == "" {
		prefix = "refresh"
	}
	return &RefreshStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

// Key returns the Redis key for memberID.
func (s *RefreshStore) Key(memberID string) string {
	return s.prefix + ":" + memberID
}

// Save stores value for memberID with the given TTL.
func (s *RefreshStore) Save(ctx context.Context, memberID, value string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, s.Key(memberID), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRefreshRedisUnavailable, err)
	}
	return nil
}

// Get returns the stored verification string for memberID.
func (s *RefreshStore) Get(ctx context.Context, memberID string) (string, error) {
	value, err := s.redis.Get(ctx, s.Key(memberID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrRefreshRecordNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrRefreshRedisUnavailable, err)
	}
	return value, nil
}

// Matches reports whether presented equals the stored string for memberID.
func (s *RefreshStore) Matches(ctx context.Context, memberID, presented string) (bool, error) {
	if presented == "" {
		return false, nil
	}
	stored, err := s.Get(ctx, memberID)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1, nil
}

// Delete removes the record for memberID. Absent records are not an error.
func (s *RefreshStore) Delete(ctx context.Context, memberID string) error {
	if err := s.redis.Del(ctx, s.Key(memberID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRefreshRedisUnavailable, err)
	}
	return nil
}
