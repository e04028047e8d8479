package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	almagestAuth "github.com/almagest-io/almagestAuth"
)

// ChallengeRepository keeps one OTP challenge row per member.
type ChallengeRepository struct {
	db DBTX
}

func NewChallengeRepository(db DBTX) *ChallengeRepository {
	return &ChallengeRepository{db: db}
}

// SaveChallenge inserts or replaces the member's challenge and resets used.
func (r *ChallengeRepository) SaveChallenge(ctx context.Context, c almagestAuth.OTPChallenge) error {
	query :=
		`INSERT INTO otp (member_id, code, created_time, expire_time, used)
		 VALUES ($1, $2, $3, $4, FALSE)
		 ON CONFLICT (member_id) DO UPDATE
		 SET code = EXCLUDED.code, created_time = EXCLUDED.created_time,
		     expire_time = EXCLUDED.expire_time, used = FALSE`

	if _, err := r.db.ExecContext(ctx, query, c.MemberID, c.Code, c.CreatedAt, c.ExpireAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetChallenge returns nil, nil when the member has no challenge.
func (r *ChallengeRepository) GetChallenge(ctx context.Context, memberID string) (*almagestAuth.OTPChallenge, error) {
	query :=
		`SELECT member_id, code, created_time, expire_time, used
		 FROM otp
		 WHERE member_id = $1`

	c := &almagestAuth.OTPChallenge{}
	err := r.db.QueryRowContext(ctx, query, memberID).Scan(&c.MemberID, &c.Code, &c.CreatedAt, &c.ExpireAt, &c.Used)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *ChallengeRepository) MarkChallengeUsed(ctx context.Context, memberID string) error {
	query := `UPDATE otp SET used = TRUE WHERE member_id = $1`

	if _, err := r.db.ExecContext(ctx, query, memberID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
