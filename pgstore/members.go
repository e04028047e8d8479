package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	almagestAuth "github.com/almagest-io/almagestAuth"
)

// MemberRepository stores members in the member table.
type MemberRepository struct {
	db  DBTX
	now func() time.Time
}

func NewMemberRepository(db DBTX) *MemberRepository {
	return &MemberRepository{db: db, now: time.Now}
}

const memberColumns = `member_id, account, password, name, email,
		 COALESCE(tel, ''), COALESCE(birth_date, ''), COALESCE(gender, ''), COALESCE(country, ''),
		 role, is_enabled, is_banned, COALESCE(firebase_token, ''), created_date, last_update`

func (r *MemberRepository) getBy(ctx context.Context, column, value string) (almagestAuth.Member, error) {
	query := `SELECT ` + memberColumns + `
		 FROM member
		 WHERE ` + column + ` = $1`

	var m almagestAuth.Member
	err := r.db.QueryRowContext(ctx, query, value).Scan(
		&m.ID, &m.Account, &m.PasswordHash, &m.Name, &m.Email,
		&m.Tel, &m.BirthDate, &m.Gender, &m.Country,
		&m.Role, &m.Enabled, &m.Banned, &m.DeviceToken, &m.CreatedAt, &m.LastUpdate,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return almagestAuth.Member{}, almagestAuth.ErrMemberNotFound
		}
		return almagestAuth.Member{}, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}

func (r *MemberRepository) GetMemberByID(ctx context.Context, id string) (almagestAuth.Member, error) {
	return r.getBy(ctx, "member_id", id)
}

func (r *MemberRepository) GetMemberByAccount(ctx context.Context, account string) (almagestAuth.Member, error) {
	return r.getBy(ctx, "account", account)
}

func (r *MemberRepository) GetMemberByEmail(ctx context.Context, email string) (almagestAuth.Member, error) {
	return r.getBy(ctx, "email", email)
}

func (r *MemberRepository) exists(ctx context.Context, column, value string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM member WHERE ` + column + ` = $1)`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, value).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

func (r *MemberRepository) AccountExists(ctx context.Context, account string) (bool, error) {
	return r.exists(ctx, "account", account)
}

func (r *MemberRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email", email)
}

// CreateMember inserts m. A duplicate account, email or phone number is
// reported as a validation error.
func (r *MemberRepository) CreateMember(ctx context.Context, m almagestAuth.Member) error {
	query :=
		`INSERT INTO member (member_id, account, password, name, email, tel, birth_date, gender, country,
		 role, is_enabled, is_banned, created_date, last_update)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)`

	created := m.CreatedAt
	if created.IsZero() {
		created = r.now()
	}
	_, err := r.db.ExecContext(ctx, query,
		m.ID, m.Account, m.PasswordHash, m.Name, m.Email,
		nullIfEmpty(m.Tel), nullIfEmpty(m.BirthDate), nullIfEmpty(m.Gender), nullIfEmpty(m.Country),
		m.Role, m.Enabled, m.Banned, created,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &almagestAuth.ValidationError{Msg: "account, email or tel in use"}
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// exec runs an update on one member and maps a missing row to ErrMemberNotFound.
func (r *MemberRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return almagestAuth.ErrMemberNotFound
	}
	return nil
}

func (r *MemberRepository) UpdatePassword(ctx context.Context, id, hash string, enabled bool) error {
	return r.exec(ctx,
		`UPDATE member SET password = $2, is_enabled = $3, last_update = $4
		 WHERE member_id = $1`,
		id, hash, enabled, r.now())
}

func (r *MemberRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	return r.exec(ctx,
		`UPDATE member SET is_enabled = $2, last_update = $3
		 WHERE member_id = $1`,
		id, enabled, r.now())
}

func (r *MemberRepository) UpdateEmail(ctx context.Context, id, email string) error {
	err := r.exec(ctx,
		`UPDATE member SET email = $2, last_update = $3
		 WHERE member_id = $1`,
		id, email, r.now())
	if err != nil && isUniqueViolation(err) {
		return &almagestAuth.ValidationError{Msg: "email in use"}
	}
	return err
}

func (r *MemberRepository) UpdateProfile(ctx context.Context, id string, p almagestAuth.Profile) error {
	return r.exec(ctx,
		`UPDATE member SET name = $2, country = $3, gender = $4, birth_date = $5, last_update = $6
		 WHERE member_id = $1`,
		id, p.Name, nullIfEmpty(p.Country), nullIfEmpty(p.Gender), nullIfEmpty(p.BirthDate), r.now())
}

func (r *MemberRepository) UpdateDeviceToken(ctx context.Context, id, token string) error {
	return r.exec(ctx,
		`UPDATE member SET firebase_token = $2
		 WHERE member_id = $1`,
		id, nullIfEmpty(token))
}

// Deactivate disables and bans the member and clears its device token.
func (r *MemberRepository) Deactivate(ctx context.Context, id string) error {
	return r.exec(ctx,
		`UPDATE member SET is_enabled = FALSE, is_banned = TRUE, firebase_token = NULL, last_update = $2
		 WHERE member_id = $1`,
		id, r.now())
}
