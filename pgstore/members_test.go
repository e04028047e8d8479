package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	almagestAuth "github.com/almagest-io/almagestAuth"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func newMemberRepo(t *testing.T) (*MemberRepository, sqlmock.Sqlmock, time.Time) {
	t.Helper()
	db, mock := newMock(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := NewMemberRepository(db)
	repo.now = func() time.Time { return now }
	return repo, mock, now
}

var memberRowColumns = []string{
	"member_id", "account", "password", "name", "email", "tel", "birth_date", "gender", "country",
	"role", "is_enabled", "is_banned", "firebase_token", "created_date", "last_update",
}

func TestGetMemberByAccount_Found(t *testing.T) {
	repo, mock, now := newMemberRepo(t)

	rows := sqlmock.NewRows(memberRowColumns).
		AddRow("m-1", "alice", "hash", "Alice", "alice@example.com", "", "19900101", "F", "KR",
			almagestAuth.RoleUser, true, false, "device", now, now)
	mock.ExpectQuery(`(?s)^SELECT\s+member_id,.*FROM\s+member\s+WHERE\s+account\s*=\s*\$1$`).
		WithArgs("alice").
		WillReturnRows(rows)

	m, err := repo.GetMemberByAccount(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "m-1", m.ID)
	assert.Equal(t, "device", m.DeviceToken)
	assert.True(t, m.Enabled)
	assert.False(t, m.Banned)
	assert.Equal(t, "19900101", m.BirthDate)
}

func TestGetMemberByID_NotFound(t *testing.T) {
	repo, mock, _ := newMemberRepo(t)

	mock.ExpectQuery(`(?s)^SELECT\s+member_id,.*WHERE\s+member_id\s*=\s*\$1$`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetMemberByID(context.Background(), "ghost")
	require.ErrorIs(t, err, almagestAuth.ErrMemberNotFound)
}

func TestGetMemberByEmail_DBError(t *testing.T) {
	repo, mock, _ := newMemberRepo(t)

	mock.ExpectQuery(`(?s)^SELECT\s+member_id,.*WHERE\s+email\s*=\s*\$1$`).
		WithArgs("a@example.com").
		WillReturnError(errors.New("db down"))

	_, err := repo.GetMemberByEmail(context.Background(), "a@example.com")
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(`db error: .*db down`), err.Error())
}

func TestAccountExists(t *testing.T) {
	repo, mock, _ := newMemberRepo(t)

	mock.ExpectQuery(`^SELECT EXISTS \(SELECT 1 FROM member WHERE account = \$1\)$`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.AccountExists(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateMember(t *testing.T) {
	repo, mock, now := newMemberRepo(t)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+member\s*\(member_id,.*VALUES\s*\(\$1,.*\$13,\s*\$13\)$`).
		WithArgs("m-1", "alice", "hash", "Alice", "alice@example.com", nil, nil, nil, "KR",
			almagestAuth.RoleUser, false, false, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.CreateMember(context.Background(), almagestAuth.Member{
		ID: "m-1", Account: "alice", PasswordHash: "hash", Name: "Alice",
		Email: "alice@example.com", Country: "KR", Role: almagestAuth.RoleUser,
	})
	require.NoError(t, err)
}

func TestCreateMember_Duplicate(t *testing.T) {
	repo, mock, _ := newMemberRepo(t)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+member`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.CreateMember(context.Background(), almagestAuth.Member{ID: "m-1", Account: "alice"})
	require.ErrorIs(t, err, almagestAuth.ErrInvalidArgument)
}

func TestUpdatePassword(t *testing.T) {
	repo, mock, now := newMemberRepo(t)

	mock.ExpectExec(`(?s)^UPDATE\s+member\s+SET\s+password\s*=\s*\$2,\s*is_enabled\s*=\s*\$3,\s*last_update\s*=\s*\$4\s+WHERE\s+member_id\s*=\s*\$1$`).
		WithArgs("m-1", "new-hash", false, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdatePassword(context.Background(), "m-1", "new-hash", false))
}

func TestUpdate_NoRowsIsNotFound(t *testing.T) {
	repo, mock, now := newMemberRepo(t)

	mock.ExpectExec(`(?s)^UPDATE\s+member\s+SET\s+is_enabled`).
		WithArgs("ghost", true, now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetEnabled(context.Background(), "ghost", true)
	require.ErrorIs(t, err, almagestAuth.ErrMemberNotFound)
}

func TestUpdateEmail_Duplicate(t *testing.T) {
	repo, mock, _ := newMemberRepo(t)

	mock.ExpectExec(`(?s)^UPDATE\s+member\s+SET\s+email`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.UpdateEmail(context.Background(), "m-1", "taken@example.com")
	require.ErrorIs(t, err, almagestAuth.ErrInvalidArgument)
}

func TestDeactivate(t *testing.T) {
	repo, mock, now := newMemberRepo(t)

	mock.ExpectExec(`(?s)^UPDATE\s+member\s+SET\s+is_enabled\s*=\s*FALSE,\s*is_banned\s*=\s*TRUE,\s*firebase_token\s*=\s*NULL`).
		WithArgs("m-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Deactivate(context.Background(), "m-1"))
}

func TestUpdateDeviceToken(t *testing.T) {
	repo, mock, _ := newMemberRepo(t)

	mock.ExpectExec(`(?s)^UPDATE\s+member\s+SET\s+firebase_token\s*=\s*\$2\s+WHERE\s+member_id\s*=\s*\$1$`).
		WithArgs("m-1", "token").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateDeviceToken(context.Background(), "m-1", "token"))
}
