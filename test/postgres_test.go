//go:build integration
// +build integration

package test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	almagestAuth "github.com/almagest-io/almagestAuth"
	"github.com/almagest-io/almagestAuth/pgstore"
)

// postgresDB migrates and opens ALMAGEST_TEST_DATABASE_URL; the test is
// skipped when it is unset.
func postgresDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("ALMAGEST_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("ALMAGEST_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	if err := pgstore.Migrate(ctx, dsn); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	db, err := pgstore.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPostgresMemberLifecycle(t *testing.T) {
	ctx := context.Background()
	db := postgresDB(t)
	repo := pgstore.NewMemberRepository(db)

	suffix := time.Now().UnixNano() % 1e12
	m := almagestAuth.Member{
		ID:           fmt.Sprintf("it-%d", suffix),
		Account:      fmt.Sprintf("it%d", suffix),
		PasswordHash: "hash",
		Name:         "Integration",
		Email:        fmt.Sprintf("it%d@example.com", suffix),
		Role:         almagestAuth.RoleUser,
	}
	if err := repo.CreateMember(ctx, m); err != nil {
		t.Fatalf("CreateMember: %v", err)
	}
	if err := repo.CreateMember(ctx, m); !errors.Is(err, almagestAuth.ErrInvalidArgument) {
		t.Fatalf("expected duplicate to be a validation error, got %v", err)
	}

	got, err := repo.GetMemberByAccount(ctx, m.Account)
	if err != nil {
		t.Fatalf("GetMemberByAccount: %v", err)
	}
	if got.ID != m.ID || got.Enabled || got.Banned || got.Tel != "" {
		t.Fatalf("unexpected member %+v", got)
	}

	if err := repo.UpdateDeviceToken(ctx, m.ID, "device"); err != nil {
		t.Fatalf("UpdateDeviceToken: %v", err)
	}
	if err := repo.Deactivate(ctx, m.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	got, err = repo.GetMemberByID(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMemberByID: %v", err)
	}
	if !got.Banned || got.Enabled || got.DeviceToken != "" {
		t.Fatalf("expected deactivated member, got %+v", got)
	}

	if _, err := repo.GetMemberByID(ctx, "missing-"+m.ID); !errors.Is(err, almagestAuth.ErrMemberNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPostgresBackedEngine(t *testing.T) {
	ctx := context.Background()
	db := postgresDB(t)

	service := fmt.Sprintf("it-%d", time.Now().UnixNano())
	keys := pgstore.NewSignKeyRepository(db)
	if err := keys.SaveSigningKey(ctx, service, signingKey(t)); err != nil {
		t.Fatalf("SaveSigningKey: %v", err)
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	cfg := almagestAuth.DefaultConfig()
	cfg.JWT.KeyServiceName = service
	cfg.Password.BcryptCost = 4
	cfg.Notification.Delay = 0

	push := make(pushInbox, 4)
	engine, err := almagestAuth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithMemberProvider(pgstore.NewMemberRepository(db)).
		WithChallengeStore(pgstore.NewChallengeRepository(db)).
		WithKeyStore(keys).
		WithAppVersionProvider(pgstore.NewAppVersionRepository(db)).
		WithPushSender(push).
		WithMailSender(&mailInbox{}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	account := fmt.Sprintf("pg%d", time.Now().UnixNano()%1e9)
	m, err := engine.Register(ctx, almagestAuth.RegisterRequest{
		Account:  account,
		Password: "password1",
		Name:     "Postgres",
		Email:    account + "@example.com",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := engine.Login(ctx, almagestAuth.LoginRequest{
		Account:        account,
		Password:       "password1",
		Client:         almagestAuth.ClientApp,
		DeviceToken:    "device-" + account,
		DeviceMemberID: "0",
	}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	code := push.code(t)

	pair, err := engine.IssueTokens(ctx, m.ID, "", code)
	if err != nil {
		t.Fatalf("IssueTokens: %v", err)
	}
	if _, err := engine.IssueTokens(ctx, m.ID, "", code); !errors.Is(err, almagestAuth.ErrInvalidArgument) {
		t.Fatalf("expected a used challenge to be refused, got %v", err)
	}
	res, err := engine.AuthenticateRequest(ctx, pair.AccessToken, pair.RefreshToken)
	if err != nil || res.MemberID != m.ID {
		t.Fatalf("AuthenticateRequest: %+v %v", res, err)
	}
}
