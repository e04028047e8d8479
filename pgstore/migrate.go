package pgstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate applies every pending up migration. The schema being current is
// not an error.
func Migrate(ctx context.Context, dsn string) error {
	return run(ctx, dsn, func(m *migrate.Migrate) error { return m.Up() })
}

// MigrateDown reverts every migration.
func MigrateDown(ctx context.Context, dsn string) error {
	return run(ctx, dsn, func(m *migrate.Migrate) error { return m.Down() })
}

// run owns its connection: closing the migrate instance closes the pool.
func run(ctx context.Context, dsn string, step func(*migrate.Migrate) error) error {
	db, err := Open(ctx, dsn)
	if err != nil {
		return fmt.Errorf("migrate open: %w", err)
	}

	m, err := newMigrate(db)
	if err != nil {
		_ = db.Close()
		return err
	}
	defer func() { _, _ = m.Close() }()

	if err := step(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrate source: %w", err)
	}
	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return nil, fmt.Errorf("migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "pgx5", driver)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return m, nil
}
