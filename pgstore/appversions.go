package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// AppVersionRepository reads and publishes the current mobile app version.
type AppVersionRepository struct {
	db *sql.DB
}

func NewAppVersionRepository(db *sql.DB) *AppVersionRepository {
	return &AppVersionRepository{db: db}
}

// LatestAppVersion returns the current version code, or "" when none is
// published.
func (r *AppVersionRepository) LatestAppVersion(ctx context.Context) (string, error) {
	query :=
		`SELECT version_code FROM mobile_app_version
		 WHERE is_current
		 ORDER BY mobile_version_id DESC
		 LIMIT 1`

	var code string
	err := r.db.QueryRowContext(ctx, query).Scan(&code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return code, nil
}

// PublishAppVersion makes code the only current version.
func (r *AppVersionRepository) PublishAppVersion(ctx context.Context, code string) error {
	if code == "" {
		return errors.New("version code must not be empty")
	}
	return WithTx(ctx, r.db, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx, `UPDATE mobile_app_version SET is_current = FALSE WHERE is_current`); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO mobile_app_version (version_code, is_current) VALUES ($1, TRUE)`, code); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
}
