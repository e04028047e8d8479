package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SignKeyRepository stores base64 PKCS8 signing keys by service name.
type SignKeyRepository struct {
	db DBTX
}

func NewSignKeyRepository(db DBTX) *SignKeyRepository {
	return &SignKeyRepository{db: db}
}

// SigningKey returns "" and no error when the service has no key.
func (r *SignKeyRepository) SigningKey(ctx context.Context, service string) (string, error) {
	query :=
		`SELECT private_key FROM sign_key
		 WHERE service_name = $1`

	var key string
	err := r.db.QueryRowContext(ctx, query, service).Scan(&key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return key, nil
}

// SaveSigningKey stores key for service, replacing any previous key.
func (r *SignKeyRepository) SaveSigningKey(ctx context.Context, service, key string) error {
	query :=
		`INSERT INTO sign_key (service_name, private_key)
		 VALUES ($1, $2)
		 ON CONFLICT (service_name) DO UPDATE SET private_key = EXCLUDED.private_key`

	if _, err := r.db.ExecContext(ctx, query, service, key); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
