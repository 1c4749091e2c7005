package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brymix/dashboard-bff/internal/domain"
)

// ErrDuplicateAPIKey is returned when a key id is recorded twice for one user.
var ErrDuplicateAPIKey = errors.New("api key already recorded")

// APIKeyRepository stores the per-user record of keys issued upstream.
// Rows are never deleted; Deactivate flips is_active.
type APIKeyRepository interface {
	List(ctx context.Context, userID string) ([]domain.APIKey, error)
	Add(ctx context.Context, userID string, key domain.APIKey) error
	Deactivate(ctx context.Context, userID, keyID string) error
	TouchLastUsed(ctx context.Context, userID string, keyIDs []string, at time.Time) error
}

type apiKeyRepository struct {
	pool *pgxpool.Pool
}

// NewAPIKeyRepository returns a Postgres-backed implementation.
func NewAPIKeyRepository(pool *pgxpool.Pool) APIKeyRepository {
	return &apiKeyRepository{pool: pool}
}

func (r *apiKeyRepository) List(ctx context.Context, userID string) ([]domain.APIKey, error) {
	const query = `
        SELECT key_id, name, created_at, last_used, is_active
        FROM api_keys
        WHERE user_id=$1
        ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []domain.APIKey
	for rows.Next() {
		var key domain.APIKey
		if err := rows.Scan(&key.KeyID, &key.Name, &key.CreatedAt, &key.LastUsed, &key.IsActive); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (r *apiKeyRepository) Add(ctx context.Context, userID string, key domain.APIKey) error {
	const query = `
        INSERT INTO api_keys (user_id, key_id, name, created_at, is_active)
        VALUES ($1, $2, $3, $4, TRUE)`

	if _, err := r.pool.Exec(ctx, query, userID, key.KeyID, key.Name, key.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateAPIKey
		}
		return err
	}
	return nil
}

// Deactivate returns pgx.ErrNoRows unless an active key matched.
func (r *apiKeyRepository) Deactivate(ctx context.Context, userID, keyID string) error {
	cmd, err := r.pool.Exec(ctx, `
        UPDATE api_keys SET is_active=FALSE
        WHERE user_id=$1 AND key_id=$2 AND is_active=TRUE`, userID, keyID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *apiKeyRepository) TouchLastUsed(ctx context.Context, userID string, keyIDs []string, at time.Time) error {
	if len(keyIDs) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `
        UPDATE api_keys SET last_used=$3
        WHERE user_id=$1 AND key_id = ANY($2) AND is_active=TRUE`, userID, keyIDs, at)
	return err
}
