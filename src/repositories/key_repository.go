package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nirman-dev/llm-keys/src/models"
)

const keyColumns = `
	id, user_id, secret, fingerprint, name, state, is_active,
	credits_balance, credits_used, total_requests, last_used_at,
	rate_limit_per_minute, rate_limit_per_day, allowed_providers,
	created_at, updated_at, regenerated_at, expires_at, deleted_at`

// PostgresKeyRepository stores LLM keys in the llm_keys table
type PostgresKeyRepository struct {
	pool *pgxpool.Pool
}

// NewKeyRepository creates a new Postgres-backed key repository
func NewKeyRepository(pool *pgxpool.Pool) *PostgresKeyRepository {
	return &PostgresKeyRepository{pool: pool}
}

func scanKey(row pgx.Row) (*models.LLMKey, error) {
	var k models.LLMKey
	var state string
	err := row.Scan(
		&k.ID, &k.UserID, &k.Secret, &k.Fingerprint, &k.Name, &state, &k.IsActive,
		&k.CreditsBalance, &k.CreditsUsed, &k.TotalRequests, &k.LastUsedAt,
		&k.RateLimitPerMinute, &k.RateLimitPerDay, &k.AllowedProviders,
		&k.CreatedAt, &k.UpdatedAt, &k.RegeneratedAt, &k.ExpiresAt, &k.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	k.State = models.KeyState(state)
	return &k, nil
}

// Create inserts a key while holding a per-user advisory lock so that two
// concurrent creates cannot both pass the quota check.
func (r *PostgresKeyRepository) Create(ctx context.Context, key *models.LLMKey, maxKeys int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key.UserID); err != nil {
		return fmt.Errorf("failed to lock user keys: %w", err)
	}

	var count int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM llm_keys
		WHERE user_id = $1 AND state = $2
	`, key.UserID, string(models.KeyStateActive)).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to count user keys: %w", err)
	}
	if count >= maxKeys {
		return ErrQuotaExceeded
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO llm_keys (
			id, user_id, secret, fingerprint, name, state, is_active,
			credits_balance, credits_used, total_requests,
			rate_limit_per_minute, rate_limit_per_day, allowed_providers,
			created_at, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		key.ID, key.UserID, key.Secret, key.Fingerprint, key.Name, string(key.State), key.IsActive,
		key.CreditsBalance, key.CreditsUsed, key.TotalRequests,
		key.RateLimitPerMinute, key.RateLimitPerDay, key.AllowedProviders,
		key.CreatedAt, key.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create key: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetByID returns a non-deleted key owned by userID
func (r *PostgresKeyRepository) GetByID(ctx context.Context, keyID uuid.UUID, userID string) (*models.LLMKey, error) {
	key, err := scanKey(r.pool.QueryRow(ctx, `
		SELECT `+keyColumns+` FROM llm_keys
		WHERE id = $1 AND user_id = $2 AND state = $3
	`, keyID, userID, string(models.KeyStateActive)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get key: %w", err)
	}
	return key, nil
}

// GetByFingerprint returns a non-deleted key by its secret fingerprint
func (r *PostgresKeyRepository) GetByFingerprint(ctx context.Context, fingerprint string) (*models.LLMKey, error) {
	key, err := scanKey(r.pool.QueryRow(ctx, `
		SELECT `+keyColumns+` FROM llm_keys
		WHERE fingerprint = $1 AND state = $2
	`, fingerprint, string(models.KeyStateActive)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get key by fingerprint: %w", err)
	}
	return key, nil
}

// ListByUser returns the user's non-deleted keys, newest first
func (r *PostgresKeyRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.LLMKey, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+keyColumns+` FROM llm_keys
		WHERE user_id = $1 AND state = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, userID, string(models.KeyStateActive), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.LLMKey
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating keys: %w", err)
	}
	return keys, nil
}

// UpdateSettings applies the present fields of upd in a single statement.
// Absent fields bind as NULL and COALESCE keeps the stored value, so
// concurrent partial updates of different fields do not overwrite each other.
func (r *PostgresKeyRepository) UpdateSettings(ctx context.Context, keyID uuid.UUID, userID string, upd models.KeyUpdate, at time.Time) error {
	var providers []string
	if upd.AllowedProviders != nil {
		providers = append([]string{}, (*upd.AllowedProviders)...)
	}

	result, err := r.pool.Exec(ctx, `
		UPDATE llm_keys
		SET name = COALESCE($3, name),
			is_active = COALESCE($4, is_active),
			rate_limit_per_minute = COALESCE($5, rate_limit_per_minute),
			rate_limit_per_day = COALESCE($6, rate_limit_per_day),
			allowed_providers = COALESCE($7, allowed_providers),
			updated_at = $8
		WHERE id = $1 AND user_id = $2 AND state = $9
	`, keyID, userID, upd.Name, upd.IsActive, upd.RateLimitPerMinute,
		upd.RateLimitPerDay, providers, at, string(models.KeyStateActive))
	if err != nil {
		return fmt.Errorf("failed to update key: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateSecret replaces the key's secret; balances and counters are untouched
func (r *PostgresKeyRepository) UpdateSecret(ctx context.Context, keyID uuid.UUID, userID, secret, fingerprint string, at time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE llm_keys
		SET secret = $3, fingerprint = $4, regenerated_at = $5, updated_at = $5
		WHERE id = $1 AND user_id = $2 AND state = $6
	`, keyID, userID, secret, fingerprint, at, string(models.KeyStateActive))
	if err != nil {
		return fmt.Errorf("failed to regenerate key: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete deactivates a key. Already-deleted keys still match, so repeated
// calls succeed and keep the first deletion timestamp.
func (r *PostgresKeyRepository) SoftDelete(ctx context.Context, keyID uuid.UUID, userID string, at time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE llm_keys
		SET state = $3, is_active = false, deleted_at = COALESCE(deleted_at, $4)
		WHERE id = $1 AND user_id = $2
	`, keyID, userID, string(models.KeyStateDeactivated), at)
	if err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var _ KeyRepository = (*PostgresKeyRepository)(nil)
