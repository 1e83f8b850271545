package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nirman-dev/llm-keys/src/models"
)

const usageColumns = `
	id, key_id, user_id, provider, model, tokens_in, tokens_out,
	cost, latency_ms, status, error_message, created_at`

// PostgresUsageRepository stores provider calls in llm_key_usage
type PostgresUsageRepository struct {
	pool *pgxpool.Pool
}

// NewUsageRepository creates a new Postgres-backed usage repository
func NewUsageRepository(pool *pgxpool.Pool) *PostgresUsageRepository {
	return &PostgresUsageRepository{pool: pool}
}

// Record appends record, bumps the key's counters and, for a charge, debits
// the balance. The debit is conditional so the balance never goes negative.
func (r *PostgresUsageRepository) Record(ctx context.Context, record *models.UsageRecord, charge *models.CreditTransaction) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO llm_key_usage (`+usageColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, record.ID, record.KeyID, record.UserID, record.Provider, record.Model,
		record.TokensIn, record.TokensOut, record.Cost, record.LatencyMs,
		record.Status, record.ErrorMessage, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}

	debit := 0.0
	if charge != nil {
		debit = record.Cost
	}
	result, err := tx.Exec(ctx, `
		UPDATE llm_keys
		SET credits_balance = credits_balance - $2,
			credits_used = credits_used + $2,
			total_requests = total_requests + 1,
			last_used_at = $3
		WHERE id = $1 AND credits_balance >= $2
	`, record.KeyID, debit, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to update key usage: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInsufficientBalance
	}

	if charge != nil {
		if err := insertCreditTransaction(ctx, tx, charge); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListByKeySince returns a key's records created at or after since, newest first
func (r *PostgresUsageRepository) ListByKeySince(ctx context.Context, keyID uuid.UUID, since time.Time, limit int) ([]models.UsageRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+usageColumns+` FROM llm_key_usage
		WHERE key_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT $3
	`, keyID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage: %w", err)
	}
	return collectUsage(rows)
}

// ListByKeysSince is ListByKeySince across several keys
func (r *PostgresUsageRepository) ListByKeysSince(ctx context.Context, keyIDs []uuid.UUID, since time.Time, limit int) ([]models.UsageRecord, error) {
	if len(keyIDs) == 0 {
		return nil, nil
	}
	ids := make([]string, len(keyIDs))
	for i, id := range keyIDs {
		ids[i] = id.String()
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+usageColumns+` FROM llm_key_usage
		WHERE key_id = ANY($1::uuid[]) AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT $3
	`, ids, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage: %w", err)
	}
	return collectUsage(rows)
}

func collectUsage(rows pgx.Rows) ([]models.UsageRecord, error) {
	defer rows.Close()

	var records []models.UsageRecord
	for rows.Next() {
		var u models.UsageRecord
		if err := rows.Scan(
			&u.ID, &u.KeyID, &u.UserID, &u.Provider, &u.Model, &u.TokensIn, &u.TokensOut,
			&u.Cost, &u.LatencyMs, &u.Status, &u.ErrorMessage, &u.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		records = append(records, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage: %w", err)
	}
	return records, nil
}

var _ UsageRepository = (*PostgresUsageRepository)(nil)
