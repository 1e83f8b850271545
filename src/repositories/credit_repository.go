package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nirman-dev/llm-keys/src/models"
)

// PostgresCreditRepository stores the credit ledger and debits wallets
type PostgresCreditRepository struct {
	pool *pgxpool.Pool
}

// NewCreditRepository creates a new Postgres-backed credit repository
func NewCreditRepository(pool *pgxpool.Pool) *PostgresCreditRepository {
	return &PostgresCreditRepository{pool: pool}
}

// PurchaseFromWallet performs the wallet debit, key credit and both ledger
// appends in one transaction. Balances change through atomic increments only.
func (r *PostgresCreditRepository) PurchaseFromWallet(ctx context.Context, p *models.CreditPurchase) (float64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// The key must exist and belong to the user before money moves
	var keyExists bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM llm_keys WHERE id = $1 AND user_id = $2 AND state = $3)
	`, p.KeyID, p.UserID, string(models.KeyStateActive)).Scan(&keyExists)
	if err != nil {
		return 0, fmt.Errorf("failed to check key: %w", err)
	}
	if !keyExists {
		return 0, ErrNotFound
	}

	result, err := tx.Exec(ctx, `
		UPDATE users SET wallet_balance = wallet_balance - $2
		WHERE id = $1 AND wallet_balance >= $2
	`, p.UserID, p.Amount)
	if err != nil {
		return 0, fmt.Errorf("failed to debit wallet: %w", err)
	}
	if result.RowsAffected() == 0 {
		return 0, ErrInsufficientFunds
	}

	var newBalance float64
	err = tx.QueryRow(ctx, `
		UPDATE llm_keys SET credits_balance = credits_balance + $3
		WHERE id = $1 AND user_id = $2
		RETURNING credits_balance
	`, p.KeyID, p.UserID, p.Amount).Scan(&newBalance)
	if err != nil {
		return 0, fmt.Errorf("failed to credit key: %w", err)
	}

	if err := insertCreditTransaction(ctx, tx, &p.Credit); err != nil {
		return 0, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO wallet_transactions (id, user_id, amount, type, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.WalletDebit.ID, p.WalletDebit.UserID, p.WalletDebit.Amount, p.WalletDebit.Type,
		p.WalletDebit.Description, p.WalletDebit.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to log wallet transaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return newBalance, nil
}

func insertCreditTransaction(ctx context.Context, tx pgx.Tx, ct *models.CreditTransaction) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO credit_transactions (
			id, user_id, key_id, amount, type, description,
			payment_id, payment_method, status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, ct.ID, ct.UserID, ct.KeyID, ct.Amount, string(ct.Type), ct.Description,
		ct.PaymentID, ct.PaymentMethod, ct.Status, ct.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to log credit transaction: %w", err)
	}
	return nil
}

// ListByKey returns the most recent transactions for a key, newest first
func (r *PostgresCreditRepository) ListByKey(ctx context.Context, keyID uuid.UUID, limit int) ([]models.CreditTransaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, key_id, amount, type, description,
			payment_id, payment_method, status, created_at
		FROM credit_transactions
		WHERE key_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, keyID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query credit transactions: %w", err)
	}
	defer rows.Close()

	var txs []models.CreditTransaction
	for rows.Next() {
		var ct models.CreditTransaction
		var txType string
		if err := rows.Scan(
			&ct.ID, &ct.UserID, &ct.KeyID, &ct.Amount, &txType, &ct.Description,
			&ct.PaymentID, &ct.PaymentMethod, &ct.Status, &ct.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan credit transaction: %w", err)
		}
		ct.Type = models.TransactionType(txType)
		txs = append(txs, ct)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating credit transactions: %w", err)
	}
	return txs, nil
}

var _ CreditRepository = (*PostgresCreditRepository)(nil)

