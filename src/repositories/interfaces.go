package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nirman-dev/llm-keys/src/models"
)

// KeyRepository defines the interface for LLM key data access.
// Secrets cross this boundary in their stored form (encrypted when at-rest
// encryption is enabled).
type KeyRepository interface {
	// Create inserts key unless the user already holds maxKeys non-deleted keys
	Create(ctx context.Context, key *models.LLMKey, maxKeys int) error

	// Lookups. Deleted keys and keys owned by someone else are ErrNotFound.
	GetByID(ctx context.Context, keyID uuid.UUID, userID string) (*models.LLMKey, error)
	GetByFingerprint(ctx context.Context, fingerprint string) (*models.LLMKey, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.LLMKey, error)

	// Mutations
	// UpdateSettings writes only the fields present in upd
	UpdateSettings(ctx context.Context, keyID uuid.UUID, userID string, upd models.KeyUpdate, at time.Time) error
	UpdateSecret(ctx context.Context, keyID uuid.UUID, userID, secret, fingerprint string, at time.Time) error
	SoftDelete(ctx context.Context, keyID uuid.UUID, userID string, at time.Time) error
}

// UsageRepository defines the interface for the usage ledger
type UsageRepository interface {
	// Record appends a usage record and applies its effect on the key's
	// counters. When charge is non-nil the key balance is debited by
	// record.Cost and charge is appended to the credit ledger.
	Record(ctx context.Context, record *models.UsageRecord, charge *models.CreditTransaction) error
	ListByKeySince(ctx context.Context, keyID uuid.UUID, since time.Time, limit int) ([]models.UsageRecord, error)
	ListByKeysSince(ctx context.Context, keyIDs []uuid.UUID, since time.Time, limit int) ([]models.UsageRecord, error)
}

// CreditRepository defines the interface for the credit ledger and wallet debits
type CreditRepository interface {
	// PurchaseFromWallet moves purchase.Amount from the user's wallet to the
	// key and appends both ledger entries. Returns the key's new balance.
	PurchaseFromWallet(ctx context.Context, purchase *models.CreditPurchase) (float64, error)
	ListByKey(ctx context.Context, keyID uuid.UUID, limit int) ([]models.CreditTransaction, error)
}
