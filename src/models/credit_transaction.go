package models

import (
	"time"

	"github.com/google/uuid"
)

// CreditTransaction is one balance-affecting event on a key
type CreditTransaction struct {
	ID            uuid.UUID       `json:"id"`
	UserID        string          `json:"user_id"`
	KeyID         *uuid.UUID      `json:"key_id"`
	Amount        float64         `json:"amount"`
	Type          TransactionType `json:"type"`
	Description   string          `json:"description"`
	PaymentID     *string         `json:"payment_id"`
	PaymentMethod *string         `json:"payment_method"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// WalletTransaction is the wallet-side record of a debit made by this service
type WalletTransaction struct {
	ID          uuid.UUID `json:"id"`
	UserID      string    `json:"user_id"`
	Amount      float64   `json:"amount"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// WalletTransactionTypeDebit marks money leaving the wallet
const WalletTransactionTypeDebit = "debit"

// CreditPurchase describes one wallet-funded credit top-up, written atomically
type CreditPurchase struct {
	UserID      string
	KeyID       uuid.UUID
	Amount      float64
	Credit      CreditTransaction
	WalletDebit WalletTransaction
}
