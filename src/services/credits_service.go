package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nirman-dev/llm-keys/src/logging"
	"github.com/nirman-dev/llm-keys/src/models"
	"github.com/nirman-dev/llm-keys/src/repositories"
	"github.com/rs/zerolog"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// AddCreditsResult is the response to a credit top-up. For wallet purchases
// CreditsAdded and NewBalance are set; for external gateways Action tells the
// client to redirect to the payment page.
type AddCreditsResult struct {
	Message       string   `json:"message"`
	CreditsAdded  *float64 `json:"credits_added,omitempty"`
	NewBalance    *float64 `json:"new_balance,omitempty"`
	Amount        *float64 `json:"amount,omitempty"`
	PaymentMethod string   `json:"payment_method,omitempty"`
	Action        string   `json:"action,omitempty"`
}

// CreditsHistory is a key's recent ledger entries and its current balance
type CreditsHistory struct {
	Transactions   []models.CreditTransaction `json:"transactions"`
	CurrentBalance float64                    `json:"current_balance"`
}

// CreditsService funds keys from the user's wallet and reads the credit ledger
type CreditsService struct {
	keys      repositories.KeyRepository
	credits   repositories.CreditRepository
	analytics *AnalyticsService
	now       func() time.Time
	log       zerolog.Logger
}

// NewCreditsService creates a new credits service
func NewCreditsService(keys repositories.KeyRepository, credits repositories.CreditRepository, analytics *AnalyticsService) *CreditsService {
	return &CreditsService{
		keys:      keys,
		credits:   credits,
		analytics: analytics,
		now:       func() time.Time { return time.Now().UTC() },
		log:       logging.NewLogger("credits_service"),
	}
}

// AddCredits tops up a key. Wallet purchases move the money, credit the key
// and write both ledger entries as one unit; gateway methods only return a
// payment acknowledgment.
func (cs *CreditsService) AddCredits(ctx context.Context, keyID uuid.UUID, userID string, amount float64, method string) (*AddCreditsResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if method == "" {
		method = models.PaymentMethodWallet
	}

	key, err := cs.keys.GetByID(ctx, keyID, userID)
	if err != nil {
		return nil, mapKeyErr(err, "failed to get key")
	}

	switch method {
	case models.PaymentMethodWallet:
		return cs.purchaseFromWallet(ctx, key, amount)
	case models.PaymentMethodRazorpay, models.PaymentMethodCashfree:
		cs.log.Info().Str("user_id", userID).Str("key_id", keyID.String()).
			Str("payment_method", method).Float64("amount", amount).Msg("payment initiated")
		return &AddCreditsResult{
			Message:       "Payment initiated",
			Amount:        &amount,
			PaymentMethod: method,
			Action:        "redirect_to_payment",
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidPaymentMethod, method)
	}
}

func (cs *CreditsService) purchaseFromWallet(ctx context.Context, key *models.LLMKey, amount float64) (*AddCreditsResult, error) {
	now := cs.now()
	method := models.PaymentMethodWallet
	keyID := key.ID

	purchase := &models.CreditPurchase{
		UserID: key.UserID,
		KeyID:  key.ID,
		Amount: amount,
		Credit: models.CreditTransaction{
			ID:            uuid.New(),
			UserID:        key.UserID,
			KeyID:         &keyID,
			Amount:        amount,
			Type:          models.TransactionTypePurchase,
			Description:   fmt.Sprintf("Added $%s credits from wallet", formatAmount(amount)),
			PaymentMethod: &method,
			Status:        models.TransactionStatusCompleted,
			CreatedAt:     now,
		},
		WalletDebit: models.WalletTransaction{
			ID:          uuid.New(),
			UserID:      key.UserID,
			Amount:      -amount,
			Type:        models.WalletTransactionTypeDebit,
			Description: fmt.Sprintf("LLM Key credits purchase (%s)", key.Name),
			CreatedAt:   now,
		},
	}

	newBalance, err := cs.credits.PurchaseFromWallet(ctx, purchase)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrInsufficientFunds):
			return nil, ErrInsufficientFunds
		case errors.Is(err, repositories.ErrNotFound):
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to add credits: %w", err)
	}

	cs.log.Info().Str("user_id", key.UserID).Str("key_id", key.ID.String()).
		Float64("amount", amount).Float64("new_balance", newBalance).Msg("credits added from wallet")
	cs.analytics.TrackCreditsAdded(ctx, key.UserID, amount, method)

	return &AddCreditsResult{
		Message:      "Credits added successfully",
		CreditsAdded: &amount,
		NewBalance:   &newBalance,
	}, nil
}

// CreditsHistory returns up to limit transactions for the key, newest first.
// limit is clamped to 1..200; zero selects the default of 50.
func (cs *CreditsService) CreditsHistory(ctx context.Context, keyID uuid.UUID, userID string, limit int) (*CreditsHistory, error) {
	limit = clampHistoryLimit(limit)

	key, err := cs.keys.GetByID(ctx, keyID, userID)
	if err != nil {
		return nil, mapKeyErr(err, "failed to get key")
	}

	txs, err := cs.credits.ListByKey(ctx, keyID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get credits history: %w", err)
	}
	if txs == nil {
		txs = []models.CreditTransaction{}
	}

	return &CreditsHistory{
		Transactions:   txs,
		CurrentBalance: key.CreditsBalance,
	}, nil
}

func clampHistoryLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultHistoryLimit
	case limit < 1:
		return 1
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	}
	return limit
}
