package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/nirman-dev/llm-keys/src/models"
	"github.com/nirman-dev/llm-keys/src/repositories/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreditsService_AddCredits_RejectsNonPositiveAmount(t *testing.T) {
	for _, amount := range []float64{0, -5} {
		keys := mock.NewKeyRepository()
		credits := mock.NewCreditRepository()
		service := NewCreditsService(keys, credits, nil)

		_, err := service.AddCredits(context.Background(), uuid.New(), "user-1", amount, models.PaymentMethodWallet)

		assert.ErrorIs(t, err, ErrInvalidAmount, "amount %v", amount)
		assert.Empty(t, keys.Calls, "amount %v must not reach the key store", amount)
		assert.Empty(t, credits.Calls, "amount %v must not reach the ledger", amount)
	}
}

func TestCreditsService_AddCredits_FromWallet(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	service := NewCreditsService(store.keyRepo(), store.creditRepo(), nil)
	key, _ := store.seedKey("user-1", 0)
	store.wallets["user-1"] = 20

	result, err := service.AddCredits(ctx, key.ID, "user-1", 15, models.PaymentMethodWallet)
	require.NoError(t, err)

	require.NotNil(t, result.CreditsAdded)
	require.NotNil(t, result.NewBalance)
	assert.Equal(t, 15.0, *result.CreditsAdded)
	assert.Equal(t, 15.0, *result.NewBalance)
	assert.Equal(t, 5.0, store.wallets["user-1"])
	assert.Equal(t, 15.0, store.get(key.ID).CreditsBalance)

	require.Len(t, store.credits, 1)
	purchase := store.credits[0]
	assert.Equal(t, models.TransactionTypePurchase, purchase.Type)
	assert.Equal(t, 15.0, purchase.Amount)
	assert.Equal(t, "Added $15 credits from wallet", purchase.Description)
	assert.Equal(t, models.TransactionStatusCompleted, purchase.Status)
	require.NotNil(t, purchase.KeyID)
	assert.Equal(t, key.ID, *purchase.KeyID)
	require.NotNil(t, purchase.PaymentMethod)
	assert.Equal(t, models.PaymentMethodWallet, *purchase.PaymentMethod)

	require.Len(t, store.walletTxs, 1)
	debit := store.walletTxs[0]
	assert.Equal(t, -15.0, debit.Amount)
	assert.Equal(t, models.WalletTransactionTypeDebit, debit.Type)
	assert.Equal(t, "LLM Key credits purchase (Default Key)", debit.Description)
}

func TestCreditsService_AddCredits_DefaultsToWallet(t *testing.T) {
	store := newMemoryStore()
	service := NewCreditsService(store.keyRepo(), store.creditRepo(), nil)
	key, _ := store.seedKey("user-1", 1)
	store.wallets["user-1"] = 3

	result, err := service.AddCredits(context.Background(), key.ID, "user-1", 2.5, "")
	require.NoError(t, err)
	assert.Equal(t, 3.5, *result.NewBalance)
	assert.Equal(t, 0.5, store.wallets["user-1"])
}

func TestCreditsService_AddCredits_InsufficientFunds(t *testing.T) {
	store := newMemoryStore()
	service := NewCreditsService(store.keyRepo(), store.creditRepo(), nil)
	key, _ := store.seedKey("user-1", 4)
	store.wallets["user-1"] = 10

	_, err := service.AddCredits(context.Background(), key.ID, "user-1", 15, models.PaymentMethodWallet)

	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, 10.0, store.wallets["user-1"])
	assert.Equal(t, 4.0, store.get(key.ID).CreditsBalance)
	assert.Empty(t, store.credits)
	assert.Empty(t, store.walletTxs)
}

func TestCreditsService_AddCredits_UnknownKey(t *testing.T) {
	store := newMemoryStore()
	credits := store.creditRepo()
	service := NewCreditsService(store.keyRepo(), credits, nil)
	key, _ := store.seedKey("owner", 0)

	_, err := service.AddCredits(context.Background(), key.ID, "intruder", 5, models.PaymentMethodWallet)

	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.Empty(t, credits.Calls["PurchaseFromWallet"])
}

func TestCreditsService_AddCredits_Gateways(t *testing.T) {
	for _, method := range []string{models.PaymentMethodRazorpay, models.PaymentMethodCashfree} {
		t.Run(method, func(t *testing.T) {
			store := newMemoryStore()
			credits := store.creditRepo()
			service := NewCreditsService(store.keyRepo(), credits, nil)
			key, _ := store.seedKey("user-1", 0)

			result, err := service.AddCredits(context.Background(), key.ID, "user-1", 25, method)
			require.NoError(t, err)

			assert.Equal(t, "Payment initiated", result.Message)
			assert.Equal(t, "redirect_to_payment", result.Action)
			assert.Equal(t, method, result.PaymentMethod)
			require.NotNil(t, result.Amount)
			assert.Equal(t, 25.0, *result.Amount)
			assert.Nil(t, result.NewBalance)
			assert.Empty(t, credits.Calls)
			assert.Zero(t, store.get(key.ID).CreditsBalance)
		})
	}
}

func TestCreditsService_AddCredits_UnknownMethod(t *testing.T) {
	store := newMemoryStore()
	service := NewCreditsService(store.keyRepo(), store.creditRepo(), nil)
	key, _ := store.seedKey("user-1", 0)

	_, err := service.AddCredits(context.Background(), key.ID, "user-1", 5, "paypal")
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)
}

func TestCreditsService_AddCredits_LedgerFailure(t *testing.T) {
	store := newMemoryStore()
	credits := mock.NewCreditRepository()
	credits.PurchaseFromWalletFunc = func(ctx context.Context, p *models.CreditPurchase) (float64, error) {
		return 0, errors.New("connection reset")
	}
	service := NewCreditsService(store.keyRepo(), credits, nil)
	key, _ := store.seedKey("user-1", 0)

	_, err := service.AddCredits(context.Background(), key.ID, "user-1", 5, models.PaymentMethodWallet)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInsufficientFunds)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestCreditsService_CreditsHistory(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	service := NewCreditsService(store.keyRepo(), store.creditRepo(), nil)
	key, _ := store.seedKey("user-1", 0)
	store.wallets["user-1"] = 100

	for _, amount := range []float64{5, 10, 25} {
		_, err := service.AddCredits(ctx, key.ID, "user-1", amount, models.PaymentMethodWallet)
		require.NoError(t, err)
	}

	history, err := service.CreditsHistory(ctx, key.ID, "user-1", 0)
	require.NoError(t, err)

	assert.Equal(t, 40.0, history.CurrentBalance)
	require.Len(t, history.Transactions, 3)
	assert.Equal(t, 25.0, history.Transactions[0].Amount, "newest first")
	assert.Equal(t, 5.0, history.Transactions[2].Amount)

	_, err = service.CreditsHistory(ctx, key.ID, "intruder", 10)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestCreditsService_CreditsHistory_EmptyIsNotNil(t *testing.T) {
	store := newMemoryStore()
	service := NewCreditsService(store.keyRepo(), mock.NewCreditRepository(), nil)
	key, _ := store.seedKey("user-1", 0)

	history, err := service.CreditsHistory(context.Background(), key.ID, "user-1", 10)
	require.NoError(t, err)
	assert.NotNil(t, history.Transactions)
	assert.Empty(t, history.Transactions)
}

func TestClampHistoryLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultHistoryLimit},
		{-3, 1},
		{1, 1},
		{75, 75},
		{200, 200},
		{201, MaxHistoryLimit},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, clampHistoryLimit(tt.in), "limit %d", tt.in)
	}
}
