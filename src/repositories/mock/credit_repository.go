package mock

import (
	"context"

	"github.com/google/uuid"
	"github.com/nirman-dev/llm-keys/src/models"
	"github.com/nirman-dev/llm-keys/src/repositories"
)

// CreditRepository is a mock implementation of repositories.CreditRepository
type CreditRepository struct {
	PurchaseFromWalletFunc func(ctx context.Context, purchase *models.CreditPurchase) (float64, error)
	ListByKeyFunc          func(ctx context.Context, keyID uuid.UUID, limit int) ([]models.CreditTransaction, error)

	Calls map[string][]interface{}
}

// NewCreditRepository creates a new mock credit repository
func NewCreditRepository() *CreditRepository {
	return &CreditRepository{
		Calls: make(map[string][]interface{}),
	}
}

func (m *CreditRepository) PurchaseFromWallet(ctx context.Context, purchase *models.CreditPurchase) (float64, error) {
	m.Calls["PurchaseFromWallet"] = append(m.Calls["PurchaseFromWallet"], purchase)
	if m.PurchaseFromWalletFunc != nil {
		return m.PurchaseFromWalletFunc(ctx, purchase)
	}
	return purchase.Amount, nil
}

func (m *CreditRepository) ListByKey(ctx context.Context, keyID uuid.UUID, limit int) ([]models.CreditTransaction, error) {
	m.Calls["ListByKey"] = append(m.Calls["ListByKey"], []interface{}{keyID, limit})
	if m.ListByKeyFunc != nil {
		return m.ListByKeyFunc(ctx, keyID, limit)
	}
	return nil, nil
}

var _ repositories.CreditRepository = (*CreditRepository)(nil)
