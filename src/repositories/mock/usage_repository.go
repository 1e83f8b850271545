package mock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nirman-dev/llm-keys/src/models"
	"github.com/nirman-dev/llm-keys/src/repositories"
)

// UsageRepository is a mock implementation of repositories.UsageRepository
type UsageRepository struct {
	RecordFunc          func(ctx context.Context, record *models.UsageRecord, charge *models.CreditTransaction) error
	ListByKeySinceFunc  func(ctx context.Context, keyID uuid.UUID, since time.Time, limit int) ([]models.UsageRecord, error)
	ListByKeysSinceFunc func(ctx context.Context, keyIDs []uuid.UUID, since time.Time, limit int) ([]models.UsageRecord, error)

	Calls map[string][]interface{}
}

// NewUsageRepository creates a new mock usage repository
func NewUsageRepository() *UsageRepository {
	return &UsageRepository{
		Calls: make(map[string][]interface{}),
	}
}

func (m *UsageRepository) Record(ctx context.Context, record *models.UsageRecord, charge *models.CreditTransaction) error {
	m.Calls["Record"] = append(m.Calls["Record"], []interface{}{record, charge})
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, record, charge)
	}
	return nil
}

func (m *UsageRepository) ListByKeySince(ctx context.Context, keyID uuid.UUID, since time.Time, limit int) ([]models.UsageRecord, error) {
	m.Calls["ListByKeySince"] = append(m.Calls["ListByKeySince"], []interface{}{keyID, since, limit})
	if m.ListByKeySinceFunc != nil {
		return m.ListByKeySinceFunc(ctx, keyID, since, limit)
	}
	return nil, nil
}

func (m *UsageRepository) ListByKeysSince(ctx context.Context, keyIDs []uuid.UUID, since time.Time, limit int) ([]models.UsageRecord, error) {
	m.Calls["ListByKeysSince"] = append(m.Calls["ListByKeysSince"], []interface{}{keyIDs, since, limit})
	if m.ListByKeysSinceFunc != nil {
		return m.ListByKeysSinceFunc(ctx, keyIDs, since, limit)
	}
	return nil, nil
}

var _ repositories.UsageRepository = (*UsageRepository)(nil)
