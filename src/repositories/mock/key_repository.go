package mock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nirman-dev/llm-keys/src/models"
	"github.com/nirman-dev/llm-keys/src/repositories"
)

// KeyRepository is a mock implementation of repositories.KeyRepository
type KeyRepository struct {
	// Function stubs that can be overridden in tests
	CreateFunc           func(ctx context.Context, key *models.LLMKey, maxKeys int) error
	GetByIDFunc          func(ctx context.Context, keyID uuid.UUID, userID string) (*models.LLMKey, error)
	GetByFingerprintFunc func(ctx context.Context, fingerprint string) (*models.LLMKey, error)
	ListByUserFunc       func(ctx context.Context, userID string, limit int) ([]*models.LLMKey, error)
	UpdateSettingsFunc   func(ctx context.Context, keyID uuid.UUID, userID string, upd models.KeyUpdate, at time.Time) error
	UpdateSecretFunc     func(ctx context.Context, keyID uuid.UUID, userID, secret, fingerprint string, at time.Time) error
	SoftDeleteFunc       func(ctx context.Context, keyID uuid.UUID, userID string, at time.Time) error

	// Call tracking
	Calls map[string][]interface{}
}

// NewKeyRepository creates a new mock key repository
func NewKeyRepository() *KeyRepository {
	return &KeyRepository{
		Calls: make(map[string][]interface{}),
	}
}

func (m *KeyRepository) Create(ctx context.Context, key *models.LLMKey, maxKeys int) error {
	m.Calls["Create"] = append(m.Calls["Create"], key)
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, key, maxKeys)
	}
	return nil
}

func (m *KeyRepository) GetByID(ctx context.Context, keyID uuid.UUID, userID string) (*models.LLMKey, error) {
	m.Calls["GetByID"] = append(m.Calls["GetByID"], []interface{}{keyID, userID})
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, keyID, userID)
	}
	return nil, repositories.ErrNotFound
}

func (m *KeyRepository) GetByFingerprint(ctx context.Context, fingerprint string) (*models.LLMKey, error) {
	m.Calls["GetByFingerprint"] = append(m.Calls["GetByFingerprint"], fingerprint)
	if m.GetByFingerprintFunc != nil {
		return m.GetByFingerprintFunc(ctx, fingerprint)
	}
	return nil, repositories.ErrNotFound
}

func (m *KeyRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.LLMKey, error) {
	m.Calls["ListByUser"] = append(m.Calls["ListByUser"], []interface{}{userID, limit})
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID, limit)
	}
	return nil, nil
}

func (m *KeyRepository) UpdateSettings(ctx context.Context, keyID uuid.UUID, userID string, upd models.KeyUpdate, at time.Time) error {
	m.Calls["UpdateSettings"] = append(m.Calls["UpdateSettings"], []interface{}{keyID, userID, upd})
	if m.UpdateSettingsFunc != nil {
		return m.UpdateSettingsFunc(ctx, keyID, userID, upd, at)
	}
	return nil
}

func (m *KeyRepository) UpdateSecret(ctx context.Context, keyID uuid.UUID, userID, secret, fingerprint string, at time.Time) error {
	m.Calls["UpdateSecret"] = append(m.Calls["UpdateSecret"], []interface{}{keyID, userID, secret, fingerprint})
	if m.UpdateSecretFunc != nil {
		return m.UpdateSecretFunc(ctx, keyID, userID, secret, fingerprint, at)
	}
	return nil
}

func (m *KeyRepository) SoftDelete(ctx context.Context, keyID uuid.UUID, userID string, at time.Time) error {
	m.Calls["SoftDelete"] = append(m.Calls["SoftDelete"], []interface{}{keyID, userID})
	if m.SoftDeleteFunc != nil {
		return m.SoftDeleteFunc(ctx, keyID, userID, at)
	}
	return nil
}

// Ensure KeyRepository implements the interface
var _ repositories.KeyRepository = (*KeyRepository)(nil)
