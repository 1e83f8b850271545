package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nirman-dev/llm-keys/src/models"
	"github.com/nirman-dev/llm-keys/src/repositories"
	"github.com/nirman-dev/llm-keys/src/repositories/mock"
)

// memoryStore backs the mock repositories with maps so service tests can
// observe the combined effect of several calls.
type memoryStore struct {
	mu        sync.Mutex
	keys      map[uuid.UUID]*models.LLMKey
	wallets   map[string]float64
	credits   []models.CreditTransaction
	walletTxs []models.WalletTransaction
	usage     []models.UsageRecord
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		keys:    make(map[uuid.UUID]*models.LLMKey),
		wallets: make(map[string]float64),
	}
}

func (s *memoryStore) put(key *models.LLMKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := *key
	s.keys[k.ID] = &k
}

// get returns a snapshot of the stored key
func (s *memoryStore) get(id uuid.UUID) *models.LLMKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := *s.keys[id]
	return &k
}

func (s *memoryStore) owned(id uuid.UUID, userID string) (*models.LLMKey, bool) {
	k, ok := s.keys[id]
	if !ok || k.UserID != userID || k.IsDeleted() {
		return nil, false
	}
	return k, true
}

func (s *memoryStore) keyRepo() *mock.KeyRepository {
	repo := mock.NewKeyRepository()

	repo.CreateFunc = func(ctx context.Context, key *models.LLMKey, maxKeys int) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		count := 0
		for _, k := range s.keys {
			if k.UserID == key.UserID && !k.IsDeleted() {
				count++
			}
		}
		if count >= maxKeys {
			return repositories.ErrQuotaExceeded
		}
		k := *key
		s.keys[k.ID] = &k
		return nil
	}

	repo.GetByIDFunc = func(ctx context.Context, keyID uuid.UUID, userID string) (*models.LLMKey, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		k, ok := s.owned(keyID, userID)
		if !ok {
			return nil, repositories.ErrNotFound
		}
		c := *k
		return &c, nil
	}

	repo.GetByFingerprintFunc = func(ctx context.Context, fingerprint string) (*models.LLMKey, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, k := range s.keys {
			if k.Fingerprint == fingerprint && !k.IsDeleted() {
				c := *k
				return &c, nil
			}
		}
		return nil, repositories.ErrNotFound
	}

	repo.ListByUserFunc = func(ctx context.Context, userID string, limit int) ([]*models.LLMKey, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		var out []*models.LLMKey
		for _, k := range s.keys {
			if k.UserID == userID && !k.IsDeleted() {
				c := *k
				out = append(out, &c)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
		if len(out) > limit {
			out = out[:limit]
		}
		return out, nil
	}

	repo.UpdateSettingsFunc = func(ctx context.Context, keyID uuid.UUID, userID string, upd models.KeyUpdate, at time.Time) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		k, ok := s.owned(keyID, userID)
		if !ok {
			return repositories.ErrNotFound
		}
		upd.Apply(k)
		k.UpdatedAt = &at
		return nil
	}

	repo.UpdateSecretFunc = func(ctx context.Context, keyID uuid.UUID, userID, secret, fingerprint string, at time.Time) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		k, ok := s.owned(keyID, userID)
		if !ok {
			return repositories.ErrNotFound
		}
		k.Secret = secret
		k.Fingerprint = fingerprint
		k.RegeneratedAt = &at
		k.UpdatedAt = &at
		return nil
	}

	repo.SoftDeleteFunc = func(ctx context.Context, keyID uuid.UUID, userID string, at time.Time) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		k, ok := s.keys[keyID]
		if !ok || k.UserID != userID {
			return repositories.ErrNotFound
		}
		k.State = models.KeyStateDeactivated
		k.IsActive = false
		if k.DeletedAt == nil {
			k.DeletedAt = &at
		}
		return nil
	}

	return repo
}

func (s *memoryStore) creditRepo() *mock.CreditRepository {
	repo := mock.NewCreditRepository()

	repo.PurchaseFromWalletFunc = func(ctx context.Context, p *models.CreditPurchase) (float64, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		k, ok := s.owned(p.KeyID, p.UserID)
		if !ok {
			return 0, repositories.ErrNotFound
		}
		if s.wallets[p.UserID] < p.Amount {
			return 0, repositories.ErrInsufficientFunds
		}
		s.wallets[p.UserID] -= p.Amount
		k.CreditsBalance += p.Amount
		s.credits = append(s.credits, p.Credit)
		s.walletTxs = append(s.walletTxs, p.WalletDebit)
		return k.CreditsBalance, nil
	}

	repo.ListByKeyFunc = func(ctx context.Context, keyID uuid.UUID, limit int) ([]models.CreditTransaction, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		var out []models.CreditTransaction
		for i := len(s.credits) - 1; i >= 0 && len(out) < limit; i-- {
			if tx := s.credits[i]; tx.KeyID != nil && *tx.KeyID == keyID {
				out = append(out, tx)
			}
		}
		return out, nil
	}

	return repo
}

func (s *memoryStore) usageRepo() *mock.UsageRepository {
	repo := mock.NewUsageRepository()

	repo.RecordFunc = func(ctx context.Context, record *models.UsageRecord, charge *models.CreditTransaction) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		k, ok := s.keys[record.KeyID]
		if !ok {
			return repositories.ErrNotFound
		}
		debit := 0.0
		if charge != nil {
			debit = record.Cost
		}
		if k.CreditsBalance < debit {
			return repositories.ErrInsufficientBalance
		}
		k.CreditsBalance -= debit
		k.CreditsUsed += debit
		k.TotalRequests++
		at := record.CreatedAt
		k.LastUsedAt = &at
		s.usage = append(s.usage, *record)
		if charge != nil {
			s.credits = append(s.credits, *charge)
		}
		return nil
	}

	since := func(keyIDs []uuid.UUID, from time.Time, limit int) []models.UsageRecord {
		s.mu.Lock()
		defer s.mu.Unlock()
		var out []models.UsageRecord
		for _, r := range s.usage {
			if r.CreatedAt.Before(from) {
				continue
			}
			for _, id := range keyIDs {
				if r.KeyID == id {
					out = append(out, r)
					break
				}
			}
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
		if len(out) > limit {
			out = out[:limit]
		}
		return out
	}
	repo.ListByKeySinceFunc = func(ctx context.Context, keyID uuid.UUID, from time.Time, limit int) ([]models.UsageRecord, error) {
		return since([]uuid.UUID{keyID}, from, limit), nil
	}
	repo.ListByKeysSinceFunc = func(ctx context.Context, keyIDs []uuid.UUID, from time.Time, limit int) ([]models.UsageRecord, error) {
		return since(keyIDs, from, limit), nil
	}

	return repo
}

// seedKey stores an active key for userID and returns it with its raw secret
func (s *memoryStore) seedKey(userID string, balance float64) (*models.LLMKey, string) {
	secret, err := GenerateKey()
	if err != nil {
		panic(err)
	}
	key := &models.LLMKey{
		ID:                 uuid.New(),
		UserID:             userID,
		Secret:             secret,
		Fingerprint:        KeyFingerprint(secret),
		Name:               models.DefaultKeyName,
		State:              models.KeyStateActive,
		IsActive:           true,
		CreditsBalance:     balance,
		RateLimitPerMinute: models.DefaultRateLimitPerMinute,
		RateLimitPerDay:    models.DefaultRateLimitPerDay,
		AllowedProviders:   append([]string(nil), models.DefaultProviders...),
		CreatedAt:          time.Now().UTC(),
	}
	s.put(key)
	return key, secret
}
