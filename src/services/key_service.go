package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nirman-dev/llm-keys/src/logging"
	"github.com/nirman-dev/llm-keys/src/models"
	"github.com/nirman-dev/llm-keys/src/repositories"
	"github.com/rs/zerolog"
)

// OneTimeKeyWarning accompanies every response that reveals a raw secret
const OneTimeKeyWarning = "Save this key! It won't be shown again."

// CreatedKey is returned once, at creation; it is the only read of the secret
type CreatedKey struct {
	Message string    `json:"message"`
	Key     string    `json:"key"`
	KeyID   uuid.UUID `json:"key_id"`
	Warning string    `json:"warning"`
}

// RegeneratedKey carries the replacement secret, returned once
type RegeneratedKey struct {
	Message string `json:"message"`
	Key     string `json:"key"`
	Warning string `json:"warning"`
}

// KeyService handles LLM key lifecycle operations
type KeyService struct {
	repo      repositories.KeyRepository
	encryptor *Encryptor
	analytics *AnalyticsService
	now       func() time.Time
	log       zerolog.Logger
}

// NewKeyService creates a new key service. encryptor and analytics may be nil.
func NewKeyService(repo repositories.KeyRepository, encryptor *Encryptor, analytics *AnalyticsService) *KeyService {
	return &KeyService{
		repo:      repo,
		encryptor: encryptor,
		analytics: analytics,
		now:       func() time.Time { return time.Now().UTC() },
		log:       logging.NewLogger("key_service"),
	}
}

// ListKeys returns the user's non-deleted keys, newest first, without secrets
func (ks *KeyService) ListKeys(ctx context.Context, userID string) ([]models.KeyResponse, error) {
	keys, err := ks.repo.ListByUser(ctx, userID, models.MaxListedKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	result := make([]models.KeyResponse, 0, len(keys))
	for _, key := range keys {
		result = append(result, ks.toResponse(key))
	}
	return result, nil
}

// CreateKey issues a new key with a zero balance. The returned secret is
// never readable again through any other call.
func (ks *KeyService) CreateKey(ctx context.Context, userID, name string, providers []string) (*CreatedKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = models.DefaultKeyName
	}
	if len(providers) == 0 {
		providers = append([]string(nil), models.DefaultProviders...)
	}
	if err := validateProviders(providers); err != nil {
		return nil, err
	}

	secret, stored, fingerprint, err := ks.newSecret()
	if err != nil {
		return nil, err
	}

	key := &models.LLMKey{
		ID:                 uuid.New(),
		UserID:             userID,
		Secret:             stored,
		Fingerprint:        fingerprint,
		Name:               name,
		State:              models.KeyStateActive,
		IsActive:           true,
		RateLimitPerMinute: models.DefaultRateLimitPerMinute,
		RateLimitPerDay:    models.DefaultRateLimitPerDay,
		AllowedProviders:   providers,
		CreatedAt:          ks.now(),
	}

	if err := ks.repo.Create(ctx, key, models.MaxKeysPerUser); err != nil {
		if errors.Is(err, repositories.ErrQuotaExceeded) {
			return nil, ErrKeyQuotaExceeded
		}
		return nil, fmt.Errorf("failed to create key: %w", err)
	}

	ks.log.Info().Str("user_id", userID).Str("key_id", key.ID.String()).Msg("llm key created")
	ks.analytics.TrackKeyCreated(ctx, userID, len(providers))

	return &CreatedKey{
		Message: "LLM Key created successfully",
		Key:     secret,
		KeyID:   key.ID,
		Warning: OneTimeKeyWarning,
	}, nil
}

// GetKey returns one key without its secret
func (ks *KeyService) GetKey(ctx context.Context, keyID uuid.UUID, userID string) (*models.KeyResponse, error) {
	key, err := ks.lookup(ctx, keyID, userID)
	if err != nil {
		return nil, err
	}
	resp := ks.toResponse(key)
	return &resp, nil
}

// UpdateKey applies the fields present in upd. An update with no fields
// succeeds without writing, provided the key exists.
func (ks *KeyService) UpdateKey(ctx context.Context, keyID uuid.UUID, userID string, upd models.KeyUpdate) error {
	if upd.RateLimitPerMinute != nil && *upd.RateLimitPerMinute <= 0 {
		return ErrInvalidRateLimit
	}
	if upd.RateLimitPerDay != nil && *upd.RateLimitPerDay <= 0 {
		return ErrInvalidRateLimit
	}
	if upd.AllowedProviders != nil {
		if err := validateProviders(*upd.AllowedProviders); err != nil {
			return err
		}
	}

	if upd.IsEmpty() {
		_, err := ks.lookup(ctx, keyID, userID)
		return err
	}

	if err := ks.repo.UpdateSettings(ctx, keyID, userID, upd, ks.now()); err != nil {
		return mapKeyErr(err, "failed to update key")
	}
	return nil
}

// DeleteKey soft-deletes a key. Deleting an already deleted key succeeds.
func (ks *KeyService) DeleteKey(ctx context.Context, keyID uuid.UUID, userID string) error {
	if err := ks.repo.SoftDelete(ctx, keyID, userID, ks.now()); err != nil {
		return mapKeyErr(err, "failed to delete key")
	}

	ks.log.Info().Str("user_id", userID).Str("key_id", keyID.String()).Msg("llm key deleted")
	ks.analytics.TrackKeyDeleted(ctx, userID)
	return nil
}

// RegenerateKey replaces the secret, leaving balances and counters as they were
func (ks *KeyService) RegenerateKey(ctx context.Context, keyID uuid.UUID, userID string) (*RegeneratedKey, error) {
	secret, stored, fingerprint, err := ks.newSecret()
	if err != nil {
		return nil, err
	}

	if err := ks.repo.UpdateSecret(ctx, keyID, userID, stored, fingerprint, ks.now()); err != nil {
		return nil, mapKeyErr(err, "failed to regenerate key")
	}

	ks.log.Info().Str("user_id", userID).Str("key_id", keyID.String()).Msg("llm key regenerated")
	ks.analytics.TrackKeyRegenerated(ctx, userID)

	return &RegeneratedKey{
		Message: "Key regenerated successfully",
		Key:     secret,
		Warning: OneTimeKeyWarning,
	}, nil
}

// lookup fetches an owned, non-deleted key
func (ks *KeyService) lookup(ctx context.Context, keyID uuid.UUID, userID string) (*models.LLMKey, error) {
	key, err := ks.repo.GetByID(ctx, keyID, userID)
	if err != nil {
		return nil, mapKeyErr(err, "failed to get key")
	}
	return key, nil
}

// newSecret returns a secret with its stored form and fingerprint
func (ks *KeyService) newSecret() (secret, stored, fingerprint string, err error) {
	secret, err = GenerateKey()
	if err != nil {
		return "", "", "", err
	}
	stored, err = ks.encryptor.SealSecret(secret)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to seal key: %w", err)
	}
	return secret, stored, KeyFingerprint(secret), nil
}

func (ks *KeyService) toResponse(key *models.LLMKey) models.KeyResponse {
	secret, err := ks.encryptor.OpenSecret(key.Secret)
	if err != nil {
		ks.log.Warn().Err(err).Str("key_id", key.ID.String()).Msg("cannot open stored secret for preview")
		secret = ""
	}

	providers := key.AllowedProviders
	if providers == nil {
		providers = []string{}
	}

	return models.KeyResponse{
		ID:                 key.ID,
		UserID:             key.UserID,
		Name:               key.Name,
		KeyPreview:         KeyPreview(secret),
		State:              key.State,
		IsActive:           key.IsActive,
		CreditsBalance:     key.CreditsBalance,
		CreditsUsed:        key.CreditsUsed,
		TotalRequests:      key.TotalRequests,
		LastUsedAt:         key.LastUsedAt,
		RateLimitPerMinute: key.RateLimitPerMinute,
		RateLimitPerDay:    key.RateLimitPerDay,
		AllowedProviders:   providers,
		CreatedAt:          key.CreatedAt,
		UpdatedAt:          key.UpdatedAt,
		RegeneratedAt:      key.RegeneratedAt,
		ExpiresAt:          key.ExpiresAt,
	}
}

func validateProviders(providers []string) error {
	for _, p := range providers {
		if !IsKnownProvider(p) {
			return fmt.Errorf("%w: %s", ErrInvalidProvider, p)
		}
	}
	return nil
}

// mapKeyErr turns a repository miss into ErrKeyNotFound and wraps everything else
func mapKeyErr(err error, msg string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrKeyNotFound
	}
	return fmt.Errorf("%s: %w", msg, err)
}
