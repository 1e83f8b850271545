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
	"github.com/nirman-dev/llm-keys/src/ratelimit"
	"github.com/nirman-dev/llm-keys/src/repositories"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// UsageReceipt acknowledges an ingested provider call
type UsageReceipt struct {
	UsageID uuid.UUID `json:"usage_id"`
	KeyID   uuid.UUID `json:"key_id"`
	Cost    float64   `json:"cost"`
}

// Limiter decides whether a caller may proceed at the given rate
type Limiter interface {
	Allow(key string, limit rate.Limit, burst int) bool
}

// UsageService records provider calls reported by the proxy against keys
type UsageService struct {
	keys    repositories.KeyRepository
	usage   repositories.UsageRepository
	limiter Limiter
	now     func() time.Time
	log     zerolog.Logger
}

// NewUsageService creates a new usage service. limiter may be nil to disable
// per-key rate limiting.
func NewUsageService(keys repositories.KeyRepository, usage repositories.UsageRepository, limiter Limiter) *UsageService {
	return &UsageService{
		keys:    keys,
		usage:   usage,
		limiter: limiter,
		now:     func() time.Time { return time.Now().UTC() },
		log:     logging.NewLogger("usage_service"),
	}
}

// RecordUsage resolves the key behind report.Key, checks it may call the
// provider, and appends the call to the usage ledger. A call with a cost
// debits the key balance and appends a usage credit transaction in the
// same database transaction.
func (us *UsageService) RecordUsage(ctx context.Context, report models.UsageReport) (*UsageReceipt, error) {
	if report.TokensIn < 0 || report.TokensOut < 0 || report.Cost < 0 || report.LatencyMs < 0 {
		return nil, ErrInvalidUsage
	}

	key, err := us.keys.GetByFingerprint(ctx, KeyFingerprint(report.Key))
	if err != nil {
		return nil, mapKeyErr(err, "failed to resolve key")
	}

	now := us.now()
	if !key.IsUsable(now) {
		return nil, ErrKeyInactive
	}

	provider := strings.ToLower(strings.TrimSpace(report.Provider))
	if !key.AllowsProvider(provider) {
		return nil, ErrProviderNotAllowed
	}

	if us.limiter != nil {
		perMinute := key.RateLimitPerMinute
		if !us.limiter.Allow(key.ID.String(), ratelimit.PerMinute(perMinute), max(perMinute, 1)) {
			return nil, ErrRateLimited
		}
	}

	cost := report.Cost
	if cost <= 0 {
		cost = EstimateCost(provider, report.Model, report.TokensIn, report.TokensOut)
	}
	cost = roundTo(cost, 6)

	status := report.Status
	if status == "" {
		status = models.UsageStatusSuccess
	}

	record := &models.UsageRecord{
		ID:           uuid.New(),
		KeyID:        key.ID,
		UserID:       key.UserID,
		Provider:     provider,
		Model:        report.Model,
		TokensIn:     report.TokensIn,
		TokensOut:    report.TokensOut,
		Cost:         cost,
		LatencyMs:    report.LatencyMs,
		Status:       status,
		ErrorMessage: report.ErrorMessage,
		CreatedAt:    now,
	}

	var charge *models.CreditTransaction
	if cost > 0 {
		keyID := key.ID
		charge = &models.CreditTransaction{
			ID:          uuid.New(),
			UserID:      key.UserID,
			KeyID:       &keyID,
			Amount:      cost,
			Type:        models.TransactionTypeUsage,
			Description: fmt.Sprintf("%s %s usage", provider, orUnknown(report.Model)),
			Status:      models.TransactionStatusCompleted,
			CreatedAt:   now,
		}
	}

	if err := us.usage.Record(ctx, record, charge); err != nil {
		if errors.Is(err, repositories.ErrInsufficientBalance) {
			return nil, ErrInsufficientCredits
		}
		return nil, fmt.Errorf("failed to record usage: %w", err)
	}

	us.log.Debug().
		Str("key_id", key.ID.String()).
		Str("provider", provider).
		Float64("cost", cost).
		Msg("Usage recorded")

	return &UsageReceipt{UsageID: record.ID, KeyID: key.ID, Cost: cost}, nil
}
