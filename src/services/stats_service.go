package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nirman-dev/llm-keys/src/models"
	"github.com/nirman-dev/llm-keys/src/repositories"
)

const (
	DefaultUsageDays    = 30
	MaxUsageDays        = 90
	maxUsageRecords     = 1000
	recentUsageShown    = 20
	overviewWindow      = 7 * 24 * time.Hour
	maxOverviewRecords  = 100
	dailyUsageKeyFormat = "2006-01-02"
)

// ProviderUsage aggregates calls to one provider
type ProviderUsage struct {
	Requests int     `json:"requests"`
	Cost     float64 `json:"cost"`
	Tokens   int64   `json:"tokens"`
}

// ModelUsage aggregates calls to one model
type ModelUsage struct {
	Requests int     `json:"requests"`
	Cost     float64 `json:"cost"`
}

// DailyUsage aggregates calls on one calendar day (UTC)
type DailyUsage struct {
	Requests int     `json:"requests"`
	Cost     float64 `json:"cost"`
}

// UsageStats is the per-key rollup over a trailing window
type UsageStats struct {
	TotalRequests  int                       `json:"total_requests"`
	TotalTokensIn  int64                     `json:"total_tokens_in"`
	TotalTokensOut int64                     `json:"total_tokens_out"`
	TotalCost      float64                   `json:"total_cost"`
	ByProvider     map[string]*ProviderUsage `json:"by_provider"`
	ByModel        map[string]*ModelUsage    `json:"by_model"`
	RecentUsage    []models.UsageRecord      `json:"recent_usage"`
}

// OverviewStats is the rollup across all of a user's keys
type OverviewStats struct {
	TotalKeys           int                    `json:"total_keys"`
	ActiveKeys          int                    `json:"active_keys"`
	TotalCreditsBalance float64                `json:"total_credits_balance"`
	TotalCreditsUsed    float64                `json:"total_credits_used"`
	TotalRequests       int64                  `json:"total_requests"`
	RecentCost7d        float64                `json:"recent_cost_7d"`
	DailyUsage          map[string]*DailyUsage `json:"daily_usage"`
	SupportedProviders  []ProviderInfo         `json:"supported_providers"`
}

// StatsService computes usage rollups on demand; nothing is materialized
type StatsService struct {
	keys  repositories.KeyRepository
	usage repositories.UsageRepository
	now   func() time.Time
}

// NewStatsService creates a new stats service
func NewStatsService(keys repositories.KeyRepository, usage repositories.UsageRepository) *StatsService {
	return &StatsService{
		keys:  keys,
		usage: usage,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// UsageStats aggregates the key's most recent records (at most 1000) from the
// last days days. days is clamped to 1..90; zero selects 30.
func (ss *StatsService) UsageStats(ctx context.Context, keyID uuid.UUID, userID string, days int) (*UsageStats, error) {
	days = clampUsageDays(days)

	if _, err := ss.keys.GetByID(ctx, keyID, userID); err != nil {
		return nil, mapKeyErr(err, "failed to get key")
	}

	since := ss.now().Add(-time.Duration(days) * 24 * time.Hour)
	records, err := ss.usage.ListByKeySince(ctx, keyID, since, maxUsageRecords)
	if err != nil {
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}

	return AggregateUsage(records), nil
}

// AggregateUsage computes totals and provider/model breakdowns. records are
// expected newest first; the first 20 are returned as recent usage.
func AggregateUsage(records []models.UsageRecord) *UsageStats {
	stats := &UsageStats{
		TotalRequests: len(records),
		ByProvider:    make(map[string]*ProviderUsage),
		ByModel:       make(map[string]*ModelUsage),
	}

	var totalCost float64
	for _, u := range records {
		stats.TotalTokensIn += u.TokensIn
		stats.TotalTokensOut += u.TokensOut
		totalCost += u.Cost

		provider := orUnknown(u.Provider)
		p, ok := stats.ByProvider[provider]
		if !ok {
			p = &ProviderUsage{}
			stats.ByProvider[provider] = p
		}
		p.Requests++
		p.Cost += u.Cost
		p.Tokens += u.TokensIn + u.TokensOut

		model := orUnknown(u.Model)
		m, ok := stats.ByModel[model]
		if !ok {
			m = &ModelUsage{}
			stats.ByModel[model] = m
		}
		m.Requests++
		m.Cost += u.Cost
	}

	stats.TotalCost = roundTo(totalCost, 4)
	for _, p := range stats.ByProvider {
		p.Cost = roundTo(p.Cost, 4)
	}
	for _, m := range stats.ByModel {
		m.Cost = roundTo(m.Cost, 4)
	}

	recent := records
	if len(recent) > recentUsageShown {
		recent = recent[:recentUsageShown]
	}
	stats.RecentUsage = append([]models.UsageRecord{}, recent...)

	return stats
}

// OverviewStats sums balances and counters across the user's keys and breaks
// down the last 7 days of usage by calendar day.
func (ss *StatsService) OverviewStats(ctx context.Context, userID string) (*OverviewStats, error) {
	keys, err := ss.keys.ListByUser(ctx, userID, models.MaxListedKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	overview := &OverviewStats{
		TotalKeys:          len(keys),
		DailyUsage:         make(map[string]*DailyUsage),
		SupportedProviders: SupportedProviders(),
	}

	var balance, used float64
	keyIDs := make([]uuid.UUID, 0, len(keys))
	for _, k := range keys {
		balance += k.CreditsBalance
		used += k.CreditsUsed
		overview.TotalRequests += k.TotalRequests
		if k.IsActive {
			overview.ActiveKeys++
		}
		keyIDs = append(keyIDs, k.ID)
	}
	overview.TotalCreditsBalance = roundTo(balance, 2)
	overview.TotalCreditsUsed = roundTo(used, 2)

	if len(keyIDs) == 0 {
		return overview, nil
	}

	since := ss.now().Add(-overviewWindow)
	records, err := ss.usage.ListByKeysSince(ctx, keyIDs, since, maxOverviewRecords)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent usage: %w", err)
	}

	var recentCost float64
	for _, u := range records {
		recentCost += u.Cost
		day := u.CreatedAt.UTC().Format(dailyUsageKeyFormat)
		d, ok := overview.DailyUsage[day]
		if !ok {
			d = &DailyUsage{}
			overview.DailyUsage[day] = d
		}
		d.Requests++
		d.Cost += u.Cost
	}
	for _, d := range overview.DailyUsage {
		d.Cost = roundTo(d.Cost, 4)
	}
	overview.RecentCost7d = roundTo(recentCost, 4)

	return overview, nil
}

func clampUsageDays(days int) int {
	switch {
	case days == 0:
		return DefaultUsageDays
	case days < 1:
		return 1
	case days > MaxUsageDays:
		return MaxUsageDays
	}
	return days
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
