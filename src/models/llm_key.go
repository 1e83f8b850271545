package models

import (
	"time"

	"github.com/google/uuid"
)

// LLMKey represents a universal LLM key issued to a user
type LLMKey struct {
	ID                 uuid.UUID  `json:"id"`
	UserID             string     `json:"user_id"`
	Secret             string     `json:"-"` // plaintext only in memory, never serialized
	Fingerprint        string     `json:"-"`
	Name               string     `json:"name"`
	State              KeyState   `json:"state"`
	IsActive           bool       `json:"is_active"`
	CreditsBalance     float64    `json:"credits_balance"`
	CreditsUsed        float64    `json:"credits_used"`
	TotalRequests      int64      `json:"total_requests"`
	LastUsedAt         *time.Time `json:"last_used_at"`
	RateLimitPerMinute int        `json:"rate_limit_per_minute"`
	RateLimitPerDay    int        `json:"rate_limit_per_day"`
	AllowedProviders   []string   `json:"allowed_providers"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          *time.Time `json:"updated_at,omitempty"`
	RegeneratedAt      *time.Time `json:"regenerated_at,omitempty"`
	ExpiresAt          *time.Time `json:"expires_at"`
	DeletedAt          *time.Time `json:"deleted_at,omitempty"`
}

// IsDeleted returns true once the key has been soft-deleted
func (k *LLMKey) IsDeleted() bool {
	return k.State == KeyStateDeactivated
}

// IsExpired reports whether the key has an expiry in the past
func (k *LLMKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && !k.ExpiresAt.After(now)
}

// IsUsable reports whether the key may be used for provider calls
func (k *LLMKey) IsUsable(now time.Time) bool {
	return !k.IsDeleted() && k.IsActive && !k.IsExpired(now)
}

// AllowsProvider reports whether provider is in the key's allowed set
func (k *LLMKey) AllowsProvider(provider string) bool {
	for _, p := range k.AllowedProviders {
		if p == provider {
			return true
		}
	}
	return false
}

// KeyResponse is the display-safe shape of a key: no secret, only its preview
type KeyResponse struct {
	ID                 uuid.UUID  `json:"id"`
	UserID             string     `json:"user_id"`
	Name               string     `json:"name"`
	KeyPreview         string     `json:"key_preview"`
	State              KeyState   `json:"state"`
	IsActive           bool       `json:"is_active"`
	CreditsBalance     float64    `json:"credits_balance"`
	CreditsUsed        float64    `json:"credits_used"`
	TotalRequests      int64      `json:"total_requests"`
	LastUsedAt         *time.Time `json:"last_used_at"`
	RateLimitPerMinute int        `json:"rate_limit_per_minute"`
	RateLimitPerDay    int        `json:"rate_limit_per_day"`
	AllowedProviders   []string   `json:"allowed_providers"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          *time.Time `json:"updated_at,omitempty"`
	RegeneratedAt      *time.Time `json:"regenerated_at,omitempty"`
	ExpiresAt          *time.Time `json:"expires_at"`
}

// KeyUpdate is a partial update; a nil field means "not provided"
type KeyUpdate struct {
	Name               *string   `json:"name"`
	IsActive           *bool     `json:"is_active"`
	RateLimitPerMinute *int      `json:"rate_limit_per_minute"`
	RateLimitPerDay    *int      `json:"rate_limit_per_day"`
	AllowedProviders   *[]string `json:"allowed_providers"`
}

// IsEmpty returns true if no field is present
func (u KeyUpdate) IsEmpty() bool {
	return u.Name == nil && u.IsActive == nil && u.RateLimitPerMinute == nil &&
		u.RateLimitPerDay == nil && u.AllowedProviders == nil
}

// Apply writes the present fields onto key
func (u KeyUpdate) Apply(key *LLMKey) {
	if u.Name != nil {
		key.Name = *u.Name
	}
	if u.IsActive != nil {
		key.IsActive = *u.IsActive
	}
	if u.RateLimitPerMinute != nil {
		key.RateLimitPerMinute = *u.RateLimitPerMinute
	}
	if u.RateLimitPerDay != nil {
		key.RateLimitPerDay = *u.RateLimitPerDay
	}
	if u.AllowedProviders != nil {
		key.AllowedProviders = append([]string(nil), (*u.AllowedProviders)...)
	}
}
