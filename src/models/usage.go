package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageRecord is one provider call attributed to a key
type UsageRecord struct {
	ID           uuid.UUID `json:"id"`
	KeyID        uuid.UUID `json:"key_id"`
	UserID       string    `json:"user_id"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	TokensIn     int64     `json:"tokens_in"`
	TokensOut    int64     `json:"tokens_out"`
	Cost         float64   `json:"cost"`
	LatencyMs    int64     `json:"latency_ms"`
	Status       string    `json:"status"`
	ErrorMessage *string   `json:"error_message"`
	CreatedAt    time.Time `json:"created_at"`
}

// UsageReport is what the proxy sends when a provider call completes
type UsageReport struct {
	Key          string  `json:"key" binding:"required"`
	Provider     string  `json:"provider" binding:"required"`
	Model        string  `json:"model" binding:"required"`
	TokensIn     int64   `json:"tokens_in"`
	TokensOut    int64   `json:"tokens_out"`
	Cost         float64 `json:"cost"`
	LatencyMs    int64   `json:"latency_ms"`
	Status       string  `json:"status" binding:"omitempty,oneof=success error"`
	ErrorMessage *string `json:"error_message"`
}
