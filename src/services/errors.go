package services

import "errors"

// Sentinel errors for explicit error handling
// These errors allow callers to distinguish between different failure modes
// using errors.Is() instead of string matching

var (
	// ErrKeyNotFound indicates the key does not exist, was deleted, or belongs
	// to another user. The three cases are deliberately indistinguishable.
	ErrKeyNotFound = errors.New("key not found")

	// ErrKeyQuotaExceeded indicates the user already holds the maximum number of keys
	ErrKeyQuotaExceeded = errors.New("maximum 5 keys allowed per user")

	// ErrInvalidAmount indicates a non-positive credit amount
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInsufficientFunds indicates the wallet cannot cover the requested amount
	ErrInsufficientFunds = errors.New("insufficient wallet balance")

	// ErrInvalidPaymentMethod indicates an unsupported payment method
	ErrInvalidPaymentMethod = errors.New("unsupported payment method")

	// ErrInvalidProvider indicates a provider id missing from the pricing catalog
	ErrInvalidProvider = errors.New("unknown provider")

	// ErrInvalidRateLimit indicates a non-positive rate limit
	ErrInvalidRateLimit = errors.New("rate limits must be positive")

	// ErrKeyInactive indicates the key is disabled or expired
	ErrKeyInactive = errors.New("key is inactive or expired")

	// ErrProviderNotAllowed indicates the key may not call the provider
	ErrProviderNotAllowed = errors.New("provider not allowed for this key")

	// ErrInsufficientCredits indicates the key balance cannot cover a call
	ErrInsufficientCredits = errors.New("insufficient key credits")

	// ErrInvalidUsage indicates a usage report with negative tokens, cost or latency
	ErrInvalidUsage = errors.New("usage values must not be negative")

	// ErrRateLimited indicates the key exceeded its per-minute request limit
	ErrRateLimited = errors.New("rate limit exceeded")
)
