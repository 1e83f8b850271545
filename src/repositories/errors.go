package repositories

import "errors"

var (
	// ErrNotFound indicates no row matched the lookup or ownership filter
	ErrNotFound = errors.New("record not found")

	// ErrQuotaExceeded indicates the per-user key limit was reached
	ErrQuotaExceeded = errors.New("key quota exceeded")

	// ErrInsufficientFunds indicates the wallet balance is below the requested amount
	ErrInsufficientFunds = errors.New("insufficient wallet balance")

	// ErrInsufficientBalance indicates the key's credit balance cannot cover a charge
	ErrInsufficientBalance = errors.New("insufficient key balance")
)
