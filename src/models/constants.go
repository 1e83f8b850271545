package models

// KeyState is the lifecycle state of an LLM key
type KeyState string

const (
	// KeyStateActive is a live key (it may still be toggled off via is_active)
	KeyStateActive KeyState = "active"
	// KeyStateDeactivated is a soft-deleted key, retained for audit
	KeyStateDeactivated KeyState = "deactivated"
)

// TransactionType categorizes a credit transaction
type TransactionType string

const (
	TransactionTypePurchase TransactionType = "purchase"
	TransactionTypeUsage    TransactionType = "usage"
	TransactionTypeRefund   TransactionType = "refund"
	TransactionTypeBonus    TransactionType = "bonus"
)

// Increases reports whether the transaction type adds to a key's balance
func (t TransactionType) Increases() bool {
	return t == TransactionTypePurchase || t == TransactionTypeBonus
}

// Payment methods accepted by add-credits
const (
	PaymentMethodWallet   = "wallet"
	PaymentMethodRazorpay = "razorpay"
	PaymentMethodCashfree = "cashfree"
)

// Usage record statuses
const (
	UsageStatusSuccess = "success"
	UsageStatusError   = "error"
)

// TransactionStatusCompleted is the status of every ledger entry written here
const TransactionStatusCompleted = "completed"

// Key defaults and limits
const (
	KeyPrefix                 = "nk_"
	DefaultKeyName            = "Default Key"
	DefaultRateLimitPerMinute = 60
	DefaultRateLimitPerDay    = 10000
	MaxKeysPerUser            = 5
	MaxListedKeys             = 50
)

// DefaultProviders is the allowed-provider set for keys created without one
var DefaultProviders = []string{"openai", "gemini", "claude", "deepseek", "groq", "mistral"}
