// Package account holds the per-user platform data that is not identity
// itself: API keys, aggregate usage counters, billing records, and OAuth
// bindings.
package account

import (
	"context"
	"errors"
	"time"
)

// API key statuses and billing record types on the wire.
const (
	KeyStatusActive   = "active"
	KeyStatusDisabled = "disabled"

	RecordTypeRecharge = "recharge"
	RecordTypeUsage    = "usage"
)

var (
	// ErrNotFound is returned when the referenced row does not exist or
	// belongs to a different user.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned for malformed operation input.
	ErrInvalidInput = errors.New("invalid input")
)

// APIKey is one account-scoped secret for the inference endpoints.
type APIKey struct {
	ID         int64
	UserID     int64
	Name       string
	Key        string
	Status     string
	CreatedAt  time.Time
	LastUsedAt *time.Time
}

// UsageStats aggregates token consumption per user.
type UsageStats struct {
	UserID           int64
	TotalTokens      int64
	PromptTokens     int64
	CompletionTokens int64
	RequestCount     int64
}

// BillingRecord is one ledger entry. Balance is the account balance after
// the entry was applied.
type BillingRecord struct {
	ID          int64
	UserID      int64
	Type        string
	Amount      float64
	Balance     float64
	Description string
	CreatedAt   time.Time
}

// OAuthBinding links a platform account to a third-party identity.
type OAuthBinding struct {
	UserID           int64
	Provider         string
	ProviderUserID   string
	ProviderUsername string
	AvatarURL        string
	CreatedAt        time.Time
}

// Store is the account persistence boundary.
type Store interface {
	// CreateKey mints a fresh secret for the user.
	CreateKey(ctx context.Context, userID int64, name string) (APIKey, error)

	// ListKeys returns the user's keys, newest first.
	ListKeys(ctx context.Context, userID int64) ([]APIKey, error)

	// DeleteKey removes a key the user owns. Deleting someone else's key
	// is indistinguishable from deleting a missing one.
	DeleteKey(ctx context.Context, userID, keyID int64) error

	// GetKeyBySecret resolves an API key by its secret value regardless
	// of status; callers decide whether disabled keys may pass.
	GetKeyBySecret(ctx context.Context, secret string) (APIKey, error)

	// TouchKeyLastUsed records a successful use of the key.
	TouchKeyLastUsed(ctx context.Context, keyID int64, now time.Time) error

	// UsageStats returns the user's counters, zero-valued when the user
	// has no recorded usage yet.
	UsageStats(ctx context.Context, userID int64) (UsageStats, error)

	// AddUsage accumulates one request's token counts.
	AddUsage(ctx context.Context, userID, promptTokens, completionTokens int64) error

	// ListRecords returns the user's billing ledger, newest first.
	ListRecords(ctx context.Context, userID int64) ([]BillingRecord, error)

	// InsertRecord appends a ledger entry.
	InsertRecord(ctx context.Context, rec BillingRecord) (BillingRecord, error)

	// ListBindings returns the user's OAuth bindings.
	ListBindings(ctx context.Context, userID int64) ([]OAuthBinding, error)

	// UpsertBinding creates or refreshes a provider link.
	UpsertBinding(ctx context.Context, b OAuthBinding) error

	// DeleteBinding removes a provider link.
	DeleteBinding(ctx context.Context, userID int64, provider string) error

	// FindBinding resolves the platform user bound to a provider identity.
	FindBinding(ctx context.Context, provider, providerUserID string) (OAuthBinding, error)
}
