package session

import "strings"

// API key statuses and billing record types accepted from the backend.
const (
	KeyStatusActive   = "active"
	KeyStatusDisabled = "disabled"

	RecordTypeRecharge = "recharge"
	RecordTypeUsage    = "usage"
)

// User is the resolved identity. Valid only in combination with a credential.
type User struct {
	ID        int64   `json:"id"`
	Email     string  `json:"email"`
	Username  string  `json:"username"`
	AvatarURL string  `json:"avatarUrl,omitempty"`
	Balance   float64 `json:"balance"`
	CreatedAt string  `json:"createdAt"`
}

// APIKey is one account-scoped secret.
type APIKey struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Key        string `json:"key"`
	Status     string `json:"status"`
	CreatedAt  string `json:"createdAt"`
	LastUsedAt string `json:"lastUsedAt,omitempty"`
}

// UsageStats holds aggregate counters. The backend is authoritative; the
// client replaces the whole value on refresh and never patches it.
type UsageStats struct {
	TotalTokens      int64 `json:"totalTokens"`
	PromptTokens     int64 `json:"promptTokens"`
	CompletionTokens int64 `json:"completionTokens"`
	RequestCount     int64 `json:"requestCount"`
}

// BillingRecord is one recharge or usage entry, newest first.
type BillingRecord struct {
	ID          int64   `json:"id"`
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	Balance     float64 `json:"balance"`
	Description string  `json:"description"`
	CreatedAt   string  `json:"createdAt"`
}

// OAuthBinding describes one linked third-party account.
type OAuthBinding struct {
	Provider         string `json:"provider"`
	ProviderUsername string `json:"providerUsername,omitempty"`
	AvatarURL        string `json:"avatarUrl,omitempty"`
	CreatedAt        string `json:"createdAt"`
}

// validateUser rejects identity payloads that would violate session typing.
func validateUser(u User) error {
	if u.ID <= 0 {
		return invalidPayload("user", "missing id")
	}
	if strings.TrimSpace(u.Email) == "" || strings.TrimSpace(u.Username) == "" {
		return invalidPayload("user", "missing email or username")
	}
	return nil
}

func validateAPIKey(k APIKey) error {
	if k.ID <= 0 || strings.TrimSpace(k.Key) == "" {
		return invalidPayload("api_key", "missing id or key")
	}
	if k.Status != KeyStatusActive && k.Status != KeyStatusDisabled {
		return invalidPayload("api_key", "unknown status "+k.Status)
	}
	return nil
}

func validateBillingRecord(r BillingRecord) error {
	if r.ID <= 0 {
		return invalidPayload("billing_record", "missing id")
	}
	if r.Type != RecordTypeRecharge && r.Type != RecordTypeUsage {
		return invalidPayload("billing_record", "unknown type "+r.Type)
	}
	return nil
}
