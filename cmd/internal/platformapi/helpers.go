package platformapi

import (
	"time"

	"github.com/icuxika/deepseek-api-open-platform-simulation/cmd/identity"
	"github.com/icuxika/deepseek-api-open-platform-simulation/cmd/internal/account"
)

// timeLayout matches what the web client renders directly.
const timeLayout = "2006-01-02 15:04:05"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func toUserResponse(u identity.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		AvatarURL: u.AvatarURL,
		Balance:   u.Balance,
		CreatedAt: formatTime(u.CreatedAt),
	}
}

func toAPIKeyResponse(k account.APIKey) apiKeyResponse {
	out := apiKeyResponse{
		ID:        k.ID,
		Name:      k.Name,
		Key:       k.Key,
		Status:    k.Status,
		CreatedAt: formatTime(k.CreatedAt),
	}
	if k.LastUsedAt != nil {
		out.LastUsedAt = formatTime(*k.LastUsedAt)
	}
	return out
}

func toUsageStatsResponse(u account.UsageStats) usageStatsResponse {
	return usageStatsResponse{
		TotalTokens:      u.TotalTokens,
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		RequestCount:     u.RequestCount,
	}
}

func toBillingRecordResponse(r account.BillingRecord) billingRecordResponse {
	return billingRecordResponse{
		ID:          r.ID,
		Type:        r.Type,
		Amount:      r.Amount,
		Balance:     r.Balance,
		Description: r.Description,
		CreatedAt:   formatTime(r.CreatedAt),
	}
}

func toBindingResponse(b account.OAuthBinding) bindingResponse {
	return bindingResponse{
		Provider:         b.Provider,
		ProviderUsername: b.ProviderUsername,
		AvatarURL:        b.AvatarURL,
		CreatedAt:        formatTime(b.CreatedAt),
	}
}
