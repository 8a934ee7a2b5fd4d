package platformapi

import (
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/icuxika/deepseek-api-open-platform-simulation/cmd/identity"
	"github.com/icuxika/deepseek-api-open-platform-simulation/cmd/internal/account"
)

const defaultModel = "deepseek-chat"

var availableModels = []string{
	"deepseek-chat",
	"deepseek-coder",
	"deepseek-reasoner",
}

// modelPricing is the simulated cost per 1000 tokens.
var modelPricing = map[string]float64{
	"deepseek-chat":     0.001,
	"deepseek-coder":    0.002,
	"deepseek-reasoner": 0.003,
}

func (h *Handler) handleListModels(w http.ResponseWriter, _ *http.Request) {
	created := time.Now().Unix()
	out := modelListResponse{Object: "list"}
	for _, id := range availableModels {
		out.Data = append(out.Data, modelResponse{
			ID:      id,
			Object:  "model",
			Created: created,
			OwnedBy: "deepseek",
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleChatCompletion(w http.ResponseWriter, r *http.Request, k account.APIKey) {
	var req chatCompletionRequest
	if err := decodeJSONLoose(w, r, h.maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	model := req.Model
	if _, ok := modelPricing[model]; !ok {
		model = defaultModel
	}

	promptTokens := estimateTokens(req.Messages)
	completionTokens := int64(50 + rand.Intn(200))
	totalTokens := promptTokens + completionTokens

	cost := float64(totalTokens) / 1000 * modelPricing[model]
	debited, err := h.users.AdjustBalance(r.Context(), k.UserID, -cost)
	if err != nil {
		if errors.Is(err, identity.ErrInsufficientBalance) {
			writeError(w, http.StatusPaymentRequired, "insufficient balance")
			return
		}
		h.log.Error("api.chat.debit.fail", "err", err, "user_id", k.UserID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := h.accounts.AddUsage(r.Context(), k.UserID, promptTokens, completionTokens); err != nil {
		h.log.Error("api.chat.usage.fail", "err", err, "user_id", k.UserID)
	}
	if _, err := h.accounts.InsertRecord(r.Context(), account.BillingRecord{
		UserID:      k.UserID,
		Type:        account.RecordTypeUsage,
		Amount:      -cost,
		Balance:     debited.Balance,
		Description: fmt.Sprintf("%s (%d tokens)", model, totalTokens),
	}); err != nil {
		h.log.Error("api.chat.record.fail", "err", err, "user_id", k.UserID)
	}
	if err := h.accounts.TouchKeyLastUsed(r.Context(), k.ID, time.Now().UTC()); err != nil {
		h.log.Error("api.chat.touch.fail", "err", err, "key_id", k.ID)
	}

	writeJSON(w, http.StatusOK, chatCompletionResponse{
		ID:      "chatcmpl-" + ulid.Make().String(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []chatChoice{{
			Index:        0,
			Message:      chatMessage{Role: "assistant", Content: cannedReply(req.Messages)},
			FinishReason: "stop",
		}},
		Usage: chatUsage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      totalTokens,
		},
	})
}

// estimateTokens approximates prompt size as len/4 plus a per-message
// overhead, with a floor of 10.
func estimateTokens(messages []chatMessage) int64 {
	var total int64
	for _, m := range messages {
		if m.Content != "" {
			total += int64(len(m.Content)/4 + 10)
		}
	}
	if total < 10 {
		return 10
	}
	return total
}

func cannedReply(messages []chatMessage) string {
	if len(messages) == 0 {
		return "Hello! How can I help you today?"
	}

	var last string
	for _, m := range messages {
		if m.Role == "user" {
			last = m.Content
		}
	}

	lower := strings.ToLower(last)
	switch {
	case strings.Contains(lower, "hello"), strings.Contains(lower, "hi"):
		return "Hello! I'm DeepSeek AI assistant. How can I help you today?"
	case strings.Contains(lower, "code"), strings.Contains(lower, "programming"):
		return "I'd be happy to help with coding! Here's a sample response for your programming question. In a real implementation, this would connect to the actual DeepSeek API."
	default:
		return fmt.Sprintf("Thank you for your message! This is a simulated response from the DeepSeek API platform. In production, this would be connected to the actual DeepSeek AI models. Your question was: %q", last)
	}
}
