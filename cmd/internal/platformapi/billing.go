package platformapi

import (
	"net/http"

	"github.com/icuxika/deepseek-api-open-platform-simulation/cmd/identity"
	"github.com/icuxika/deepseek-api-open-platform-simulation/cmd/internal/account"
)

const maxRechargeAmount = 10000

func (h *Handler) handleUsageStats(w http.ResponseWriter, r *http.Request, u identity.User) {
	stats, err := h.accounts.UsageStats(r.Context(), u.ID)
	if err != nil {
		h.log.Error("api.billing.usage.fail", "err", err, "user_id", u.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, toUsageStatsResponse(stats))
}

func (h *Handler) handleBillingRecords(w http.ResponseWriter, r *http.Request, u identity.User) {
	recs, err := h.accounts.ListRecords(r.Context(), u.ID)
	if err != nil {
		h.log.Error("api.billing.records.fail", "err", err, "user_id", u.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]billingRecordResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toBillingRecordResponse(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleRecharge(w http.ResponseWriter, r *http.Request, u identity.User) {
	var req rechargeRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Amount <= 0 || req.Amount > maxRechargeAmount {
		writeError(w, http.StatusBadRequest, "invalid recharge amount")
		return
	}
	method := req.PaymentMethod
	switch method {
	case "alipay", "wechat":
	default:
		writeError(w, http.StatusBadRequest, "unsupported payment method")
		return
	}

	credited, err := h.users.AdjustBalance(r.Context(), u.ID, req.Amount)
	if err != nil {
		h.log.Error("api.billing.recharge.fail", "err", err, "user_id", u.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	rec, err := h.accounts.InsertRecord(r.Context(), account.BillingRecord{
		UserID:      u.ID,
		Type:        account.RecordTypeRecharge,
		Amount:      req.Amount,
		Balance:     credited.Balance,
		Description: "Account recharge - " + method,
	})
	if err != nil {
		h.log.Error("api.billing.recharge.record.fail", "err", err, "user_id", u.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.log.Info("api.billing.recharge.ok", "user_id", u.ID, "amount", req.Amount)
	writeJSON(w, http.StatusOK, toBillingRecordResponse(rec))
}
