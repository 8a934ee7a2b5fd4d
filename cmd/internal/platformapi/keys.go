package platformapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/icuxika/deepseek-api-open-platform-simulation/cmd/identity"
	"github.com/icuxika/deepseek-api-open-platform-simulation/cmd/internal/account"
)

func (h *Handler) handleListKeys(w http.ResponseWriter, r *http.Request, u identity.User) {
	keys, err := h.accounts.ListKeys(r.Context(), u.ID)
	if err != nil {
		h.log.Error("api.keys.list.fail", "err", err, "user_id", u.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]apiKeyResponse, 0, len(keys))
	for _, k := range keys {
		out = append(out, toAPIKeyResponse(k))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreateKey(w http.ResponseWriter, r *http.Request, u identity.User) {
	var req createKeyRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	k, err := h.accounts.CreateKey(r.Context(), u.ID, req.Name)
	if err != nil {
		if errors.Is(err, account.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "key name is required")
			return
		}
		h.log.Error("api.keys.create.fail", "err", err, "user_id", u.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.log.Info("api.keys.create.ok", "user_id", u.ID, "key_id", k.ID)
	writeJSON(w, http.StatusOK, toAPIKeyResponse(k))
}

func (h *Handler) handleDeleteKey(w http.ResponseWriter, r *http.Request, u identity.User) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid key id")
		return
	}

	if err := h.accounts.DeleteKey(r.Context(), u.ID, id); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			writeError(w, http.StatusNotFound, "key not found")
			return
		}
		h.log.Error("api.keys.delete.fail", "err", err, "user_id", u.ID, "key_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.log.Info("api.keys.delete.ok", "user_id", u.ID, "key_id", id)
	w.WriteHeader(http.StatusNoContent)
}
