package platformapi

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/icuxika/deepseek-api-open-platform-simulation/cmd/identity"
)

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func (h *Handler) issueAuthResponse(w http.ResponseWriter, u identity.User) {
	tok, err := h.tokens.Issue(u.ID, u.Email, u.TokenVersion)
	if err != nil {
		h.log.Error("api.token.issue.fail", "err", err, "user_id", u.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, authResponse{
		Token:     tok,
		TokenType: "Bearer",
		User:      toUserResponse(u),
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	if !validEmail(req.Email) {
		writeError(w, http.StatusBadRequest, "invalid email")
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	hash, err := identity.HashPassword(req.Password, h.pwParams)
	if err != nil {
		if errors.Is(err, identity.ErrPasswordTooShort) {
			writeError(w, http.StatusBadRequest, "password too short")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid password")
		return
	}

	u, err := h.users.CreateUser(r.Context(), identity.CreateUserInput{
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: hash,
	})
	if err != nil {
		if identity.IsConflict(err) {
			switch identity.ConflictField(err) {
			case "username":
				writeError(w, http.StatusConflict, "username already taken")
			default:
				writeError(w, http.StatusConflict, "email already registered")
			}
			return
		}
		h.log.Error("api.register.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.log.Info("api.register.ok", "user_id", u.ID)
	h.issueAuthResponse(w, u)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if identity.IsNotFound(err) {
			// Burn a verification anyway so unknown emails cost the same.
			_, _ = identity.VerifyPassword(req.Password, h.dummyHash)
			writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		h.log.Error("api.login.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	ok, err := identity.VerifyPassword(req.Password, u.PasswordHash)
	if err != nil || !ok {
		h.log.Info("api.login.reject", "user_id", u.ID)
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	h.log.Info("api.login.ok", "user_id", u.ID)
	h.issueAuthResponse(w, u)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request, u identity.User) {
	if _, err := h.users.BumpTokenVersion(r.Context(), u.ID); err != nil {
		h.log.Error("api.logout.fail", "err", err, "user_id", u.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.log.Info("api.logout.ok", "user_id", u.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, _ *http.Request, u identity.User) {
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request, u identity.User) {
	var req updateProfileRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validEmail(strings.TrimSpace(req.Email)) {
		writeError(w, http.StatusBadRequest, "invalid email")
		return
	}

	updated, err := h.users.UpdateProfile(r.Context(), u.ID, req.Username, req.Email)
	if err != nil {
		switch {
		case identity.IsConflict(err) && identity.ConflictField(err) == "username":
			writeError(w, http.StatusConflict, "username already taken")
		case identity.IsConflict(err):
			writeError(w, http.StatusConflict, "email already registered")
		case errors.Is(err, identity.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid profile")
		default:
			h.log.Error("api.profile.fail", "err", err, "user_id", u.ID)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request, u identity.User) {
	var req changePasswordRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ok, err := identity.VerifyPassword(req.CurrentPassword, u.PasswordHash)
	if err != nil || !ok {
		writeError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	hash, err := identity.HashPassword(req.NewPassword, h.pwParams)
	if err != nil {
		if errors.Is(err, identity.ErrPasswordTooShort) {
			writeError(w, http.StatusBadRequest, "password too short")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid password")
		return
	}

	if err := h.users.UpdatePassword(r.Context(), u.ID, hash); err != nil {
		h.log.Error("api.password.fail", "err", err, "user_id", u.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.log.Info("api.password.ok", "user_id", u.ID)
	w.WriteHeader(http.StatusNoContent)
}
