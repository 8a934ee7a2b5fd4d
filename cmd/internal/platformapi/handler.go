// Package platformapi exposes the open-platform HTTP API: account auth,
// OAuth login, API key management, billing, and the simulated inference
// endpoints under /v1.
package platformapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/icuxika/deepseek-api-open-platform-simulation/cmd/identity"
	"github.com/icuxika/deepseek-api-open-platform-simulation/cmd/internal/account"
	"github.com/icuxika/deepseek-api-open-platform-simulation/cmd/internal/oauth"
	"github.com/icuxika/deepseek-api-open-platform-simulation/cmd/security/token"
)

const defaultMaxBodyBytes = 1 << 20

// Handler wires the platform endpoints to the identity and account stores.
type Handler struct {
	log *slog.Logger

	users     identity.Store
	accounts  account.Store
	tokens    *token.Manager
	providers oauth.Registry

	maxBodyBytes int64
	pwParams     identity.Argon2idParams

	// dummyHash keeps login timing flat for unknown emails.
	dummyHash string
}

// HandlerOption configures optional handler behavior.
type HandlerOption func(*Handler)

// WithMaxBodyBytes caps request body size.
func WithMaxBodyBytes(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// WithPasswordParams overrides the argon2id cost, mainly for tests.
func WithPasswordParams(p identity.Argon2idParams) HandlerOption {
	return func(h *Handler) { h.pwParams = p }
}

// NewHandler constructs the API handler.
func NewHandler(log *slog.Logger, users identity.Store, accounts account.Store, tokens *token.Manager, providers oauth.Registry, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if users == nil || accounts == nil || tokens == nil {
		return nil, errors.New("platformapi: nil store or token manager")
	}
	if providers == nil {
		providers = oauth.Registry{}
	}

	h := &Handler{
		log:          log,
		users:        users,
		accounts:     accounts,
		tokens:       tokens,
		providers:    providers,
		maxBodyBytes: defaultMaxBodyBytes,
		pwParams:     identity.DefaultArgon2idParams(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	if hash, err := identity.HashPassword("dummy-password-for-timing-only", h.pwParams); err == nil {
		h.dummyHash = hash
	}

	return h, nil
}

// Register wires the routes onto the provided mux. Platform endpoints live
// under /api; the simulated inference surface lives under /v1.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}

	mux.HandleFunc("POST /api/auth/register", h.handleRegister)
	mux.HandleFunc("POST /api/auth/login", h.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", h.withUser(h.handleLogout))
	mux.HandleFunc("GET /api/auth/me", h.withUser(h.handleMe))
	mux.HandleFunc("PUT /api/auth/profile", h.withUser(h.handleUpdateProfile))
	mux.HandleFunc("PUT /api/auth/password", h.withUser(h.handleChangePassword))

	mux.HandleFunc("GET /api/auth/oauth/bindings", h.withUser(h.handleListBindings))
	mux.HandleFunc("DELETE /api/auth/oauth/bindings/{provider}", h.withUser(h.handleUnbind))
	mux.HandleFunc("GET /api/auth/oauth/{provider}", h.handleAuthorizeURL)
	mux.HandleFunc("GET /api/auth/oauth/{provider}/callback", h.handleOAuthCallback)

	mux.HandleFunc("GET /api/api-keys", h.withUser(h.handleListKeys))
	mux.HandleFunc("POST /api/api-keys", h.withUser(h.handleCreateKey))
	mux.HandleFunc("DELETE /api/api-keys/{id}", h.withUser(h.handleDeleteKey))

	mux.HandleFunc("GET /api/billing/usage", h.withUser(h.handleUsageStats))
	mux.HandleFunc("GET /api/billing/records", h.withUser(h.handleBillingRecords))
	mux.HandleFunc("POST /api/billing/recharge", h.withUser(h.handleRecharge))

	mux.HandleFunc("GET /v1/models", h.handleListModels)
	mux.HandleFunc("POST /v1/chat/completions", h.withAPIKey(h.handleChatCompletion))
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

// withUser authenticates a bearer JWT and resolves its user. A token whose
// version no longer matches the stored version is treated as revoked.
func (h *Handler) withUser(next func(http.ResponseWriter, *http.Request, identity.User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := h.tokens.Verify(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		u, err := h.users.GetByID(r.Context(), claims.UserID)
		if err != nil {
			if identity.IsNotFound(err) {
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			h.log.Error("api.auth.lookup.fail", "err", err, "user_id", claims.UserID)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if claims.TokenVersion != u.TokenVersion {
			writeError(w, http.StatusUnauthorized, "token revoked")
			return
		}

		next(w, r, u)
	}
}

// withAPIKey authenticates the inference surface with an sk- secret.
func (h *Handler) withAPIKey(next func(http.ResponseWriter, *http.Request, account.APIKey)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		secret := bearerToken(r)
		if secret == "" {
			writeError(w, http.StatusUnauthorized, "missing API key")
			return
		}

		k, err := h.accounts.GetKeyBySecret(r.Context(), secret)
		if err != nil {
			if errors.Is(err, account.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "invalid API key")
				return
			}
			h.log.Error("api.key.lookup.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if k.Status != account.KeyStatusActive {
			writeError(w, http.StatusUnauthorized, "API key disabled")
			return
		}

		next(w, r, k)
	}
}
