package platformapi

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"

	"github.com/icuxika/deepseek-api-open-platform-simulation/cmd/identity"
	"github.com/icuxika/deepseek-api-open-platform-simulation/cmd/internal/account"
	"github.com/icuxika/deepseek-api-open-platform-simulation/cmd/internal/oauth"
)

// bindStatePrefix marks an OAuth state that carries a bearer token of an
// already-authenticated user asking to link the provider, rather than a
// fresh login.
const bindStatePrefix = "bind:"

func (h *Handler) handleAuthorizeURL(w http.ResponseWriter, r *http.Request) {
	p, err := h.providers.Lookup(r.PathValue("provider"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unsupported provider")
		return
	}
	writeJSON(w, http.StatusOK, authorizeURLResponse{URL: p.AuthorizeURL(r.URL.Query().Get("state"))})
}

func (h *Handler) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	p, err := h.providers.Lookup(r.PathValue("provider"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unsupported provider")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	accessToken, err := p.Exchange(r.Context(), code)
	if err != nil {
		h.log.Info("api.oauth.exchange.fail", "provider", p.Name(), "err", err)
		writeError(w, http.StatusBadGateway, "failed to obtain access token")
		return
	}

	info, err := p.FetchUser(r.Context(), accessToken)
	if err != nil {
		h.log.Info("api.oauth.userinfo.fail", "provider", p.Name(), "err", err)
		writeError(w, http.StatusBadGateway, "failed to fetch user info")
		return
	}

	if bindUser, ok := h.resolveBindUser(r); ok {
		h.bindProvider(w, r, p.Name(), bindUser, info)
		return
	}
	h.loginOrRegister(w, r, p.Name(), info)
}

// resolveBindUser recognizes a bind flow: either an authenticated request or
// a "bind:<token>" state round-tripped through the provider.
func (h *Handler) resolveBindUser(r *http.Request) (identity.User, bool) {
	raw := bearerToken(r)
	if raw == "" {
		state := r.URL.Query().Get("state")
		if !strings.HasPrefix(state, bindStatePrefix) {
			return identity.User{}, false
		}
		raw = state[len(bindStatePrefix):]
	}

	claims, err := h.tokens.Verify(raw)
	if err != nil {
		return identity.User{}, false
	}
	u, err := h.users.GetByID(r.Context(), claims.UserID)
	if err != nil || claims.TokenVersion != u.TokenVersion {
		return identity.User{}, false
	}
	return u, true
}

func (h *Handler) bindProvider(w http.ResponseWriter, r *http.Request, provider string, u identity.User, info oauth.UserInfo) {
	if existing, err := h.accounts.FindBinding(r.Context(), provider, info.ID); err == nil {
		if existing.UserID == u.ID {
			h.issueAuthResponse(w, u)
			return
		}
		writeError(w, http.StatusConflict, "this account is already linked to another user")
		return
	}

	err := h.accounts.UpsertBinding(r.Context(), account.OAuthBinding{
		UserID:           u.ID,
		Provider:         provider,
		ProviderUserID:   info.ID,
		ProviderUsername: info.Login,
		AvatarURL:        info.AvatarURL,
	})
	if err != nil {
		h.log.Error("api.oauth.bind.fail", "err", err, "user_id", u.ID, "provider", provider)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.log.Info("api.oauth.bind.ok", "user_id", u.ID, "provider", provider)
	h.issueAuthResponse(w, u)
}

func (h *Handler) loginOrRegister(w http.ResponseWriter, r *http.Request, provider string, info oauth.UserInfo) {
	if b, err := h.accounts.FindBinding(r.Context(), provider, info.ID); err == nil {
		u, err := h.users.GetByID(r.Context(), b.UserID)
		if err != nil {
			h.log.Error("api.oauth.login.fail", "err", err, "provider", provider)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		h.log.Info("api.oauth.login.ok", "user_id", u.ID, "provider", provider)
		h.issueAuthResponse(w, u)
		return
	}

	u, err := h.registerProviderUser(r.Context(), provider, info)
	if err != nil {
		h.log.Error("api.oauth.register.fail", "err", err, "provider", provider)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	err = h.accounts.UpsertBinding(r.Context(), account.OAuthBinding{
		UserID:           u.ID,
		Provider:         provider,
		ProviderUserID:   info.ID,
		ProviderUsername: info.Login,
		AvatarURL:        info.AvatarURL,
	})
	if err != nil {
		h.log.Error("api.oauth.bind.fail", "err", err, "user_id", u.ID, "provider", provider)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.log.Info("api.oauth.register.ok", "user_id", u.ID, "provider", provider)
	h.issueAuthResponse(w, u)
}

// registerProviderUser creates an account from a provider identity, falling
// back to placeholder emails and suffixed usernames on collision.
func (h *Handler) registerProviderUser(ctx context.Context, provider string, info oauth.UserInfo) (identity.User, error) {
	email := info.Email
	if email == "" {
		email = fmt.Sprintf("%s_%s@placeholder.local", provider, info.ID)
	}
	username := info.Login
	if username == "" {
		username = provider + "_" + info.ID
	}

	for attempt := 0; attempt < 3; attempt++ {
		u, err := h.users.CreateUser(ctx, identity.CreateUserInput{
			Email:     email,
			Username:  username,
			AvatarURL: info.AvatarURL,
		})
		if err == nil {
			return u, nil
		}
		if !identity.IsConflict(err) {
			return identity.User{}, err
		}
		switch identity.ConflictField(err) {
		case "username":
			username = fmt.Sprintf("%s_%06x", info.Login, rand.Intn(1<<24))
		default:
			email = fmt.Sprintf("%s_%s_%06x@placeholder.local", provider, info.ID, rand.Intn(1<<24))
		}
	}
	return identity.User{}, errors.New("could not allocate a unique account")
}

func (h *Handler) handleListBindings(w http.ResponseWriter, r *http.Request, u identity.User) {
	bs, err := h.accounts.ListBindings(r.Context(), u.ID)
	if err != nil {
		h.log.Error("api.oauth.bindings.fail", "err", err, "user_id", u.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]bindingResponse, 0, len(bs))
	for _, b := range bs {
		out = append(out, toBindingResponse(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleUnbind(w http.ResponseWriter, r *http.Request, u identity.User) {
	provider := r.PathValue("provider")
	if _, err := h.providers.Lookup(provider); err != nil {
		writeError(w, http.StatusBadRequest, "unsupported provider")
		return
	}

	if err := h.accounts.DeleteBinding(r.Context(), u.ID, provider); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			writeError(w, http.StatusNotFound, "binding not found")
			return
		}
		h.log.Error("api.oauth.unbind.fail", "err", err, "user_id", u.ID, "provider", provider)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.log.Info("api.oauth.unbind.ok", "user_id", u.ID, "provider", provider)
	w.WriteHeader(http.StatusNoContent)
}
