// Package oauth implements the third-party login flow against Gitee and
// GitHub: building the authorization URL, exchanging the callback code for
// an access token, and fetching the provider's user record.
package oauth

import (
	"context"
	"errors"
	"fmt"
)

// Provider names as they appear in routes and bindings.
const (
	ProviderGitee  = "gitee"
	ProviderGitHub = "github"
)

var (
	// ErrUnknownProvider is returned for provider names outside the
	// supported set.
	ErrUnknownProvider = errors.New("unknown oauth provider")

	// ErrExchangeFailed is returned when the code-for-token exchange is
	// rejected by the provider.
	ErrExchangeFailed = errors.New("oauth code exchange failed")

	// ErrUserInfoFailed is returned when the provider's user endpoint
	// does not yield a usable identity.
	ErrUserInfoFailed = errors.New("oauth user info failed")
)

// UserInfo is the provider-neutral identity returned by a callback.
type UserInfo struct {
	// ID is the provider's stable user identifier, rendered as a string.
	ID        string
	Login     string
	Email     string
	AvatarURL string
}

// Provider is one configured OAuth backend.
type Provider interface {
	Name() string

	// AuthorizeURL builds the URL the browser is sent to. state is
	// round-tripped by the provider and may be empty.
	AuthorizeURL(state string) string

	// Exchange trades the callback code for an access token.
	Exchange(ctx context.Context, code string) (string, error)

	// FetchUser resolves the token holder's identity.
	FetchUser(ctx context.Context, accessToken string) (UserInfo, error)
}

// Registry holds the configured providers by name.
type Registry map[string]Provider

// Lookup returns the named provider or ErrUnknownProvider.
func (r Registry) Lookup(name string) (Provider, error) {
	p, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}

// Config carries one provider's application registration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Enabled reports whether the registration is usable.
func (c Config) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}
