package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Gitee implements Provider against gitee.com.
type Gitee struct {
	cfg  Config
	hc   *http.Client
	base giteeEndpoints
}

type giteeEndpoints struct {
	authorize string
	token     string
	user      string
}

// GiteeOption configures the client, mainly for tests.
type GiteeOption func(*Gitee)

// WithGiteeHTTPClient swaps the underlying HTTP client.
func WithGiteeHTTPClient(hc *http.Client) GiteeOption {
	return func(g *Gitee) { g.hc = hc }
}

// WithGiteeEndpoints points the client at alternate endpoints.
func WithGiteeEndpoints(authorize, token, user string) GiteeOption {
	return func(g *Gitee) {
		g.base = giteeEndpoints{authorize: authorize, token: token, user: user}
	}
}

// NewGitee constructs a Gitee provider client.
func NewGitee(cfg Config, opts ...GiteeOption) *Gitee {
	g := &Gitee{
		cfg: cfg,
		hc:  http.DefaultClient,
		base: giteeEndpoints{
			authorize: "https://gitee.com/oauth/authorize",
			token:     "https://gitee.com/oauth/token",
			user:      "https://gitee.com/api/v5/user",
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gitee) Name() string { return ProviderGitee }

// AuthorizeURL builds the browser redirect target.
func (g *Gitee) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("client_id", g.cfg.ClientID)
	q.Set("redirect_uri", g.cfg.RedirectURI)
	q.Set("response_type", "code")
	q.Set("scope", "user_info")
	if state != "" {
		q.Set("state", state)
	}
	return g.base.authorize + "?" + q.Encode()
}

// Exchange trades the callback code for an access token.
func (g *Gitee) Exchange(ctx context.Context, code string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", g.cfg.ClientID)
	form.Set("redirect_uri", g.cfg.RedirectURI)
	form.Set("client_secret", g.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.base.token, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := g.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrExchangeFailed, resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrExchangeFailed)
	}
	return body.AccessToken, nil
}

// FetchUser resolves the token holder's identity. Gitee takes the token as
// a query parameter.
func (g *Gitee) FetchUser(ctx context.Context, accessToken string) (UserInfo, error) {
	u := g.base.user + "?" + url.Values{"access_token": {accessToken}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return UserInfo{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.hc.Do(req)
	if err != nil {
		return UserInfo{}, fmt.Errorf("%w: %v", ErrUserInfoFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return UserInfo{}, fmt.Errorf("%w: status %d", ErrUserInfoFailed, resp.StatusCode)
	}

	var body struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return UserInfo{}, fmt.Errorf("%w: %v", ErrUserInfoFailed, err)
	}
	if body.ID == 0 {
		return UserInfo{}, fmt.Errorf("%w: missing user id", ErrUserInfoFailed)
	}
	return UserInfo{
		ID:        strconv.FormatInt(body.ID, 10),
		Login:     body.Login,
		Email:     body.Email,
		AvatarURL: body.AvatarURL,
	}, nil
}
