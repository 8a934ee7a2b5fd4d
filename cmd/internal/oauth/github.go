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

// GitHub implements Provider against github.com.
type GitHub struct {
	cfg  Config
	hc   *http.Client
	base githubEndpoints
}

type githubEndpoints struct {
	authorize string
	token     string
	user      string
}

// GitHubOption configures the client, mainly for tests.
type GitHubOption func(*GitHub)

// WithGitHubHTTPClient swaps the underlying HTTP client.
func WithGitHubHTTPClient(hc *http.Client) GitHubOption {
	return func(g *GitHub) { g.hc = hc }
}

// WithGitHubEndpoints points the client at alternate endpoints.
func WithGitHubEndpoints(authorize, token, user string) GitHubOption {
	return func(g *GitHub) {
		g.base = githubEndpoints{authorize: authorize, token: token, user: user}
	}
}

// NewGitHub constructs a GitHub provider client.
func NewGitHub(cfg Config, opts ...GitHubOption) *GitHub {
	g := &GitHub{
		cfg: cfg,
		hc:  http.DefaultClient,
		base: githubEndpoints{
			authorize: "https://github.com/login/oauth/authorize",
			token:     "https://github.com/login/oauth/access_token",
			user:      "https://api.github.com/user",
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GitHub) Name() string { return ProviderGitHub }

// AuthorizeURL builds the browser redirect target.
func (g *GitHub) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("client_id", g.cfg.ClientID)
	q.Set("redirect_uri", g.cfg.RedirectURI)
	q.Set("scope", "read:user user:email")
	if state != "" {
		q.Set("state", state)
	}
	return g.base.authorize + "?" + q.Encode()
}

// Exchange trades the callback code for an access token. GitHub answers in
// form encoding unless asked for JSON explicitly.
func (g *GitHub) Exchange(ctx context.Context, code string) (string, error) {
	form := url.Values{}
	form.Set("client_id", g.cfg.ClientID)
	form.Set("client_secret", g.cfg.ClientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", g.cfg.RedirectURI)

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
		Error       string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	if body.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrExchangeFailed, body.Error)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrExchangeFailed)
	}
	return body.AccessToken, nil
}

// FetchUser resolves the token holder's identity via a bearer header.
func (g *GitHub) FetchUser(ctx context.Context, accessToken string) (UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.base.user, nil)
	if err != nil {
		return UserInfo{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

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
