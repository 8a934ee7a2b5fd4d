package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/icuxika/deepseek-api-open-platform-simulation/client/transport"
)

// Wire shapes and endpoint wrappers for the auth, account, and billing
// surfaces of the platform API. Paths mirror the backend route table.

type authResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"tokenType"`
	User      User   `json:"user"`
}

type authorizeURLResponse struct {
	URL string `json:"url"`
}

func (s *Store) apiLogin(ctx context.Context, email, password string) (authResponse, error) {
	var resp authResponse
	body := map[string]string{"email": email, "password": password}
	if err := s.rpc.Do(ctx, http.MethodPost, "/auth/login", body, false, &resp); err != nil {
		return authResponse{}, err
	}
	if err := validateUser(resp.User); err != nil {
		return authResponse{}, err
	}
	return resp, nil
}

func (s *Store) apiRegister(ctx context.Context, email, username, password string) (authResponse, error) {
	var resp authResponse
	body := map[string]string{"email": email, "username": username, "password": password}
	if err := s.rpc.Do(ctx, http.MethodPost, "/auth/register", body, false, &resp); err != nil {
		return authResponse{}, err
	}
	if err := validateUser(resp.User); err != nil {
		return authResponse{}, err
	}
	return resp, nil
}

func (s *Store) apiMe(ctx context.Context) (User, error) {
	var u User
	if err := s.rpc.Do(ctx, http.MethodGet, "/auth/me", nil, true, &u); err != nil {
		return User{}, err
	}
	if err := validateUser(u); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Store) apiLogout(ctx context.Context) error {
	return s.rpc.Do(ctx, http.MethodPost, "/auth/logout", nil, true, nil)
}

func (s *Store) apiUpdateProfile(ctx context.Context, username, email string) (User, error) {
	var u User
	body := map[string]string{"username": username, "email": email}
	if err := s.rpc.Do(ctx, http.MethodPut, "/auth/profile", body, true, &u); err != nil {
		return User{}, err
	}
	if err := validateUser(u); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Store) apiChangePassword(ctx context.Context, current, next string) error {
	body := map[string]string{"currentPassword": current, "newPassword": next}
	return s.rpc.Do(ctx, http.MethodPut, "/auth/password", body, true, nil)
}

func (s *Store) apiListKeys(ctx context.Context) ([]APIKey, error) {
	var keys []APIKey
	err := s.rpc.Do(ctx, http.MethodGet, "/api-keys", nil, true, &keys)
	if errors.Is(err, transport.ErrNoContent) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		if err := validateAPIKey(k); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func (s *Store) apiCreateKey(ctx context.Context, name string) (APIKey, error) {
	var key APIKey
	body := map[string]string{"name": name}
	if err := s.rpc.Do(ctx, http.MethodPost, "/api-keys", body, true, &key); err != nil {
		return APIKey{}, err
	}
	if err := validateAPIKey(key); err != nil {
		return APIKey{}, err
	}
	return key, nil
}

func (s *Store) apiDeleteKey(ctx context.Context, id int64) error {
	return s.rpc.Do(ctx, http.MethodDelete, fmt.Sprintf("/api-keys/%d", id), nil, true, nil)
}

func (s *Store) apiUsageStats(ctx context.Context) (UsageStats, error) {
	var stats UsageStats
	if err := s.rpc.Do(ctx, http.MethodGet, "/billing/usage", nil, true, &stats); err != nil {
		return UsageStats{}, err
	}
	return stats, nil
}

func (s *Store) apiBillingRecords(ctx context.Context) ([]BillingRecord, error) {
	var records []BillingRecord
	err := s.rpc.Do(ctx, http.MethodGet, "/billing/records", nil, true, &records)
	if errors.Is(err, transport.ErrNoContent) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if err := validateBillingRecord(r); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func (s *Store) apiRecharge(ctx context.Context, amount float64, paymentMethod string) (BillingRecord, error) {
	var record BillingRecord
	body := map[string]any{"amount": amount, "paymentMethod": paymentMethod}
	if err := s.rpc.Do(ctx, http.MethodPost, "/billing/recharge", body, true, &record); err != nil {
		return BillingRecord{}, err
	}
	if err := validateBillingRecord(record); err != nil {
		return BillingRecord{}, err
	}
	return record, nil
}

func (s *Store) apiOAuthAuthorizeURL(ctx context.Context, provider string) (string, error) {
	var resp authorizeURLResponse
	if err := s.rpc.Do(ctx, http.MethodGet, "/auth/oauth/"+url.PathEscape(provider), nil, false, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", invalidPayload("oauth", "missing authorize url")
	}
	return resp.URL, nil
}

func (s *Store) apiOAuthCallback(ctx context.Context, provider, code, state string) (authResponse, error) {
	q := url.Values{}
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	path := "/auth/oauth/" + url.PathEscape(provider) + "/callback?" + q.Encode()

	var resp authResponse
	if err := s.rpc.Do(ctx, http.MethodGet, path, nil, false, &resp); err != nil {
		return authResponse{}, err
	}
	if err := validateUser(resp.User); err != nil {
		return authResponse{}, err
	}
	return resp, nil
}

func (s *Store) apiOAuthBindings(ctx context.Context) ([]OAuthBinding, error) {
	var bindings []OAuthBinding
	err := s.rpc.Do(ctx, http.MethodGet, "/auth/oauth/bindings", nil, true, &bindings)
	if errors.Is(err, transport.ErrNoContent) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return bindings, nil
}

func (s *Store) apiOAuthUnbind(ctx context.Context, provider string) error {
	return s.rpc.Do(ctx, http.MethodDelete, "/auth/oauth/bindings/"+url.PathEscape(provider), nil, true, nil)
}
