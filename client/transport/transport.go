package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// CredentialSource supplies the current bearer credential.
// An empty string means the session is anonymous.
type CredentialSource func() string

// Client performs authenticated JSON exchanges with the platform API.
//
// The zero value is not usable; construct with New.
type Client struct {
	baseURL    string
	httpClient *http.Client
	credential CredentialSource
}

// Option configures optional Client dependencies.
type Option func(*Client)

// WithHTTPClient overrides the underlying *http.Client (tests, custom
// transports, proxies).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if c == nil || hc == nil {
			return
		}
		c.httpClient = hc
	}
}

// New constructs a Client for the given API base URL (e.g.
// "http://localhost:8080/api"). source may be nil for a permanently anonymous
// client.
func New(baseURL string, source CredentialSource, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		credential: source,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(c)
	}
	return c
}

// serverError is the error envelope the platform backend emits for non-2xx
// responses.
type serverError struct {
	Error string `json:"error"`
}

// Do performs one request against the platform API.
//
// body, when non-nil, is JSON-encoded. When withCredential is true and a
// credential is available, it is attached as a bearer token. out, when
// non-nil, receives the decoded response body; a 204 or empty body in that
// case yields ErrNoContent. Non-2xx responses are returned as *Error carrying
// the server's message.
func (c *Client) Do(ctx context.Context, method, path string, body any, withCredential bool, out any) error {
	if c == nil {
		return errors.New("transport: nil client")
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("transport: encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("transport: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if withCredential && c.credential != nil {
		if token := c.credential(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Bound response reading; platform payloads are small.
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("transport: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classify(resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		return ErrNoContent
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// classify turns a non-2xx response into a typed *Error, preferring the
// server's own message when the body parses.
func classify(status int, body []byte) error {
	var se serverError
	if err := json.Unmarshal(body, &se); err == nil && strings.TrimSpace(se.Error) != "" {
		return &Error{Status: status, Message: se.Error}
	}
	return &Error{Status: status, Message: http.StatusText(status)}
}
