package app

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		HTTPAddr:  "127.0.0.1:0",
		JWTSecret: "0123456789abcdef0123456789abcdef",
		JWTIssuer: "deepseek-platform",
		JWTTTL:    time.Hour,
	}
}

func testApp(t *testing.T) *App {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := New(testConfig(), log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

// testHandler builds the same middleware stack Run serves.
func testHandler(a *App) http.Handler {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.metrics, a.api)

	var handler http.Handler = mux
	handler = WithCORS(handler, a.cfg.CORSOrigins)
	handler = a.metrics.WithHTTPMetrics(handler)
	handler = WithRequestLogging(handler, a.log)
	handler = WithRequestID(handler)
	return handler
}

func TestAppHealthAndReadiness(t *testing.T) {
	h := testHandler(testApp(t))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rr.Code)
	}
	if rr.Header().Get(requestIDHeader) == "" {
		t.Fatalf("healthz response is missing a request id")
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz status=%d", rr.Code)
	}
}

func TestAppReadinessRequiresDB(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig()
	cfg.ReadinessRequireDB = true

	a, err := New(cfg, log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h := testHandler(a)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz without db should be 503, got %d", rr.Code)
	}
}

func TestAppServesAPIAndMetrics(t *testing.T) {
	h := testHandler(testApp(t))

	body := `{"username":"navid","email":"navid@example.com","password":"s3cret-pass"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("register status=%d body=%s", rr.Code, rr.Body.String())
	}

	var auth struct {
		Token     string `json:"token"`
		TokenType string `json:"tokenType"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &auth); err != nil {
		t.Fatalf("decode auth response: %v", err)
	}
	if auth.Token == "" || auth.TokenType != "Bearer" {
		t.Fatalf("unexpected auth response: %+v", auth)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "dsp_http_requests_total") {
		t.Fatalf("metrics output is missing request counter")
	}
}

func TestValidateSecurityConfig(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(_ *Config) {}},
		{name: "missing secret", mutate: func(c *Config) { c.JWTSecret = "" }, wantErr: true},
		{name: "short secret", mutate: func(c *Config) { c.JWTSecret = "short" }, wantErr: true},
		{name: "zero ttl", mutate: func(c *Config) { c.JWTTTL = 0 }, wantErr: true},
		{name: "gitee without redirect", mutate: func(c *Config) {
			c.Gitee.ClientID = "id"
			c.Gitee.ClientSecret = "secret"
		}, wantErr: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig()
			tc.mutate(&cfg)
			err := ValidateSecurityConfig(cfg)
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
