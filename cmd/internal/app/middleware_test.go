package app

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStatusClass(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status int
		want   string
	}{
		{status: 200, want: "2xx"},
		{status: 204, want: "2xx"},
		{status: 302, want: "3xx"},
		{status: 404, want: "4xx"},
		{status: 503, want: "5xx"},
	}

	for _, tc := range cases {
		if got := statusClass(tc.status); got != tc.want {
			t.Fatalf("statusClass(%d)=%q want=%q", tc.status, got, tc.want)
		}
	}
}

func TestWithRequestID_Generated(t *testing.T) {
	t.Parallel()

	var seen string
	h := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(requestIDHeader)
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if seen == "" {
		t.Fatalf("request id was not injected into the request")
	}
	if got := rr.Header().Get(requestIDHeader); got != seen {
		t.Fatalf("response id %q does not match request id %q", got, seen)
	}
}

func TestWithRequestID_Preserved(t *testing.T) {
	t.Parallel()

	h := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "client-supplied-id")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get(requestIDHeader); got != "client-supplied-id" {
		t.Fatalf("expected client id to be echoed, got %q", got)
	}
}

func TestWithRequestLogging(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	h := WithRequestLogging(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"not found"}`)
	}), log)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/missing", nil))

	var entry struct {
		Msg         string `json:"msg"`
		Method      string `json:"method"`
		Path        string `json:"path"`
		Status      int    `json:"status"`
		StatusClass string `json:"status_class"`
		Bytes       int64  `json:"bytes"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log entry: %v", err)
	}
	if entry.Msg != "http.request" {
		t.Fatalf("unexpected log message: %q", entry.Msg)
	}
	if entry.Method != http.MethodGet || entry.Path != "/api/missing" {
		t.Fatalf("unexpected method/path: %q %q", entry.Method, entry.Path)
	}
	if entry.Status != http.StatusNotFound || entry.StatusClass != "4xx" {
		t.Fatalf("unexpected status fields: %d %q", entry.Status, entry.StatusClass)
	}
	if entry.Bytes != int64(len(`{"error":"not found"}`)) {
		t.Fatalf("unexpected byte count: %d", entry.Bytes)
	}
}

func TestWithCORS_Preflight(t *testing.T) {
	t.Parallel()

	h := WithCORS(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Fatalf("next handler should not be called for preflight")
	}), []string{"https://app.example.com"})

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("allow-origin mismatch: %q", got)
	}
}

func TestWithCORS_DisallowedOrigin(t *testing.T) {
	t.Parallel()

	h := WithCORS(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}), []string{"https://app.example.com"})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Origin", "https://evil.example.com")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected pass-through status 204, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow-origin for denied origin: %q", got)
	}
}

func TestWithCORS_Wildcard(t *testing.T) {
	t.Parallel()

	h := WithCORS(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}), []string{"*"})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://127.0.0.1:55123")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://127.0.0.1:55123" {
		t.Fatalf("allow-origin mismatch: %q", got)
	}
}
