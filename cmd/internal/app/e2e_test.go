package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/icuxika/deepseek-api-open-platform-simulation/client/credfile"
	"github.com/icuxika/deepseek-api-open-platform-simulation/client/session"
)

// TestEndToEndClientAgainstServer drives the real client SDK against the
// fully assembled server over HTTP.
func TestEndToEndClientAgainstServer(t *testing.T) {
	srv := httptest.NewServer(testHandler(testApp(t)))
	defer srv.Close()

	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sess := session.New(srv.URL+"/api", credfile.NewMemStore(), log)

	if !sess.Register(ctx, "e2e@example.com", "e2euser", "s3cret-pass") {
		t.Fatalf("register failed")
	}
	if !sess.IsAuthenticated() {
		t.Fatalf("session should be authenticated after register")
	}

	key, err := sess.CreateAPIKey(ctx, "dev key")
	if err != nil {
		t.Fatalf("create api key: %v", err)
	}
	if !strings.HasPrefix(key.Key, "sk-") {
		t.Fatalf("unexpected key secret: %q", key.Key)
	}

	if err := sess.Recharge(ctx, 25, "alipay"); err != nil {
		t.Fatalf("recharge: %v", err)
	}
	snap := sess.Snapshot()
	if snap.Identity == nil || snap.Identity.Balance != 25 {
		t.Fatalf("balance after recharge: %+v", snap.Identity)
	}
	if len(snap.BillingRecords) != 1 || snap.BillingRecords[0].Type != "recharge" {
		t.Fatalf("billing records after recharge: %+v", snap.BillingRecords)
	}

	// The chat surface authenticates with the API key, not the session.
	chatBody := `{"model":"deepseek-chat","messages":[{"role":"user","content":"hello"}]}`
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL+"/v1/chat/completions", strings.NewReader(chatBody))
	if err != nil {
		t.Fatalf("build chat request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+key.Key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("chat request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("chat status=%d body=%s", resp.StatusCode, body)
	}
	var completion struct {
		ID    string `json:"id"`
		Usage struct {
			TotalTokens int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		t.Fatalf("decode completion: %v", err)
	}
	if !strings.HasPrefix(completion.ID, "chatcmpl-") || completion.Usage.TotalTokens <= 0 {
		t.Fatalf("unexpected completion: %+v", completion)
	}

	sess.LoadUserData(ctx)
	snap = sess.Snapshot()
	if snap.UsageStats.TotalTokens != int64(completion.Usage.TotalTokens) {
		t.Fatalf("usage stats total=%d want=%d", snap.UsageStats.TotalTokens, completion.Usage.TotalTokens)
	}
	if len(snap.BillingRecords) != 2 || snap.BillingRecords[0].Type != "usage" {
		t.Fatalf("billing records after chat: %+v", snap.BillingRecords)
	}
	if len(snap.APIKeys) != 1 || snap.APIKeys[0].LastUsedAt == "" {
		t.Fatalf("api keys after chat: %+v", snap.APIKeys)
	}

	sess.Logout()
	if sess.IsAuthenticated() {
		t.Fatalf("session should be anonymous after logout")
	}
}
