package token

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()
	m, err := NewManager(testSecret, "deepseek-platform", ttl)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestIssueAndVerify(t *testing.T) {
	m := newTestManager(t, time.Hour)

	raw, err := m.Issue(42, "alice@example.com", 3)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if strings.Count(raw, ".") != 2 {
		t.Fatalf("not a compact JWT: %q", raw)
	}

	c, err := m.Verify(raw)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if c.UserID != 42 || c.Email != "alice@example.com" || c.TokenVersion != 3 {
		t.Fatalf("claims = %+v", c)
	}
	if !c.ExpiresAt.After(time.Now()) {
		t.Fatalf("expiry in the past: %v", c.ExpiresAt)
	}
}

func TestVerifyRejectsTampered(t *testing.T) {
	m := newTestManager(t, time.Hour)

	raw, err := m.Issue(42, "alice@example.com", 0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	tampered := raw[:len(raw)-2] + "xx"
	if _, err := m.Verify(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("tampered err = %v, want ErrInvalidToken", err)
	}

	if _, err := m.Verify("not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	m := newTestManager(t, time.Hour)
	other, err := NewManager("ffffffffffffffffffffffffffffffff", "deepseek-platform", time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	raw, err := other.Issue(7, "bob@example.com", 0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := m.Verify(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong-secret err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := newTestManager(t, time.Millisecond)

	raw, err := m.Issue(42, "alice@example.com", 0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := m.Verify(raw); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expired err = %v, want ErrExpiredToken", err)
	}
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	m := newTestManager(t, time.Hour)
	other, err := NewManager(testSecret, "someone-else", time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	raw, err := other.Issue(42, "alice@example.com", 0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := m.Verify(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong-issuer err = %v, want ErrInvalidToken", err)
	}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager("short", "iss", time.Hour); err == nil {
		t.Fatal("short secret accepted")
	}
	if _, err := NewManager(testSecret, "iss", 0); err == nil {
		t.Fatal("zero ttl accepted")
	}
}
