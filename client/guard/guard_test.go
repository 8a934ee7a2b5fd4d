package guard

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
)

// fakeSession scripts the session states the guard can encounter.
type fakeSession struct {
	credential string
	identity   bool

	fetchSucceeds bool
	fetchCalls    int
}

func (s *fakeSession) Credential() string { return s.credential }
func (s *fakeSession) HasIdentity() bool  { return s.identity }

func (s *fakeSession) IsAuthenticated() bool {
	return s.credential != "" && s.identity
}

func (s *fakeSession) FetchCurrentUser(_ context.Context) bool {
	s.fetchCalls++
	if s.fetchSucceeds {
		s.identity = true
		return true
	}
	// Self-healing path: a failed resolution clears the whole session.
	s.credential = ""
	s.identity = false
	return false
}

func testGuard(sess Session) *Guard {
	return New(sess, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestEvaluate_FreshSessionRedirectsToLogin(t *testing.T) {
	g := testGuard(&fakeSession{})

	d := g.Evaluate(context.Background(), "/dashboard")
	if d.Action != RedirectLogin {
		t.Fatalf("action = %v, want RedirectLogin", d.Action)
	}
	if !strings.HasPrefix(d.Target, "/login?") || !strings.Contains(d.Target, "redirect=%2Fdashboard") {
		t.Fatalf("target = %q, want login with redirect param /dashboard", d.Target)
	}
}

func TestEvaluate_CredentialWithoutIdentityTriggersResolution(t *testing.T) {
	t.Run("resolution succeeds", func(t *testing.T) {
		sess := &fakeSession{credential: "tok", fetchSucceeds: true}
		g := testGuard(sess)

		d := g.Evaluate(context.Background(), "/dashboard")
		if sess.fetchCalls != 1 {
			t.Fatalf("fetchCalls = %d, want 1", sess.fetchCalls)
		}
		if d.Action != Allow {
			t.Fatalf("action = %v, want Allow", d.Action)
		}
	})

	t.Run("resolution fails", func(t *testing.T) {
		sess := &fakeSession{credential: "tok-stale"}
		g := testGuard(sess)

		d := g.Evaluate(context.Background(), "/dashboard")
		if sess.fetchCalls != 1 {
			t.Fatalf("fetchCalls = %d, want 1", sess.fetchCalls)
		}
		if sess.credential != "" {
			t.Fatalf("session should be fully cleared")
		}
		if d.Action != RedirectLogin {
			t.Fatalf("action = %v, want RedirectLogin", d.Action)
		}
	})
}

func TestEvaluate_AuthenticatedOnEntryPointsRedirectsHome(t *testing.T) {
	for _, path := range []string{"/login", "/register"} {
		sess := &fakeSession{credential: "tok", identity: true}
		d := testGuard(sess).Evaluate(context.Background(), path)
		if d.Action != RedirectHome {
			t.Fatalf("path %s: action = %v, want RedirectHome", path, d.Action)
		}
		if d.Target != "/dashboard" {
			t.Fatalf("path %s: target = %q, want /dashboard", path, d.Target)
		}
	}
}

func TestEvaluate_Table(t *testing.T) {
	tests := []struct {
		name string
		sess fakeSession
		path string
		want Action
	}{
		{"anonymous on login", fakeSession{}, "/login", Allow},
		{"anonymous on register", fakeSession{}, "/register", Allow},
		{"anonymous on oauth callback", fakeSession{}, "/oauth/callback/github", Allow},
		{"anonymous on billing", fakeSession{}, "/billing", RedirectLogin},
		{"anonymous on root", fakeSession{}, "/", RedirectLogin},
		{"authenticated on dashboard", fakeSession{credential: "t", identity: true}, "/dashboard", Allow},
		{"authenticated on profile", fakeSession{credential: "t", identity: true}, "/profile", Allow},
		{"authenticated on oauth callback", fakeSession{credential: "t", identity: true}, "/oauth/callback/gitee", Allow},
		{"unknown path", fakeSession{}, "/nonexistent", Allow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := tt.sess
			d := testGuard(&sess).Evaluate(context.Background(), tt.path)
			if d.Action != tt.want {
				t.Fatalf("action = %v, want %v", d.Action, tt.want)
			}
		})
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	tests := []struct {
		name string
		sess fakeSession
		path string
	}{
		{"anonymous denied", fakeSession{}, "/dashboard"},
		{"authenticated allowed", fakeSession{credential: "t", identity: true}, "/dashboard"},
		{"authenticated on login", fakeSession{credential: "t", identity: true}, "/login"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := tt.sess
			g := testGuard(&sess)
			first := g.Evaluate(context.Background(), tt.path)
			second := g.Evaluate(context.Background(), tt.path)
			if first != second {
				t.Fatalf("decisions differ: %+v vs %+v", first, second)
			}
		})
	}
}

func TestMatch_ParamSegments(t *testing.T) {
	routes := DefaultRoutes()

	r, ok := match(routes, "/oauth/callback/github")
	if !ok || r.Name != RouteOAuthCallback {
		t.Fatalf("match = %+v, %v", r, ok)
	}
	if _, ok := match(routes, "/oauth/callback"); ok {
		t.Fatalf("short path must not match param route")
	}
	if _, ok := match(routes, "/oauth/callback/github/extra"); ok {
		t.Fatalf("long path must not match param route")
	}

	r, ok = match(routes, "/")
	if !ok || !r.RequiresAuth {
		t.Fatalf("root should resolve to the authenticated layout, got %+v, %v", r, ok)
	}
}

func TestActionString(t *testing.T) {
	if Allow.String() != "allow" || RedirectLogin.String() != "redirect-login" || RedirectHome.String() != "redirect-home" {
		t.Fatalf("unexpected Action strings")
	}
}
