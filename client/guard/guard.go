// Package guard is the admission-control state machine run before every
// navigation. It consults the session, lazily resolves a persisted credential
// into an identity, and decides whether the requested view may mount.
package guard

import (
	"context"
	"log/slog"
	"net/url"
)

// Session is the slice of the session store the guard needs. The concrete
// implementation is client/session.Store.
type Session interface {
	Credential() string
	HasIdentity() bool
	IsAuthenticated() bool
	FetchCurrentUser(ctx context.Context) bool
}

// Action is the admission decision for one navigation attempt.
type Action int

const (
	// Allow admits the navigation.
	Allow Action = iota
	// RedirectLogin sends the user to the login view, carrying the
	// originally requested path.
	RedirectLogin
	// RedirectHome sends an already-authenticated user away from a
	// pre-authentication entry point.
	RedirectHome
)

func (a Action) String() string {
	switch a {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect-login"
	case RedirectHome:
		return "redirect-home"
	default:
		return "unknown"
	}
}

// Decision is the outcome of evaluating one {route, session} pair.
type Decision struct {
	Action Action

	// Target is the path to navigate to instead, set for redirects.
	Target string
}

// Guard evaluates admission for every navigation attempt, including the very
// first one. Evaluation is idempotent: the same {route, session} pair always
// yields the same decision.
type Guard struct {
	sess   Session
	routes []Route
	log    *slog.Logger
}

// New constructs a Guard over the given session. A nil routes slice uses
// DefaultRoutes.
func New(sess Session, routes []Route, log *slog.Logger) *Guard {
	if routes == nil {
		routes = DefaultRoutes()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Guard{sess: sess, routes: routes, log: log}
}

// Evaluate decides admission for a navigation to path.
//
// A session holding a credential without a resolved identity is settled first
// by awaiting FetchCurrentUser; that closes the reload-rehydration gap and,
// on a stale credential, clears the session before the admission check runs.
func (g *Guard) Evaluate(ctx context.Context, path string) Decision {
	if g.sess.Credential() != "" && !g.sess.HasIdentity() {
		g.sess.FetchCurrentUser(ctx)
	}

	route, known := match(g.routes, path)
	authenticated := g.sess.IsAuthenticated()

	switch {
	case known && route.RequiresAuth && !authenticated:
		d := Decision{Action: RedirectLogin, Target: loginRedirect(path)}
		g.log.Debug("guard.redirect_login", "path", path)
		return d

	case known && authenticated && (route.Name == RouteLogin || route.Name == RouteRegister):
		g.log.Debug("guard.redirect_home", "path", path)
		return Decision{Action: RedirectHome, Target: "/dashboard"}

	default:
		return Decision{Action: Allow}
	}
}

// loginRedirect builds the login target carrying the originally requested
// path as the redirect-back parameter.
func loginRedirect(requested string) string {
	q := url.Values{}
	q.Set("redirect", requested)
	return "/login?" + q.Encode()
}
