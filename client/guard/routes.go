package guard

import "strings"

// Route names used by admission decisions.
const (
	RouteLogin         = "login"
	RouteRegister      = "register"
	RouteOAuthCallback = "oauth-callback"
	RouteDashboard     = "dashboard"
)

// Route is one entry of the navigation surface.
type Route struct {
	Name         string
	Path         string
	RequiresAuth bool
}

// DefaultRoutes reproduces the platform's navigation surface: the
// pre-authentication entry points plus the authenticated layout views.
func DefaultRoutes() []Route {
	return []Route{
		{Name: RouteLogin, Path: "/login"},
		{Name: RouteRegister, Path: "/register"},
		{Name: RouteOAuthCallback, Path: "/oauth/callback/:provider"},

		{Name: RouteDashboard, Path: "/", RequiresAuth: true},
		{Name: RouteDashboard, Path: "/dashboard", RequiresAuth: true},
		{Name: "api-keys", Path: "/api-keys", RequiresAuth: true},
		{Name: "docs", Path: "/docs", RequiresAuth: true},
		{Name: "pricing", Path: "/pricing", RequiresAuth: true},
		{Name: "recharge", Path: "/recharge", RequiresAuth: true},
		{Name: "billing", Path: "/billing", RequiresAuth: true},
		{Name: "profile", Path: "/profile", RequiresAuth: true},
	}
}

// match resolves a request path against the table. Pattern segments starting
// with ':' match any single non-empty segment. The first match wins; an
// unmatched path yields ok == false.
func match(routes []Route, path string) (Route, bool) {
	want := splitPath(path)
	for _, r := range routes {
		if segmentsMatch(splitPath(r.Path), want) {
			return r, true
		}
	}
	return Route{}, false
}

func splitPath(p string) []string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func segmentsMatch(pattern, got []string) bool {
	if len(pattern) != len(got) {
		return false
	}
	for i, seg := range pattern {
		if strings.HasPrefix(seg, ":") {
			if got[i] == "" {
				return false
			}
			continue
		}
		if seg != got[i] {
			return false
		}
	}
	return true
}
