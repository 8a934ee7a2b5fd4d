package identity

import "strings"

// NormalizeEmail performs case-insensitive canonicalization for lookups and
// uniqueness checks.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeUsername trims surrounding whitespace. Usernames stay
// case-sensitive for display; uniqueness is enforced case-insensitively in
// the store.
func NormalizeUsername(s string) string {
	return strings.TrimSpace(s)
}
