// Package credfile persists the session's bearer credential across process
// restarts. One durable entry exists per installation; only the session
// store's credential mutators write it, and it is read once at session
// construction.
package credfile

import "errors"

// ErrNotFound is returned by Load when no credential has been persisted.
var ErrNotFound = errors.New("credential not found")

// Store is the durable credential boundary.
type Store interface {
	// Load returns the persisted credential, or ErrNotFound when absent.
	Load() (string, error)

	// Save replaces the persisted credential.
	Save(token string) error

	// Clear removes the persisted credential. Clearing an absent entry is
	// not an error.
	Clear() error
}
