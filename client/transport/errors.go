package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrNoContent is returned when the caller expected a response body but the
	// server answered 204 (or an empty body). Callers that expect no payload
	// pass a nil destination and never see it.
	ErrNoContent = errors.New("no content")

	// ErrMalformedResponse is returned when a successful response body cannot
	// be decoded into the caller's destination. It keeps loosely-shaped server
	// output from leaking into typed session state.
	ErrMalformedResponse = errors.New("malformed response")
)

// Error is a classified non-2xx response.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("transport: request failed with status %d", e.Status)
	}
	return fmt.Sprintf("transport: %s (status %d)", e.Message, e.Status)
}

// IsStatus reports whether err is a transport Error with the given HTTP status.
func IsStatus(err error, status int) bool {
	var te *Error
	return errors.As(err, &te) && te.Status == status
}
