package session

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPayload is returned when a backend response decodes but fails
	// session-level validation (unknown enum value, missing required field).
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrNoIdentity is returned by operations that require a resolved
	// identity (profile mutation, recharge) when the session has none.
	ErrNoIdentity = errors.New("no identity")
)

// PayloadError names the field group that failed validation.
type PayloadError struct {
	Shape string
	Msg   string
}

func (e PayloadError) Error() string {
	return fmt.Sprintf("%s: %v: %s", e.Shape, ErrInvalidPayload, e.Msg)
}

func (e PayloadError) Unwrap() error { return ErrInvalidPayload }

func invalidPayload(shape, msg string) error {
	return PayloadError{Shape: shape, Msg: msg}
}
