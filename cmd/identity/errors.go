package identity

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the referenced user does not exist.
	ErrNotFound = errors.New("user not found")

	// ErrConflict is returned on an email/username uniqueness violation.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput is returned for malformed operation input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientBalance is returned when a debit would drive the
	// balance negative.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// ConflictError reports a uniqueness conflict for a specific logical field.
// Field is a stable name: "email" or "username".
type ConflictError struct {
	Op    string
	Field string
}

func (e ConflictError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %v", e.Op, ErrConflict)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrConflict, e.Field)
}

func (e ConflictError) Unwrap() error { return ErrConflict }

// IsConflict reports whether err represents ErrConflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// ConflictField extracts the conflicting field name, if known.
func ConflictField(err error) string {
	var ce ConflictError
	if errors.As(err, &ce) {
		return ce.Field
	}
	return ""
}

// IsNotFound reports whether err represents ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
