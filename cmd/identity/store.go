package identity

import (
	"context"
	"time"
)

// User is the platform's canonical account record.
type User struct {
	ID       int64
	Email    string
	Username string

	// PasswordHash is empty for accounts created through an OAuth provider
	// that never set a password.
	PasswordHash string

	AvatarURL string
	Balance   float64

	// TokenVersion invalidates outstanding bearer tokens when bumped
	// (logout, password change).
	TokenVersion int32

	CreatedAt time.Time
}

// CreateUserInput describes a registration. PasswordHash may be empty for
// OAuth-originated accounts.
type CreateUserInput struct {
	Email        string
	Username     string
	PasswordHash string
	AvatarURL    string
	Now          time.Time
}

// Store is the identity persistence boundary.
type Store interface {
	// CreateUser inserts a new account. Email and username collisions yield
	// a ConflictError naming the field.
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)

	GetByID(ctx context.Context, id int64) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)

	// UpdateProfile replaces username and email, enforcing uniqueness.
	UpdateProfile(ctx context.Context, id int64, username, email string) (User, error)

	// UpdatePassword replaces the password hash and bumps the token
	// version, invalidating every outstanding bearer token.
	UpdatePassword(ctx context.Context, id int64, newHash string) error

	// BumpTokenVersion invalidates outstanding tokens (logout-everywhere).
	BumpTokenVersion(ctx context.Context, id int64) (int32, error)

	// AdjustBalance atomically applies delta to the user's balance and
	// returns the updated user. A debit below zero fails with
	// ErrInsufficientBalance and leaves the balance unchanged.
	AdjustBalance(ctx context.Context, id int64, delta float64) (User, error)
}
