package identity

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemStore is the in-memory Store used when no database is configured and by
// tests. Semantics mirror PostgresStore, including field-level conflict
// reporting.
type MemStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*User
}

// NewMemStore constructs an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{nextID: 1, users: make(map[int64]*User)}
}

func (s *MemStore) conflictLocked(excludeID int64, email, username string) string {
	emailNorm := NormalizeEmail(email)
	userNorm := strings.ToLower(NormalizeUsername(username))
	for _, u := range s.users {
		if u.ID == excludeID {
			continue
		}
		if email != "" && NormalizeEmail(u.Email) == emailNorm {
			return "email"
		}
		if username != "" && strings.ToLower(u.Username) == userNorm {
			return "username"
		}
	}
	return ""
}

// CreateUser inserts a new account.
func (s *MemStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	email := NormalizeEmail(in.Email)
	username := NormalizeUsername(in.Username)
	if email == "" || username == "" {
		return User{}, ErrInvalidInput
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if field := s.conflictLocked(0, email, username); field != "" {
		return User{}, ConflictError{Op: op, Field: field}
	}

	u := User{
		ID:           s.nextID,
		Email:        email,
		Username:     username,
		PasswordHash: in.PasswordHash,
		AvatarURL:    in.AvatarURL,
		CreatedAt:    now,
	}
	s.nextID++
	s.users[u.ID] = &u

	cp := u
	return cp, nil
}

// GetByID returns the user with the given id.
func (s *MemStore) GetByID(ctx context.Context, id int64) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return *u, nil
}

// GetByEmail returns the user with the given email.
func (s *MemStore) GetByEmail(ctx context.Context, email string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	email = NormalizeEmail(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if NormalizeEmail(u.Email) == email {
			return *u, nil
		}
	}
	return User{}, ErrNotFound
}

// UpdateProfile replaces username and email.
func (s *MemStore) UpdateProfile(ctx context.Context, id int64, username, email string) (User, error) {
	const op = "identity.UpdateProfile"
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	email = NormalizeEmail(email)
	username = NormalizeUsername(username)
	if email == "" || username == "" {
		return User{}, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	if field := s.conflictLocked(id, email, username); field != "" {
		return User{}, ConflictError{Op: op, Field: field}
	}

	u.Email = email
	u.Username = username
	return *u, nil
}

// UpdatePassword replaces the hash and bumps the token version.
func (s *MemStore) UpdatePassword(ctx context.Context, id int64, newHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = newHash
	u.TokenVersion++
	return nil
}

// BumpTokenVersion invalidates outstanding tokens for the user.
func (s *MemStore) BumpTokenVersion(ctx context.Context, id int64) (int32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return 0, ErrNotFound
	}
	u.TokenVersion++
	return u.TokenVersion, nil
}

// AdjustBalance applies delta atomically.
func (s *MemStore) AdjustBalance(ctx context.Context, id int64, delta float64) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	next := u.Balance + delta
	if next < 0 {
		return User{}, ErrInsufficientBalance
	}
	u.Balance = next
	return *u, nil
}
