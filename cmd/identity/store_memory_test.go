package identity

import (
	"context"
	"errors"
	"testing"
)

func seedUser(t *testing.T, s *MemStore, email, username string) User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), CreateUserInput{
		Email:        email,
		Username:     username,
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g",
	})
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", email, err)
	}
	return u
}

func TestMemStoreCreateAndGet(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	u := seedUser(t, s, "Alice@Example.com", "alice")
	if u.ID == 0 {
		t.Fatal("CreateUser assigned zero id")
	}
	if u.Email != "alice@example.com" {
		t.Fatalf("email not normalized: %q", u.Email)
	}
	if u.Balance != 0 || u.TokenVersion != 0 {
		t.Fatalf("fresh user has balance=%v version=%d", u.Balance, u.TokenVersion)
	}

	got, err := s.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Email != u.Email || got.Username != u.Username {
		t.Fatalf("GetByID mismatch: %+v", got)
	}

	got, err = s.GetByEmail(ctx, "ALICE@example.COM")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("GetByEmail returned id %d, want %d", got.ID, u.ID)
	}

	if _, err := s.GetByID(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByID(9999) err = %v, want ErrNotFound", err)
	}
}

func TestMemStoreConflicts(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	seedUser(t, s, "alice@example.com", "alice")

	_, err := s.CreateUser(ctx, CreateUserInput{Email: "alice@example.com", Username: "other"})
	if !IsConflict(err) || ConflictField(err) != "email" {
		t.Fatalf("duplicate email err = %v (field %q)", err, ConflictField(err))
	}

	_, err = s.CreateUser(ctx, CreateUserInput{Email: "bob@example.com", Username: "ALICE"})
	if !IsConflict(err) || ConflictField(err) != "username" {
		t.Fatalf("duplicate username err = %v (field %q)", err, ConflictField(err))
	}

	bob := seedUser(t, s, "bob@example.com", "bob")
	_, err = s.UpdateProfile(ctx, bob.ID, "alice", "bob@example.com")
	if !IsConflict(err) || ConflictField(err) != "username" {
		t.Fatalf("UpdateProfile conflict err = %v (field %q)", err, ConflictField(err))
	}
}

func TestMemStoreUpdateProfile(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	u := seedUser(t, s, "alice@example.com", "alice")
	got, err := s.UpdateProfile(ctx, u.ID, "alice2", "Alice2@Example.com")
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if got.Username != "alice2" || got.Email != "alice2@example.com" {
		t.Fatalf("UpdateProfile result: %+v", got)
	}

	if _, err := s.UpdateProfile(ctx, u.ID, "", "alice2@example.com"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty username err = %v, want ErrInvalidInput", err)
	}
}

func TestMemStoreTokenVersion(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	u := seedUser(t, s, "alice@example.com", "alice")

	v, err := s.BumpTokenVersion(ctx, u.ID)
	if err != nil || v != 1 {
		t.Fatalf("BumpTokenVersion = %d, %v; want 1, nil", v, err)
	}

	if err := s.UpdatePassword(ctx, u.ID, "newhash"); err != nil {
		t.Fatalf("UpdatePassword: %v", err)
	}
	got, err := s.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.PasswordHash != "newhash" {
		t.Fatalf("password hash not replaced: %q", got.PasswordHash)
	}
	if got.TokenVersion != 2 {
		t.Fatalf("token version = %d after password change, want 2", got.TokenVersion)
	}

	if _, err := s.BumpTokenVersion(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("BumpTokenVersion(9999) err = %v, want ErrNotFound", err)
	}
}

func TestMemStoreAdjustBalance(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	u := seedUser(t, s, "alice@example.com", "alice")

	got, err := s.AdjustBalance(ctx, u.ID, 10)
	if err != nil || got.Balance != 10 {
		t.Fatalf("credit: balance = %v, err = %v", got.Balance, err)
	}

	got, err = s.AdjustBalance(ctx, u.ID, -2.5)
	if err != nil || got.Balance != 7.5 {
		t.Fatalf("debit: balance = %v, err = %v", got.Balance, err)
	}

	if _, err := s.AdjustBalance(ctx, u.ID, -100); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("overdraft err = %v, want ErrInsufficientBalance", err)
	}
	got, err = s.GetByID(ctx, u.ID)
	if err != nil || got.Balance != 7.5 {
		t.Fatalf("balance after failed debit = %v, err = %v; want 7.5", got.Balance, err)
	}
}
