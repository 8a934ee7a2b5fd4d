package identity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// Integration tests are opt-in and require DSP_TEST_DATABASE_URL. They run
// against the shared schema, so every fixture uses unique identifiers.

func mustOpenTestStore(t *testing.T) (*PostgresStore, *pgxpool.Pool) {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("DSP_TEST_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: DSP_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, raw)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(pool.Close)

	s, err := NewPostgresStore(ctx, pool)
	if err != nil {
		t.Fatalf("new postgres store: %v", err)
	}
	return s, pool
}

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%s@example.com", prefix, strings.ToLower(ulid.Make().String()))
}

func TestPostgresStoreCreateAndConflicts(t *testing.T) {
	s, _ := mustOpenTestStore(t)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	email := uniqueEmail("pg-create")
	username := "pg_" + strings.ToLower(ulid.Make().String())

	u, err := s.CreateUser(ctx, CreateUserInput{
		Email:        email,
		Username:     username,
		PasswordHash: "x",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.ID == 0 || u.TokenVersion != 0 {
		t.Fatalf("unexpected created user: %+v", u)
	}

	_, err = s.CreateUser(ctx, CreateUserInput{
		Email:        strings.ToUpper(email),
		Username:     "other_" + username,
		PasswordHash: "x",
	})
	if !IsConflict(err) || ConflictField(err) != "email" {
		t.Fatalf("expected email conflict, got: %v", err)
	}

	_, err = s.CreateUser(ctx, CreateUserInput{
		Email:        uniqueEmail("pg-create2"),
		Username:     strings.ToUpper(username),
		PasswordHash: "x",
	})
	if !IsConflict(err) || ConflictField(err) != "username" {
		t.Fatalf("expected username conflict, got: %v", err)
	}

	got, err := s.GetByEmail(ctx, strings.ToUpper(email))
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("lookup returned id=%d want=%d", got.ID, u.ID)
	}
}

func TestPostgresStoreBalanceAndTokenVersion(t *testing.T) {
	s, _ := mustOpenTestStore(t)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	u, err := s.CreateUser(ctx, CreateUserInput{
		Email:        uniqueEmail("pg-balance"),
		Username:     "pgb_" + strings.ToLower(ulid.Make().String()),
		PasswordHash: "x",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	credited, err := s.AdjustBalance(ctx, u.ID, 10)
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if credited.Balance != 10 {
		t.Fatalf("balance=%v want=10", credited.Balance)
	}

	if _, err := s.AdjustBalance(ctx, u.ID, -20); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got: %v", err)
	}
	after, err := s.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if after.Balance != 10 {
		t.Fatalf("failed debit changed balance: %v", after.Balance)
	}

	v, err := s.BumpTokenVersion(ctx, u.ID)
	if err != nil {
		t.Fatalf("bump token version: %v", err)
	}
	if v != 1 {
		t.Fatalf("token version=%d want=1", v)
	}

	if err := s.UpdatePassword(ctx, u.ID, "y"); err != nil {
		t.Fatalf("update password: %v", err)
	}
	after, err = s.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if after.TokenVersion != 2 || after.PasswordHash != "y" {
		t.Fatalf("password update state: version=%d hash=%q", after.TokenVersion, after.PasswordHash)
	}
}
