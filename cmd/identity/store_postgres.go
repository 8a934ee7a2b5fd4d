package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements identity persistence over PostgreSQL.
//
// The pgx pool is owned by the caller; this store must NOT close it.
// Unique violations are mapped to ConflictError with the offending field.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore and runs its migrations.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("identity: nil pool")
	}
	st := &PostgresStore{pool: pool}
	if err := st.migrate(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            BIGSERIAL PRIMARY KEY,
			email         TEXT NOT NULL,
			username      TEXT NOT NULL,
			password_hash TEXT NOT NULL DEFAULT '',
			avatar_url    TEXT NOT NULL DEFAULT '',
			balance       NUMERIC(12, 6) NOT NULL DEFAULT 0,
			token_version INTEGER NOT NULL DEFAULT 0,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT uq_users_email UNIQUE (email)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_users_username
		 ON users (lower(username))`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

const userColumns = `id, email, username, password_hash, avatar_url, balance, token_version, created_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.PasswordHash,
		&u.AvatarURL,
		&u.Balance,
		&u.TokenVersion,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

// CreateUser inserts a new account.
func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
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

	row := s.pool.QueryRow(ctx,
		`INSERT INTO users (email, username, password_hash, avatar_url, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+userColumns,
		email, username, in.PasswordHash, in.AvatarURL, now,
	)
	u, err := scanUser(row)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, err
	}
	return u, nil
}

// GetByID returns the user with the given id.
func (s *PostgresStore) GetByID(ctx context.Context, id int64) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail returns the user with the given email.
func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, NormalizeEmail(email)))
}

// UpdateProfile replaces username and email.
func (s *PostgresStore) UpdateProfile(ctx context.Context, id int64, username, email string) (User, error) {
	const op = "identity.UpdateProfile"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	email = NormalizeEmail(email)
	username = NormalizeUsername(username)
	if email == "" || username == "" {
		return User{}, ErrInvalidInput
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE users SET username = $1, email = $2 WHERE id = $3
		 RETURNING `+userColumns,
		username, email, id,
	)
	u, err := scanUser(row)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, err
	}
	return u, nil
}

// UpdatePassword replaces the hash and bumps the token version so that
// outstanding tokens stop verifying.
func (s *PostgresStore) UpdatePassword(ctx context.Context, id int64, newHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ct, err := s.pool.Exec(ctx,
		`UPDATE users SET password_hash = $1, token_version = token_version + 1 WHERE id = $2`,
		newHash, id,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// BumpTokenVersion invalidates outstanding tokens for the user.
func (s *PostgresStore) BumpTokenVersion(ctx context.Context, id int64) (int32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var ver int32
	err := s.pool.QueryRow(ctx,
		`UPDATE users SET token_version = token_version + 1 WHERE id = $1
		 RETURNING token_version`,
		id,
	).Scan(&ver)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return ver, nil
}

// AdjustBalance applies delta atomically. The row lock serializes concurrent
// adjustments so the non-negative check holds.
func (s *PostgresStore) AdjustBalance(ctx context.Context, id int64, delta float64) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return User{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var balance float64
	err = tx.QueryRow(ctx,
		`SELECT balance FROM users WHERE id = $1 FOR UPDATE`, id,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	if balance+delta < 0 {
		return User{}, ErrInsufficientBalance
	}

	u, err := scanUser(tx.QueryRow(ctx,
		`UPDATE users SET balance = balance + $1 WHERE id = $2
		 RETURNING `+userColumns,
		delta, id,
	))
	if err != nil {
		return User{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return User{}, err
	}
	return u, nil
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch {
	case strings.Contains(c, "username"):
		return "username", true
	case strings.Contains(c, "email"):
		return "email", true
	default:
		return "unique", true
	}
}
