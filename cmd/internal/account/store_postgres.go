package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements account persistence over PostgreSQL.
//
// The pgx pool is owned by the caller; this store must NOT close it.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore and runs its migrations.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("account: nil pool")
	}
	st := &PostgresStore{pool: pool}
	if err := st.migrate(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS api_keys (
			id           BIGSERIAL PRIMARY KEY,
			user_id      BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
			name         TEXT NOT NULL,
			key          TEXT NOT NULL,
			status       TEXT NOT NULL DEFAULT 'active',
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_used_at TIMESTAMPTZ,
			CONSTRAINT uq_api_keys_key UNIQUE (key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_api_keys_user ON api_keys (user_id)`,
		`CREATE TABLE IF NOT EXISTS usage_stats (
			user_id           BIGINT PRIMARY KEY REFERENCES users (id) ON DELETE CASCADE,
			total_tokens      BIGINT NOT NULL DEFAULT 0,
			prompt_tokens     BIGINT NOT NULL DEFAULT 0,
			completion_tokens BIGINT NOT NULL DEFAULT 0,
			request_count     BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS billing_records (
			id          BIGSERIAL PRIMARY KEY,
			user_id     BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
			type        TEXT NOT NULL,
			amount      NUMERIC(12, 6) NOT NULL,
			balance     NUMERIC(12, 6) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_billing_records_user ON billing_records (user_id, id DESC)`,
		`CREATE TABLE IF NOT EXISTS oauth_bindings (
			user_id           BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
			provider          TEXT NOT NULL,
			provider_user_id  TEXT NOT NULL,
			provider_username TEXT NOT NULL DEFAULT '',
			avatar_url        TEXT NOT NULL DEFAULT '',
			created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (user_id, provider),
			CONSTRAINT uq_oauth_bindings_identity UNIQUE (provider, provider_user_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

const keyColumns = `id, user_id, name, key, status, created_at, last_used_at`

func scanKey(row pgx.Row) (APIKey, error) {
	var k APIKey
	err := row.Scan(&k.ID, &k.UserID, &k.Name, &k.Key, &k.Status, &k.CreatedAt, &k.LastUsedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return APIKey{}, ErrNotFound
		}
		return APIKey{}, err
	}
	return k, nil
}

// CreateKey mints a fresh secret for the user.
func (s *PostgresStore) CreateKey(ctx context.Context, userID int64, name string) (APIKey, error) {
	if err := ctx.Err(); err != nil {
		return APIKey{}, err
	}
	name = strings.TrimSpace(name)
	if userID <= 0 || name == "" {
		return APIKey{}, ErrInvalidInput
	}

	secret, err := NewSecret()
	if err != nil {
		return APIKey{}, err
	}

	return scanKey(s.pool.QueryRow(ctx,
		`INSERT INTO api_keys (user_id, name, key, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+keyColumns,
		userID, name, secret, KeyStatusActive,
	))
}

// ListKeys returns the user's keys, newest first.
func (s *PostgresStore) ListKeys(ctx context.Context, userID int64) ([]APIKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+keyColumns+` FROM api_keys WHERE user_id = $1 ORDER BY id DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []APIKey
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// DeleteKey removes a key the user owns.
func (s *PostgresStore) DeleteKey(ctx context.Context, userID, keyID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ct, err := s.pool.Exec(ctx,
		`DELETE FROM api_keys WHERE id = $1 AND user_id = $2`, keyID, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetKeyBySecret resolves an API key by its secret value.
func (s *PostgresStore) GetKeyBySecret(ctx context.Context, secret string) (APIKey, error) {
	if err := ctx.Err(); err != nil {
		return APIKey{}, err
	}
	return scanKey(s.pool.QueryRow(ctx,
		`SELECT `+keyColumns+` FROM api_keys WHERE key = $1`, secret))
}

// TouchKeyLastUsed records a successful use of the key.
func (s *PostgresStore) TouchKeyLastUsed(ctx context.Context, keyID int64, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	ct, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = $1 WHERE id = $2`, now, keyID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UsageStats returns the user's counters, zero-valued when absent.
func (s *PostgresStore) UsageStats(ctx context.Context, userID int64) (UsageStats, error) {
	if err := ctx.Err(); err != nil {
		return UsageStats{}, err
	}
	u := UsageStats{UserID: userID}
	err := s.pool.QueryRow(ctx,
		`SELECT total_tokens, prompt_tokens, completion_tokens, request_count
		   FROM usage_stats WHERE user_id = $1`,
		userID,
	).Scan(&u.TotalTokens, &u.PromptTokens, &u.CompletionTokens, &u.RequestCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UsageStats{UserID: userID}, nil
		}
		return UsageStats{}, err
	}
	return u, nil
}

// AddUsage accumulates one request's token counts.
func (s *PostgresStore) AddUsage(ctx context.Context, userID, promptTokens, completionTokens int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if userID <= 0 || promptTokens < 0 || completionTokens < 0 {
		return ErrInvalidInput
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO usage_stats (user_id, total_tokens, prompt_tokens, completion_tokens, request_count)
		 VALUES ($1, $2 + $3, $2, $3, 1)
		 ON CONFLICT (user_id) DO UPDATE SET
		     total_tokens      = usage_stats.total_tokens + EXCLUDED.total_tokens,
		     prompt_tokens     = usage_stats.prompt_tokens + EXCLUDED.prompt_tokens,
		     completion_tokens = usage_stats.completion_tokens + EXCLUDED.completion_tokens,
		     request_count     = usage_stats.request_count + 1`,
		userID, promptTokens, completionTokens,
	)
	return err
}

const recordColumns = `id, user_id, type, amount, balance, description, created_at`

func scanRecord(row pgx.Row) (BillingRecord, error) {
	var r BillingRecord
	err := row.Scan(&r.ID, &r.UserID, &r.Type, &r.Amount, &r.Balance, &r.Description, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BillingRecord{}, ErrNotFound
		}
		return BillingRecord{}, err
	}
	return r, nil
}

// ListRecords returns the user's billing ledger, newest first.
func (s *PostgresStore) ListRecords(ctx context.Context, userID int64) ([]BillingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM billing_records WHERE user_id = $1 ORDER BY id DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BillingRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertRecord appends a ledger entry.
func (s *PostgresStore) InsertRecord(ctx context.Context, rec BillingRecord) (BillingRecord, error) {
	if err := ctx.Err(); err != nil {
		return BillingRecord{}, err
	}
	if rec.UserID <= 0 {
		return BillingRecord{}, ErrInvalidInput
	}
	if rec.Type != RecordTypeRecharge && rec.Type != RecordTypeUsage {
		return BillingRecord{}, ErrInvalidInput
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return scanRecord(s.pool.QueryRow(ctx,
		`INSERT INTO billing_records (user_id, type, amount, balance, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+recordColumns,
		rec.UserID, rec.Type, rec.Amount, rec.Balance, rec.Description, rec.CreatedAt,
	))
}

// ListBindings returns the user's OAuth bindings.
func (s *PostgresStore) ListBindings(ctx context.Context, userID int64) ([]OAuthBinding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, provider, provider_user_id, provider_username, avatar_url, created_at
		   FROM oauth_bindings WHERE user_id = $1 ORDER BY provider`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OAuthBinding
	for rows.Next() {
		var b OAuthBinding
		if err := rows.Scan(&b.UserID, &b.Provider, &b.ProviderUserID, &b.ProviderUsername, &b.AvatarURL, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// UpsertBinding creates or refreshes a provider link.
func (s *PostgresStore) UpsertBinding(ctx context.Context, b OAuthBinding) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.UserID <= 0 || b.Provider == "" || b.ProviderUserID == "" {
		return ErrInvalidInput
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO oauth_bindings (user_id, provider, provider_user_id, provider_username, avatar_url, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, provider) DO UPDATE SET
		     provider_user_id  = EXCLUDED.provider_user_id,
		     provider_username = EXCLUDED.provider_username,
		     avatar_url        = EXCLUDED.avatar_url`,
		b.UserID, b.Provider, b.ProviderUserID, b.ProviderUsername, b.AvatarURL, b.CreatedAt,
	)
	return err
}

// DeleteBinding removes a provider link.
func (s *PostgresStore) DeleteBinding(ctx context.Context, userID int64, provider string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ct, err := s.pool.Exec(ctx,
		`DELETE FROM oauth_bindings WHERE user_id = $1 AND provider = $2`,
		userID, provider)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FindBinding resolves the platform user bound to a provider identity.
func (s *PostgresStore) FindBinding(ctx context.Context, provider, providerUserID string) (OAuthBinding, error) {
	if err := ctx.Err(); err != nil {
		return OAuthBinding{}, err
	}
	var b OAuthBinding
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, provider, provider_user_id, provider_username, avatar_url, created_at
		   FROM oauth_bindings WHERE provider = $1 AND provider_user_id = $2`,
		provider, providerUserID,
	).Scan(&b.UserID, &b.Provider, &b.ProviderUserID, &b.ProviderUsername, &b.AvatarURL, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OAuthBinding{}, ErrNotFound
		}
		return OAuthBinding{}, err
	}
	return b, nil
}
