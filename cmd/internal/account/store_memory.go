package account

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemStore is the in-memory Store used when no database is configured and by
// tests.
type MemStore struct {
	mu         sync.Mutex
	nextKeyID  int64
	nextRecID  int64
	keys       map[int64]*APIKey
	usage      map[int64]*UsageStats
	records    map[int64][]BillingRecord
	bindings   map[int64]map[string]OAuthBinding
	byProvider map[string]int64 // provider + "\x00" + providerUserID -> userID
}

// NewMemStore constructs an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		nextKeyID:  1,
		nextRecID:  1,
		keys:       make(map[int64]*APIKey),
		usage:      make(map[int64]*UsageStats),
		records:    make(map[int64][]BillingRecord),
		bindings:   make(map[int64]map[string]OAuthBinding),
		byProvider: make(map[string]int64),
	}
}

func providerKey(provider, providerUserID string) string {
	return provider + "\x00" + providerUserID
}

// CreateKey mints a fresh secret for the user.
func (s *MemStore) CreateKey(ctx context.Context, userID int64, name string) (APIKey, error) {
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

	s.mu.Lock()
	defer s.mu.Unlock()

	k := APIKey{
		ID:        s.nextKeyID,
		UserID:    userID,
		Name:      name,
		Key:       secret,
		Status:    KeyStatusActive,
		CreatedAt: time.Now().UTC(),
	}
	s.nextKeyID++
	s.keys[k.ID] = &k
	return k, nil
}

// ListKeys returns the user's keys, newest first.
func (s *MemStore) ListKeys(ctx context.Context, userID int64) ([]APIKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []APIKey
	for _, k := range s.keys {
		if k.UserID == userID {
			out = append(out, *k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// DeleteKey removes a key the user owns.
func (s *MemStore) DeleteKey(ctx context.Context, userID, keyID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.keys[keyID]
	if !ok || k.UserID != userID {
		return ErrNotFound
	}
	delete(s.keys, keyID)
	return nil
}

// GetKeyBySecret resolves an API key by its secret value.
func (s *MemStore) GetKeyBySecret(ctx context.Context, secret string) (APIKey, error) {
	if err := ctx.Err(); err != nil {
		return APIKey{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range s.keys {
		if k.Key == secret {
			return *k, nil
		}
	}
	return APIKey{}, ErrNotFound
}

// TouchKeyLastUsed records a successful use of the key.
func (s *MemStore) TouchKeyLastUsed(ctx context.Context, keyID int64, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.keys[keyID]
	if !ok {
		return ErrNotFound
	}
	k.LastUsedAt = &now
	return nil
}

// UsageStats returns the user's counters.
func (s *MemStore) UsageStats(ctx context.Context, userID int64) (UsageStats, error) {
	if err := ctx.Err(); err != nil {
		return UsageStats{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.usage[userID]; ok {
		return *u, nil
	}
	return UsageStats{UserID: userID}, nil
}

// AddUsage accumulates one request's token counts.
func (s *MemStore) AddUsage(ctx context.Context, userID, promptTokens, completionTokens int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if userID <= 0 || promptTokens < 0 || completionTokens < 0 {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.usage[userID]
	if !ok {
		u = &UsageStats{UserID: userID}
		s.usage[userID] = u
	}
	u.PromptTokens += promptTokens
	u.CompletionTokens += completionTokens
	u.TotalTokens += promptTokens + completionTokens
	u.RequestCount++
	return nil
}

// ListRecords returns the user's billing ledger, newest first.
func (s *MemStore) ListRecords(ctx context.Context, userID int64) ([]BillingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.records[userID]
	out := make([]BillingRecord, len(recs))
	// Stored oldest first; reverse for newest-first listing.
	for i, r := range recs {
		out[len(recs)-1-i] = r
	}
	return out, nil
}

// InsertRecord appends a ledger entry.
func (s *MemStore) InsertRecord(ctx context.Context, rec BillingRecord) (BillingRecord, error) {
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

	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ID = s.nextRecID
	s.nextRecID++
	s.records[rec.UserID] = append(s.records[rec.UserID], rec)
	return rec, nil
}

// ListBindings returns the user's OAuth bindings.
func (s *MemStore) ListBindings(ctx context.Context, userID int64) ([]OAuthBinding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []OAuthBinding
	for _, b := range s.bindings[userID] {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out, nil
}

// UpsertBinding creates or refreshes a provider link.
func (s *MemStore) UpsertBinding(ctx context.Context, b OAuthBinding) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.UserID <= 0 || b.Provider == "" || b.ProviderUserID == "" {
		return ErrInvalidInput
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.bindings[b.UserID]
	if !ok {
		m = make(map[string]OAuthBinding)
		s.bindings[b.UserID] = m
	}
	if prev, ok := m[b.Provider]; ok {
		delete(s.byProvider, providerKey(prev.Provider, prev.ProviderUserID))
		b.CreatedAt = prev.CreatedAt
	}
	m[b.Provider] = b
	s.byProvider[providerKey(b.Provider, b.ProviderUserID)] = b.UserID
	return nil
}

// DeleteBinding removes a provider link.
func (s *MemStore) DeleteBinding(ctx context.Context, userID int64, provider string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.bindings[userID]
	b, ok := m[provider]
	if !ok {
		return ErrNotFound
	}
	delete(m, provider)
	delete(s.byProvider, providerKey(b.Provider, b.ProviderUserID))
	return nil
}

// FindBinding resolves the platform user bound to a provider identity.
func (s *MemStore) FindBinding(ctx context.Context, provider, providerUserID string) (OAuthBinding, error) {
	if err := ctx.Err(); err != nil {
		return OAuthBinding{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.byProvider[providerKey(provider, providerUserID)]
	if !ok {
		return OAuthBinding{}, ErrNotFound
	}
	b, ok := s.bindings[userID][provider]
	if !ok {
		return OAuthBinding{}, ErrNotFound
	}
	return b, nil
}
