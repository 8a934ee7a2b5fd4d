package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/icuxika/deepseek-api-open-platform-simulation/client/credfile"
	"github.com/icuxika/deepseek-api-open-platform-simulation/client/transport"
)

// Store is the process-wide session. It is constructed once by the
// application root and injected into everything that reads session state;
// there is no ambient global.
type Store struct {
	log  *slog.Logger
	rpc  *transport.Client
	cred credfile.Store

	// fetchSeq tags each identity resolution so a superseded result can be
	// discarded instead of clobbering a newer one.
	fetchSeq atomic.Uint64

	mu             sync.Mutex
	credential     string
	identity       *User
	apiKeys        []APIKey
	usageStats     UsageStats
	billingRecords []BillingRecord
	subscribers    []func(Snapshot)
}

// Snapshot is a consistent copy of the session state at one instant.
type Snapshot struct {
	Credential     string
	Identity       *User
	APIKeys        []APIKey
	UsageStats     UsageStats
	BillingRecords []BillingRecord
	Authenticated  bool
}

// Option configures optional Store dependencies.
type Option func(*options)

type options struct {
	transportOpts []transport.Option
}

// WithHTTPClient forwards a custom *http.Client to the transport (tests point
// it at an httptest server).
func WithHTTPClient(opt transport.Option) Option {
	return func(o *options) {
		if opt != nil {
			o.transportOpts = append(o.transportOpts, opt)
		}
	}
}

// New constructs a Store bound to the platform API at baseURL. The durable
// credential entry is read exactly once, here; a persisted token yields a
// session with a credential but no identity until the first guard pass or an
// explicit FetchCurrentUser resolves it.
func New(baseURL string, cred credfile.Store, log *slog.Logger, opts ...Option) *Store {
	if cred == nil {
		cred = credfile.NewMemStore()
	}
	if log == nil {
		log = slog.Default()
	}

	var o options
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&o)
	}

	s := &Store{log: log, cred: cred}
	s.rpc = transport.New(baseURL, s.Credential, o.transportOpts...)

	token, err := cred.Load()
	switch {
	case err == nil:
		s.credential = token
	case errors.Is(err, credfile.ErrNotFound):
		// Anonymous start.
	default:
		log.Warn("session.credential.load.fail", "err", err)
	}

	return s
}

// Credential returns the current bearer credential ("" when anonymous).
func (s *Store) Credential() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credential
}

// Identity returns a copy of the resolved identity, or nil.
func (s *Store) Identity() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return nil
	}
	u := *s.identity
	return &u
}

// HasIdentity reports whether an identity has been resolved.
func (s *Store) HasIdentity() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity != nil
}

// IsAuthenticated reports whether both credential and identity are present.
// A credential without a resolved identity counts as unauthenticated until
// FetchCurrentUser settles it.
func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credential != "" && s.identity != nil
}

// Snapshot returns a consistent copy of the whole session state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers an observer invoked after every visible mutation with a
// consistent snapshot. Observers must not call back into the Store's
// mutators from within the callback.
func (s *Store) Subscribe(fn func(Snapshot)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Credential:     s.credential,
		APIKeys:        append([]APIKey(nil), s.apiKeys...),
		UsageStats:     s.usageStats,
		BillingRecords: append([]BillingRecord(nil), s.billingRecords...),
		Authenticated:  s.credential != "" && s.identity != nil,
	}
	if s.identity != nil {
		u := *s.identity
		snap.Identity = &u
	}
	return snap
}

// notifyLocked captures the snapshot and subscriber list; the returned func
// must be called after the lock is released.
func (s *Store) notifyLocked() func() {
	snap := s.snapshotLocked()
	subs := append(([]func(Snapshot))(nil), s.subscribers...)
	return func() {
		for _, fn := range subs {
			fn(snap)
		}
	}
}

// SetCredential replaces the in-memory credential and the durable entry
// together. An empty token removes the durable entry. Persistence failures
// are logged, not surfaced: the in-memory credential is authoritative for the
// rest of the process lifetime.
func (s *Store) SetCredential(token string) {
	s.mu.Lock()
	s.credential = token
	s.persistCredentialLocked()
	notify := s.notifyLocked()
	s.mu.Unlock()
	notify()
}

func (s *Store) persistCredentialLocked() {
	if s.credential == "" {
		if err := s.cred.Clear(); err != nil {
			s.log.Warn("session.credential.clear.fail", "err", err)
		}
		return
	}
	if err := s.cred.Save(s.credential); err != nil {
		s.log.Warn("session.credential.save.fail", "err", err)
	}
}

// SetIdentity replaces the in-memory identity only. It never touches the
// credential or durable storage.
func (s *Store) SetIdentity(u *User) {
	s.mu.Lock()
	if u == nil {
		s.identity = nil
	} else {
		cp := *u
		s.identity = &cp
	}
	notify := s.notifyLocked()
	s.mu.Unlock()
	notify()
}

// applyAuth installs credential and identity in one step so no observer sees
// a token without its identity after a successful exchange.
func (s *Store) applyAuth(token string, u User) {
	s.mu.Lock()
	s.credential = token
	s.persistCredentialLocked()
	cp := u
	s.identity = &cp
	notify := s.notifyLocked()
	s.mu.Unlock()
	notify()
}

// Login exchanges email/password for a credential and identity, then runs the
// aggregated data load. On any failure the session is left unchanged and
// false is returned.
func (s *Store) Login(ctx context.Context, email, password string) bool {
	resp, err := s.apiLogin(ctx, email, password)
	if err != nil {
		s.log.Error("session.login.fail", "err", err)
		return false
	}

	s.applyAuth(resp.Token, resp.User)
	s.LoadUserData(ctx)
	return true
}

// Register creates an account and establishes the session. New accounts have
// no derived data yet, so no aggregated load runs.
func (s *Store) Register(ctx context.Context, email, username, password string) bool {
	resp, err := s.apiRegister(ctx, email, username, password)
	if err != nil {
		s.log.Error("session.register.fail", "err", err)
		return false
	}

	s.applyAuth(resp.Token, resp.User)
	return true
}

// FetchCurrentUser resolves the identity for the current credential. It is
// the self-healing path for a stale persisted token: a failed resolution
// performs a full logout. A resolution superseded by a newer one is discarded
// without touching session state.
func (s *Store) FetchCurrentUser(ctx context.Context) bool {
	if s.Credential() == "" {
		return false
	}

	seq := s.fetchSeq.Add(1)
	u, err := s.apiMe(ctx)

	if seq != s.fetchSeq.Load() {
		s.log.Debug("session.fetch_user.superseded", "seq", seq)
		return false
	}

	if err != nil {
		s.log.Error("session.fetch_user.fail", "err", err)
		s.Logout()
		return false
	}

	s.SetIdentity(&u)
	s.LoadUserData(ctx)
	return true
}

// LoadUserData refreshes API keys, usage stats, and billing records with
// three concurrent fetches. Each applies its own result the moment it
// resolves; a failure in one never blocks the others. Overall failure is
// logged and swallowed, so the account surface degrades to stale or empty
// data instead of blocking navigation.
func (s *Store) LoadUserData(ctx context.Context) {
	var g errgroup.Group

	g.Go(func() error {
		keys, err := s.apiListKeys(ctx)
		if err != nil {
			return fmt.Errorf("api keys: %w", err)
		}
		s.mu.Lock()
		s.apiKeys = keys
		notify := s.notifyLocked()
		s.mu.Unlock()
		notify()
		return nil
	})

	g.Go(func() error {
		stats, err := s.apiUsageStats(ctx)
		if err != nil {
			return fmt.Errorf("usage stats: %w", err)
		}
		s.mu.Lock()
		s.usageStats = stats
		notify := s.notifyLocked()
		s.mu.Unlock()
		notify()
		return nil
	})

	g.Go(func() error {
		records, err := s.apiBillingRecords(ctx)
		if err != nil {
			return fmt.Errorf("billing records: %w", err)
		}
		s.mu.Lock()
		s.billingRecords = records
		notify := s.notifyLocked()
		s.mu.Unlock()
		notify()
		return nil
	})

	if err := g.Wait(); err != nil {
		s.log.Error("session.load_user_data.fail", "err", err)
	}
}

// Logout clears identity, credential (including the durable entry), API keys,
// usage stats, and billing records in one step. No observer sees a partially
// cleared session.
func (s *Store) Logout() {
	s.mu.Lock()
	s.identity = nil
	s.credential = ""
	s.persistCredentialLocked()
	s.apiKeys = nil
	s.usageStats = UsageStats{}
	s.billingRecords = nil
	notify := s.notifyLocked()
	s.mu.Unlock()
	notify()
}

// ServerLogout tells the backend to invalidate the current token, then clears
// the local session. The server call is best effort: a failure still results
// in a local logout.
func (s *Store) ServerLogout(ctx context.Context) {
	if err := s.apiLogout(ctx); err != nil {
		s.log.Warn("session.server_logout.fail", "err", err)
	}
	s.Logout()
}

// UpdateBalance applies an optimistic local balance delta outside the main
// refresh cycle. No-op when no identity is resolved.
func (s *Store) UpdateBalance(delta float64) {
	s.mu.Lock()
	if s.identity == nil {
		s.mu.Unlock()
		return
	}
	s.identity.Balance += delta
	notify := s.notifyLocked()
	s.mu.Unlock()
	notify()
}

// CreateAPIKey mints a new key and appends it to the local list. On failure
// the list is unchanged, the error is logged, and the caller may retry.
func (s *Store) CreateAPIKey(ctx context.Context, name string) (*APIKey, error) {
	key, err := s.apiCreateKey(ctx, name)
	if err != nil {
		s.log.Error("session.create_api_key.fail", "err", err)
		return nil, err
	}

	s.mu.Lock()
	s.apiKeys = append(s.apiKeys, key)
	notify := s.notifyLocked()
	s.mu.Unlock()
	notify()
	return &key, nil
}

// DeleteAPIKey deletes a key on the backend and, only after the backend
// confirms, removes the matching entry locally. There is no optimistic
// removal: a failed call leaves the local list exactly as it was.
func (s *Store) DeleteAPIKey(ctx context.Context, id int64) error {
	if err := s.apiDeleteKey(ctx, id); err != nil {
		s.log.Error("session.delete_api_key.fail", "id", id, "err", err)
		return err
	}

	s.mu.Lock()
	for i, k := range s.apiKeys {
		if k.ID == id {
			s.apiKeys = append(s.apiKeys[:i], s.apiKeys[i+1:]...)
			break
		}
	}
	notify := s.notifyLocked()
	s.mu.Unlock()
	notify()
	return nil
}

// Recharge applies a recharge, then re-resolves the identity and re-runs the
// aggregated load so balance and billing history reflect the authoritative
// server state. This is a financial action; failures propagate to the caller
// and the local balance is never touched optimistically.
func (s *Store) Recharge(ctx context.Context, amount float64, paymentMethod string) error {
	if !s.IsAuthenticated() {
		return ErrNoIdentity
	}

	if _, err := s.apiRecharge(ctx, amount, paymentMethod); err != nil {
		return err
	}

	u, err := s.apiMe(ctx)
	if err != nil {
		return err
	}
	s.SetIdentity(&u)
	s.LoadUserData(ctx)
	return nil
}

// UpdateProfile replaces username/email and installs the returned identity.
func (s *Store) UpdateProfile(ctx context.Context, username, email string) error {
	if !s.IsAuthenticated() {
		return ErrNoIdentity
	}
	u, err := s.apiUpdateProfile(ctx, username, email)
	if err != nil {
		return err
	}
	s.SetIdentity(&u)
	return nil
}

// ChangePassword rotates the account password. The backend invalidates all
// outstanding tokens afterwards; the next identity resolution will self-heal
// the session into a logout, after which the user signs in again.
func (s *Store) ChangePassword(ctx context.Context, current, next string) error {
	if !s.IsAuthenticated() {
		return ErrNoIdentity
	}
	return s.apiChangePassword(ctx, current, next)
}

// OAuthAuthorizeURL returns the provider's authorization URL to open in a
// browser.
func (s *Store) OAuthAuthorizeURL(ctx context.Context, provider string) (string, error) {
	return s.apiOAuthAuthorizeURL(ctx, provider)
}

// OAuthCallback completes an OAuth code exchange. Like Login, it installs
// credential and identity together and then runs the aggregated load.
func (s *Store) OAuthCallback(ctx context.Context, provider, code, state string) error {
	resp, err := s.apiOAuthCallback(ctx, provider, code, state)
	if err != nil {
		return err
	}
	s.applyAuth(resp.Token, resp.User)
	s.LoadUserData(ctx)
	return nil
}

// OAuthBindings lists the linked third-party accounts.
func (s *Store) OAuthBindings(ctx context.Context) ([]OAuthBinding, error) {
	return s.apiOAuthBindings(ctx)
}

// UnbindOAuth removes a third-party account link.
func (s *Store) UnbindOAuth(ctx context.Context, provider string) error {
	return s.apiOAuthUnbind(ctx, provider)
}
