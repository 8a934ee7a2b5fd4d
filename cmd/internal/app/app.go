// Package app wires the platform server runtime: config, logging, metrics,
// stores, and HTTP routes.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/icuxika/deepseek-api-open-platform-simulation/cmd/identity"
	"github.com/icuxika/deepseek-api-open-platform-simulation/cmd/internal/account"
	"github.com/icuxika/deepseek-api-open-platform-simulation/cmd/internal/oauth"
	"github.com/icuxika/deepseek-api-open-platform-simulation/cmd/internal/platformapi"
	"github.com/icuxika/deepseek-api-open-platform-simulation/cmd/security/token"
)

// App is the platform server runtime.
type App struct {
	cfg Config
	log Logger

	dbPool    *pgxpool.Pool
	dbEnabled bool

	metrics *Metrics
	api     *platformapi.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	users, accounts, dbPool, dbEnabled, err := newStores(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	tokens, err := token.NewManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	if err != nil {
		if dbPool != nil {
			dbPool.Close()
		}
		return nil, err
	}

	providers := oauth.Registry{}
	if cfg.Gitee.Enabled() {
		providers[oauth.ProviderGitee] = oauth.NewGitee(cfg.Gitee)
	}
	if cfg.GitHub.Enabled() {
		providers[oauth.ProviderGitHub] = oauth.NewGitHub(cfg.GitHub)
	}

	api, err := platformapi.NewHandler(log, users, accounts, tokens, providers)
	if err != nil {
		if dbPool != nil {
			dbPool.Close()
		}
		return nil, err
	}

	return &App{
		cfg:       cfg,
		log:       log,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		metrics:   NewMetrics(),
		api:       api,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal
// server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.metrics, a.api)

	var handler http.Handler = mux
	handler = WithCORS(handler, a.cfg.CORSOrigins)
	handler = a.metrics.WithHTTPMetrics(handler)
	handler = WithRequestLogging(handler, a.log)
	handler = WithRequestID(handler)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if a.dbPool != nil {
		a.dbPool.Close()
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newStores decides between Postgres-backed persistence and in-memory dev
// stores. The app owns the pool lifecycle.
func newStores(ctx context.Context, cfg Config, log Logger) (identity.Store, account.Store, *pgxpool.Pool, bool, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return identity.NewMemStore(), account.NewMemStore(), nil, false, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, nil, false, err
	}

	users, err := identity.NewPostgresStore(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, nil, false, err
	}
	accounts, err := account.NewPostgresStore(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, nil, false, err
	}

	log.Info("db.enabled.postgres_store")
	return users, accounts, pool, true, nil
}
