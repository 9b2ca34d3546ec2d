// Package app wires the sole server runtime: config, logging, metrics, the
// session authority, and the revocation push gateway.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"sole/cmd/identity"
	authapi "sole/cmd/internal/auth/api"
	"sole/cmd/internal/auth/session"
	"sole/cmd/internal/push"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App owns the HTTP server wiring and the background sweep lifecycle.
type App struct {
	cfg Config
	log Logger

	dbPool    *pgxpool.Pool
	dbEnabled bool

	sessions *session.Service
	sweeper  *session.Sweeper

	auth    *authapi.Handler
	gateway *push.Gateway

	registry *prometheus.Registry
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}

	var (
		pool      *pgxpool.Pool
		dbEnabled bool
		store     session.Store
		verifier  identity.Verifier
	)

	if cfg.DatabaseURL != "" {
		pool, err = NewDBPool(context.Background(), cfg)
		if err != nil {
			return nil, err
		}
		dbEnabled = true
		store = session.NewPostgresStore(pool)

		verifier, err = identity.NewPostgresVerifier(pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("db.enabled.postgres_store")
	} else {
		store = session.NewMemoryStore()

		verifier, err = identity.NewMemoryVerifier(cfg.DevUsers)
		if err != nil {
			return nil, err
		}
		log.Info("db.disabled.inmemory_store", "dev_users", len(cfg.DevUsers))
	}

	bus := push.NewBus()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := NewMetrics(registry, bus.Dropped)

	sessions := session.NewService(sessCfg, store, bus)

	auth, err := authapi.NewHandler(log, authapi.LoadConfigFromEnv(), sessCfg, verifier, sessions, authapi.WithMetrics(metrics))
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, err
	}

	return &App{
		cfg:       cfg,
		log:       log,
		dbPool:    pool,
		dbEnabled: dbEnabled,
		sessions:  sessions,
		sweeper:   session.NewSweeper(log, sessions, sessCfg.SweepEvery, metrics.RecordSweep),
		auth:      auth,
		gateway:   push.NewGateway(log, bus, sessions),
		registry:  registry,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or a fatal
// server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.auth, a.gateway, a.registry)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.sweeper.Start(ctx)

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
		a.sweeper.Stop()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		a.sweeper.Stop()
		return err
	}

	a.sweeper.Stop()

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
