// Command authd serves the authcore HTTP API backed by Redis and
// PostgreSQL.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/trackforge/authcore"
	"github.com/trackforge/authcore/internal/config"
	"github.com/trackforge/authcore/internal/httpapi"
	"github.com/trackforge/authcore/internal/storage/memory"
	"github.com/trackforge/authcore/internal/storage/postgres"
	promexport "github.com/trackforge/authcore/metrics/export/prometheus"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env, cfg.Log.Level)
	slog.SetDefault(log)
	log.Info("starting authd", slog.String("env", cfg.Env))

	if err := initSentry(cfg.Sentry.DSN, cfg.Env); err != nil {
		log.Error("sentry_init_failed", slog.String("err", err.Error()))
	}
	defer sentry.Flush(2 * time.Second)

	if err := run(cfg, log); err != nil {
		log.Error("authd_failed", slog.String("err", err.Error()))
		sentry.CaptureException(err)
		sentry.Flush(2 * time.Second)
		os.Exit(1)
	}

	log.Info("authd_stopped")
}

func run(cfg *config.Config, log *slog.Logger) error {
	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	rdb, err := newRedis(rootCtx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()
	log.Info("redis_connected")

	var (
		users authcore.UserRepository
		store *postgres.Storage
	)
	if cfg.DB.DatabaseURL != "" {
		dbCtx, dbCancel := context.WithTimeout(rootCtx, 10*time.Second)
		store, err = postgres.New(dbCtx, cfg.DB.DatabaseURL, cfg.DB.MaxConns)
		if err == nil && cfg.DB.Migrate {
			err = store.Migrate(dbCtx)
		}
		dbCancel()
		if err != nil {
			if store != nil {
				store.Close()
			}
			return err
		}
		defer store.Close()
		users = store
		log.Info("postgres_connected")
	} else {
		log.Warn("DATABASE_URL not set, using in-memory user repository")
		users = memory.NewUserRepository()
	}

	authCfg := cfg.ToAuthConfig()
	builder := authcore.New().
		WithConfig(authCfg).
		WithRedis(rdb).
		WithUserRepository(users).
		WithLogger(log)
	if authCfg.Audit.Enabled {
		builder = builder.WithAuditSink(authcore.NewSlogSink(log.With(slog.String("stream", "audit"))))
	}
	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		promexport.NewCollector(engine),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var ready atomic.Bool

	r := chi.NewRouter()
	r.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/healthz", healthHandler(&ready, rdb, store))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Mount("/", httpapi.NewRouter(engine, httpapi.Options{
		Logger:     log,
		LoginLimit: authCfg.RateLimit.LoginMaxRequests,
		APILimit:   authCfg.RateLimit.APIMaxRequests,
		TrustProxy: cfg.Security.TrustForwardedHeaders,
		Production: cfg.Env == config.EnvProd,
	}))

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("http_listen_start", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	ready.Store(true)

	select {
	case <-rootCtx.Done():
		log.Info("shutdown_requested")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	ready.Store(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_force_stop", slog.String("err", err.Error()))
		_ = srv.Close()
	}

	return nil
}

func newRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

func healthHandler(ready *atomic.Bool, rdb *redis.Client, store *postgres.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !ready.Load() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := rdb.Ping(ctx).Err(); err != nil {
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
		if store != nil {
			if err := store.Ping(ctx); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

func initSentry(dsn, env string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      env,
		AttachStacktrace: true,
	})
}

// setupLogger picks the handler by environment. level, when set, overrides
// the environment's default level.
func setupLogger(env, level string) *slog.Logger {
	var (
		lvl     slog.Level
		handler slog.Handler
	)

	switch env {
	case config.EnvProd:
		lvl = slog.LevelInfo
	default:
		lvl = slog.LevelDebug
	}
	if level != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
			lvl = slog.LevelInfo
		}
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch env {
	case config.EnvDev, config.EnvProd:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
