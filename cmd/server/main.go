package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"appshell/internal/kvstore"
	"appshell/internal/platform/config"
	"appshell/internal/platform/httpserver"
	"appshell/internal/platform/logger"
	"appshell/internal/platform/postgres"
	redisclient "appshell/internal/platform/redis"
	"appshell/internal/platform/sqlite"
	sessionmetrics "appshell/internal/session/metrics"
	"appshell/internal/session/service"
	httptransport "appshell/internal/transport/http"
	"appshell/pkg/platform/audit"
	"appshell/pkg/platform/audit/publishers/ops"
	auditmemory "appshell/pkg/platform/audit/store/memory"
)

const shutdownTimeout = 10 * time.Second

// main wires the session container, its storage backend and the bridge.
// Business logic lives in internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(os.Stdout)

	if err := run(cfg, log); err != nil {
		log.Error("appshell stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.closer.Close(); err != nil {
			log.Warn("closing storage backend", "error", err)
		}
	}()

	auditEvents := auditmemory.NewInMemoryStore(auditmemory.WithCapacity(cfg.Audit.Capacity))
	tracker := ops.NewTracker(auditEvents,
		ops.WithLogger(log),
		ops.WithSampler(auditSampler(cfg.Audit)),
		ops.WithMetrics(ops.NewMetrics(prometheus.DefaultRegisterer)),
	)
	defer tracker.Close()

	svc, err := service.New(store.kv,
		service.WithLogger(log),
		service.WithMetrics(sessionmetrics.New(prometheus.DefaultRegisterer)),
		service.WithOpsTracker(tracker),
		service.WithStorageKey(cfg.Session.StorageKey),
		service.WithWriteTimeout(cfg.Session.WriteTimeout),
	)
	if err != nil {
		return err
	}

	handler := httptransport.NewHandler(svc, log, httptransport.WithAuditLog(auditEvents))
	router := httptransport.NewRouter(handler, log, prometheus.DefaultGatherer, routerOptions(cfg.Bridge, store.health)...)
	srv := httpserver.New(cfg.Addr, router, cfg.Bridge)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting appshell bridge", "addr", cfg.Addr, "storage", cfg.Storage.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("bridge server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		hydrateCtx, cancel := context.WithTimeout(gctx, cfg.Session.HydrateTimeout)
		defer cancel()
		return svc.Init(hydrateCtx)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info("shutting down")
		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("graceful shutdown: %w", err))
		}
		if err := svc.Close(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("flush session: %w", err))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// backend is an opened KV store plus what the composition root needs to
// check and release it. health is nil for the memory and file backends.
type backend struct {
	kv     service.KVStore
	closer io.Closer
	health func(context.Context) error
}

// openStore builds the configured KV backend.
func openStore(ctx context.Context, cfg config.Server, log *slog.Logger) (backend, error) {
	switch cfg.Storage.Backend {
	case config.StorageMemory:
		log.Warn("memory storage selected; session will not survive a restart")
		return backend{kv: kvstore.NewMemory(), closer: nopCloser{}}, nil

	case config.StorageFile:
		store, err := kvstore.NewFile(cfg.Storage.DataDir)
		if err != nil {
			return backend{}, fmt.Errorf("open file storage: %w", err)
		}
		log.Info("using file storage", "path", store.Path())
		return backend{kv: store, closer: nopCloser{}}, nil

	case config.StorageRedis:
		client, err := redisclient.New(ctx, cfg.Redis)
		if err != nil {
			return backend{}, fmt.Errorf("connect redis: %w", err)
		}
		store := kvstore.NewRedis(client.Client, kvstore.WithKeyPrefix(cfg.Redis.KeyPrefix))
		return backend{kv: store, closer: client, health: client.Health}, nil

	case config.StoragePostgres:
		db, err := postgres.Open(ctx, cfg.DB)
		if err != nil {
			return backend{}, fmt.Errorf("connect postgres: %w", err)
		}
		store := kvstore.NewPostgres(db)
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return backend{}, fmt.Errorf("prepare postgres storage: %w", err)
		}
		return backend{kv: store, closer: db, health: store.Health}, nil

	case config.StorageSQLite:
		db, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return backend{}, fmt.Errorf("open sqlite storage: %w", err)
		}
		store := kvstore.NewSQLite(db)
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return backend{}, fmt.Errorf("prepare sqlite storage: %w", err)
		}
		log.Info("using sqlite storage", "path", cfg.Storage.SQLitePath)
		return backend{kv: store, closer: db, health: store.Health}, nil

	default:
		return backend{}, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func routerOptions(cfg config.BridgeConfig, health func(context.Context) error) []httptransport.RouterOption {
	var opts []httptransport.RouterOption
	if health != nil {
		opts = append(opts, httptransport.WithHealthCheck(health))
	}
	if cfg.RequestsPerSecond > 0 {
		burst := max(cfg.Burst, 1)
		opts = append(opts, httptransport.WithRateLimit(rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)))
	}
	return opts
}

// auditSampler keeps every ops event except onboarding_step_set, which is
// kept at cfg.StepSampleRate.
func auditSampler(cfg config.AuditConfig) *ops.Sampler {
	sampler := ops.NewSampler(1)
	sampler.SetRate(string(audit.EventOnboardingStepSet), cfg.StepSampleRate)
	return sampler
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
