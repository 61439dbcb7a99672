package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"permit_ingest_backend/internal/adapters/storage"
	apphttp "permit_ingest_backend/internal/http"
	"permit_ingest_backend/internal/http/router"
	"permit_ingest_backend/internal/leads"
	"permit_ingest_backend/internal/leads/rules"
	"permit_ingest_backend/internal/outbox"
	"permit_ingest_backend/internal/permits"
	"permit_ingest_backend/internal/permits/sources"
	"permit_ingest_backend/internal/store/postgres"
	"permit_ingest_backend/migrations"
	"permit_ingest_backend/platform/config"
	"permit_ingest_backend/platform/db"
	"permit_ingest_backend/platform/logger"
	"permit_ingest_backend/platform/metrics"
	"permit_ingest_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if err := cfg.RequireDatabase(); err != nil {
		panic(err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if err := db.RunMigrations(ctx, pool, migrations.FS); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	st := postgres.New(pool)
	val := validator.New()
	ingestMetrics := metrics.New()

	leadRules, err := rules.Load(cfg.GetLeadRulesPath())
	if err != nil {
		log.Error("failed to load lead rules", "error", err)
		panic("failed to load lead rules: " + err.Error())
	}

	registry, err := sources.NewRegistry(cfg, log)
	if err != nil {
		log.Error("failed to build source registry", "error", err)
		panic("failed to build source registry: " + err.Error())
	}
	log.Info("sources configured", "sources", registry.Sources())

	archive := initArchive(ctx, cfg, log)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	leadsModule := leads.NewModule(st, leadRules, val, log)
	permitsModule := permits.NewModule(st, registry, leadsModule.Deriver(), archive, ingestMetrics, val, cfg.GetIngestRunTimeout(), log)
	outboxModule := outbox.NewModule(st, cfg, val, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:  cfg,
		Logger:  log,
		Health:  st,
		Metrics: ingestMetrics.Handler(),
		Modules: []apphttp.Module{
			permitsModule,
			leadsModule,
			outboxModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initArchive returns nil when MinIO is not configured; runs then skip archiving.
func initArchive(ctx context.Context, cfg *config.Config, log *logger.Logger) storage.RawArchive {
	if !cfg.IsArchiveEnabled() {
		log.Warn("MINIO_ENDPOINT not configured; raw batch archive disabled")
		return nil
	}

	archive, err := storage.NewMinIOArchive(cfg)
	if err != nil {
		log.Error("failed to initialize raw archive", "error", err)
		panic("failed to initialize raw archive: " + err.Error())
	}
	if err := withRetry(ctx, log, "ensure raw archive bucket", 5, 2*time.Second, func() error {
		return archive.EnsureBucketExists(ctx)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists", "error", err, "bucket", cfg.GetRawArchiveBucket())
		panic("failed to ensure storage bucket exists: " + err.Error())
	}
	log.Info("raw archive initialized", "bucket", cfg.GetRawArchiveBucket())
	return archive
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
