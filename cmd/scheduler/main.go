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
	"permit_ingest_backend/internal/leads/derive"
	"permit_ingest_backend/internal/leads/rules"
	"permit_ingest_backend/internal/permits/ingest"
	"permit_ingest_backend/internal/permits/service"
	"permit_ingest_backend/internal/permits/sources"
	"permit_ingest_backend/internal/scheduler"
	"permit_ingest_backend/internal/store/postgres"
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

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env, "queue", cfg.GetAsynqQueueName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	st := postgres.New(pool)
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

	var archive storage.RawArchive
	if cfg.IsArchiveEnabled() {
		minioArchive, err := storage.NewMinIOArchive(cfg)
		if err != nil {
			log.Error("failed to initialize raw archive", "error", err)
			panic("failed to initialize raw archive: " + err.Error())
		}
		archive = minioArchive
	}

	// Worker-side pipeline wiring (no HTTP handlers required).
	deriver := derive.New(leadRules, validator.New(), log)
	permitSvc := service.New(st, deriver, log)
	runner := ingest.New(registry, st, permitSvc, archive, ingestMetrics, log)

	if addr := cfg.GetMetricsAddr(); addr != "" {
		go serveMetrics(ctx, addr, ingestMetrics, log)
	}

	worker, err := scheduler.NewWorker(cfg, runner, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func serveMetrics(ctx context.Context, addr string, m *metrics.Ingest, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("metrics server stopped", "error", err)
	}
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
