package main

import (
	"context"
	"fmt"

	"permit_ingest_backend/internal/adapters/storage"
	"permit_ingest_backend/internal/leads/derive"
	"permit_ingest_backend/internal/leads/rules"
	"permit_ingest_backend/internal/permits/ingest"
	"permit_ingest_backend/internal/permits/service"
	"permit_ingest_backend/internal/permits/sources"
	"permit_ingest_backend/internal/store/postgres"
	"permit_ingest_backend/migrations"
	"permit_ingest_backend/platform/config"
	"permit_ingest_backend/platform/db"
	"permit_ingest_backend/platform/logger"
	"permit_ingest_backend/platform/validator"
)

// env is the pipeline wired against the configured database.
type env struct {
	cfg     *config.Config
	log     *logger.Logger
	runner  *ingest.Runner
	archive storage.RawArchive
	close   func()
}

func setup(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	log := logger.New(cfg.Env)

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.RunMigrations(ctx, pool, migrations.FS); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	leadRules, err := rules.Load(cfg.GetLeadRulesPath())
	if err != nil {
		pool.Close()
		return nil, err
	}
	registry, err := sources.NewRegistry(cfg, log)
	if err != nil {
		pool.Close()
		return nil, err
	}

	var archive storage.RawArchive
	if cfg.IsArchiveEnabled() {
		minioArchive, err := storage.NewMinIOArchive(cfg)
		if err != nil {
			pool.Close()
			return nil, err
		}
		archive = minioArchive
	}

	st := postgres.New(pool)
	permitSvc := service.New(st, derive.New(leadRules, validator.New(), log), log)
	return &env{
		cfg:     cfg,
		log:     log,
		runner:  ingest.New(registry, st, permitSvc, archive, nil, log),
		archive: archive,
		close:   pool.Close,
	}, nil
}
