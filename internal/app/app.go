// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github-issue-ranker/internal/config"
	"github-issue-ranker/internal/database"
	"github-issue-ranker/internal/enrich"
	"github-issue-ranker/internal/github"
	"github-issue-ranker/internal/report"
	"github-issue-ranker/internal/scoring"
	"github-issue-ranker/internal/syncer"
	"github-issue-ranker/migrations"
)

// App holds the long-lived components built from one Config.
type App struct {
	Pool    *pgxpool.Pool
	Syncer  *syncer.Syncer
	Reports *report.Generator
	// Worker is nil when enrichment is disabled.
	Worker *enrich.Worker
}

// New connects to the database, applies migrations and wires every component.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	pool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	logger.Info("Database connection established")

	if err := RunMigrations(cfg.DBURL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	logger.Info("Database migrations applied successfully")

	a, err := build(pool, cfg, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return a, nil
}

func build(pool *pgxpool.Pool, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Pool: pool}

	var notifier syncer.Notifier
	if cfg.EnrichmentEnabled() {
		client := enrich.NewClient(cfg.LLMBaseURL, cfg.LLMModel, cfg.LLMAPIKey, cfg.EnrichTimeout)
		a.Worker = enrich.NewWorker(database.New(pool), client, logger, enrich.Options{
			Concurrency: cfg.EnrichConcurrency,
			Timeout:     cfg.EnrichTimeout,
			BatchSize:   cfg.EnrichBatchSize,
			Interval:    cfg.EnrichInterval,
			RetryAfter:  cfg.EnrichRetryAfter,
		})
		notifier = a.Worker
	} else {
		logger.Warn("LLM_API_KEY is not set, issue enrichment is disabled")
	}

	ghClient := github.NewClient(cfg.GithubToken, cfg.MaxPages, logger)
	if cfg.GithubAPIURL != "" {
		if err := ghClient.SetBaseURL(cfg.GithubAPIURL); err != nil {
			return nil, fmt.Errorf("invalid GITHUB_API_URL: %w", err)
		}
	}
	s, err := syncer.NewSyncer(pool, ghClient, notifier, logger, syncer.Options{
		Repos:            cfg.ReposToSync,
		Interval:         cfg.SyncInterval,
		Concurrency:      cfg.SyncConcurrency,
		FetchComments:    cfg.FetchComments,
		BackfillMetadata: cfg.BackfillMetadata,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create syncer: %w", err)
	}
	a.Syncer = s

	a.Reports = report.NewGenerator(pool, logger, report.Options{
		Path: cfg.ReportPath,
		Mode: scoring.EngagementMode(cfg.EngagementMode),
	})
	return a, nil
}

// Close releases the database pool.
func (a *App) Close() {
	a.Pool.Close()
}

// RunMigrations applies every embedded migration that has not run yet.
func RunMigrations(dbURL string) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// SetLogLevel maps a LOG_LEVEL value onto v. Unknown values mean info.
func SetLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
