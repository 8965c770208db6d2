// cmd/report/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github-issue-ranker/internal/app"
	"github-issue-ranker/internal/config"
	"github-issue-ranker/internal/enrich"
	"github-issue-ranker/internal/report"
	"github-issue-ranker/internal/syncer"
)

// generateTimeout bounds report generation. It is not taken out of
// REPORT_DEADLINE, so a slow sync or drain still ends in a report.
const generateTimeout = time.Minute

type cycleRunner interface {
	RunCycle(ctx context.Context) []syncer.Result
}

type drainer interface {
	Drain(ctx context.Context) (enrich.Stats, error)
}

type reportGenerator interface {
	Generate(ctx context.Context) (*report.Report, error)
}

// pipeline is one sync, enrich and report pass.
type pipeline struct {
	syncer  cycleRunner
	drainer drainer // nil when enrichment is disabled
	reports reportGenerator
	logger  *slog.Logger

	deadline      time.Duration
	drainDeadline time.Duration
}

func main() {
	if err := run(); err != nil {
		slog.Error("Report run failed", "error", err)
		os.Exit(1)
	}
}

// run syncs every configured repository once, enriches what it can and
// prints the resulting report.
func run() error {
	logLevel := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	app.SetLogLevel(cfg.LogLevel, logLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	startCtx, cancelStart := context.WithTimeout(ctx, cfg.ReportDeadline)
	a, err := app.New(startCtx, cfg, logger)
	cancelStart()
	if err != nil {
		return err
	}
	defer a.Close()

	p := pipeline{
		syncer:        a.Syncer,
		reports:       a.Reports,
		logger:        logger,
		deadline:      cfg.ReportDeadline,
		drainDeadline: cfg.DrainDeadline,
	}
	if a.Worker != nil {
		p.drainer = a.Worker
	}

	rep, err := p.run(ctx)
	if err != nil {
		return err
	}

	fmt.Println(rep.Text())
	if rep.Degraded {
		logger.Warn("Report is degraded", "warnings", rep.Warnings)
	}
	return nil
}

// run bounds sync and enrichment by the run deadline and the drain by its
// own deadline, then generates the report from whatever the store holds.
func (p pipeline) run(ctx context.Context) (*report.Report, error) {
	workCtx, cancelWork := context.WithTimeout(ctx, p.deadline)
	defer cancelWork()

	for _, res := range p.syncer.RunCycle(workCtx) {
		p.logger.Info("Repository sync result",
			"repo", res.Repo, "fetched", res.Fetched, "stored", res.Stored, "partial", res.Partial, "error", res.Err)
	}

	if p.drainer != nil {
		drainCtx, cancelDrain := context.WithTimeout(workCtx, p.drainDeadline)
		stats, err := p.drainer.Drain(drainCtx)
		cancelDrain()
		if err != nil {
			p.logger.Warn("Enrichment stopped early, report will show partial insights", "error", err)
		}
		p.logger.Info("Enrichment finished",
			"attempted", stats.Attempted, "succeeded", stats.Succeeded, "failed", stats.Failed)
	}

	genCtx, cancelGen := context.WithTimeout(ctx, generateTimeout)
	defer cancelGen()
	rep, err := p.reports.Generate(genCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate report: %w", err)
	}
	return rep, nil
}
