// internal/enrich/worker.go
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/sync/errgroup"

	"github-issue-ranker/internal/database"
	"github-issue-ranker/internal/metrics"
)

// Store is the part of database.Querier the worker uses.
type Store interface {
	ListIssuesPendingEnrichment(ctx context.Context, arg database.ListIssuesPendingEnrichmentParams) ([]database.ListIssuesPendingEnrichmentRow, error)
	SetIssueAnalysis(ctx context.Context, arg database.SetIssueAnalysisParams) (int64, error)
	SetIssueEnrichmentError(ctx context.Context, arg database.SetIssueEnrichmentErrorParams) error
}

// Analyzer turns an issue description into analysis text.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (string, error)
}

// Options tunes a Worker.
type Options struct {
	Concurrency int
	Timeout     time.Duration
	BatchSize   int
	Interval    time.Duration
	RetryAfter  time.Duration
}

// Stats summarizes one enrichment pass.
type Stats struct {
	Attempted int
	Succeeded int
	Failed    int
	// Stale counts analyses dropped because the description changed mid-call.
	Stale int
}

type outcome int

const (
	outcomeSucceeded outcome = iota + 1
	outcomeFailed
	outcomeStale
)

// Worker enriches stored issues in the background, one task per issue id.
type Worker struct {
	store    Store
	analyzer Analyzer
	logger   *slog.Logger
	opts     Options
	wake     chan struct{}
	now      func() time.Time
}

// NewWorker creates a new Worker instance.
func NewWorker(store Store, analyzer Analyzer, logger *slog.Logger, opts Options) *Worker {
	return &Worker{
		store:    store,
		analyzer: analyzer,
		logger:   logger,
		opts:     opts,
		wake:     make(chan struct{}, 1),
		now:      time.Now,
	}
}

// Notify asks the worker to run a pass soon. It never blocks; calls made
// while a wake-up is already pending are merged.
func (w *Worker) Notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Start runs enrichment passes on every tick and every Notify until ctx is done.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Starting enrichment worker",
		"interval", w.opts.Interval.String(), "concurrency", w.opts.Concurrency, "batch_size", w.opts.BatchSize)
	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	w.runLogged(ctx)

	for {
		select {
		case <-ticker.C:
		case <-w.wake:
		case <-ctx.Done():
			w.logger.Info("Enrichment worker shutting down", "reason", ctx.Err())
			return
		}
		w.runLogged(ctx)
	}
}

func (w *Worker) runLogged(ctx context.Context) {
	stats, err := w.RunOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("Enrichment pass failed", "error", err)
		}
		return
	}
	if stats.Attempted > 0 {
		w.logger.Info("Enrichment pass finished",
			"attempted", stats.Attempted, "succeeded", stats.Succeeded, "failed", stats.Failed, "stale", stats.Stale)
	}
}

// RunOnce enriches one batch of pending issues. Failed calls are recorded
// per issue and never abort the batch; only store failures are returned.
func (w *Worker) RunOnce(ctx context.Context) (Stats, error) {
	rows, err := w.store.ListIssuesPendingEnrichment(ctx, database.ListIssuesPendingEnrichmentParams{
		RetryBefore: w.now().Add(-w.opts.RetryAfter),
		RowLimit:    int32(w.opts.BatchSize),
	})
	if err != nil {
		return Stats{}, fmt.Errorf("listing issues pending enrichment: %w", err)
	}
	if len(rows) == 0 {
		return Stats{}, nil
	}

	outcomes := make([]outcome, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.opts.Concurrency)
	for i, row := range rows {
		g.Go(func() error {
			o, err := w.enrichOne(gctx, row)
			outcomes[i] = o
			return err
		})
	}
	err = g.Wait()

	stats := Stats{Attempted: len(rows)}
	for _, o := range outcomes {
		switch o {
		case outcomeSucceeded:
			stats.Succeeded++
		case outcomeFailed:
			stats.Failed++
		case outcomeStale:
			stats.Stale++
		}
	}
	return stats, err
}

func (w *Worker) enrichOne(ctx context.Context, row database.ListIssuesPendingEnrichmentRow) (outcome, error) {
	callCtx, cancel := context.WithTimeout(ctx, w.opts.Timeout)
	defer cancel()

	metrics.EnrichmentInFlight.Inc()
	analysis, err := w.analyzer.Analyze(callCtx, row.Description.String)
	metrics.EnrichmentInFlight.Dec()

	if err != nil {
		metrics.EnrichmentCalls.WithLabelValues(metrics.OutcomeFailure).Inc()
		w.logger.Warn("Enrichment call failed", "issue_id", row.ID, "error", err)

		serr := w.store.SetIssueEnrichmentError(ctx, database.SetIssueEnrichmentErrorParams{
			ID:              row.ID,
			EnrichmentError: pgtype.Text{String: err.Error(), Valid: true},
		})
		if serr != nil {
			return outcomeFailed, fmt.Errorf("recording enrichment error for issue %d: %w", row.ID, serr)
		}
		return outcomeFailed, nil
	}
	metrics.EnrichmentCalls.WithLabelValues(metrics.OutcomeSuccess).Inc()

	updated, err := w.store.SetIssueAnalysis(ctx, database.SetIssueAnalysisParams{
		ID:          row.ID,
		LlmAnalysis: pgtype.Text{String: analysis, Valid: true},
		Description: row.Description,
	})
	if err != nil {
		return outcomeSucceeded, fmt.Errorf("storing analysis for issue %d: %w", row.ID, err)
	}
	if updated == 0 {
		w.logger.Debug("Issue changed during enrichment, discarding analysis", "issue_id", row.ID)
		return outcomeStale, nil
	}
	return outcomeSucceeded, nil
}

// Drain runs passes until nothing is pending, a pass makes no progress or
// ctx is done. The stats of completed passes are returned in every case.
func (w *Worker) Drain(ctx context.Context) (Stats, error) {
	var total Stats
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		stats, err := w.RunOnce(ctx)
		total.Attempted += stats.Attempted
		total.Succeeded += stats.Succeeded
		total.Failed += stats.Failed
		total.Stale += stats.Stale
		if err != nil || stats.Attempted == 0 || stats.Succeeded == 0 {
			return total, err
		}
	}
}
