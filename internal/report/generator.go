// internal/report/generator.go
package report

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github-issue-ranker/internal/database"
	"github-issue-ranker/internal/metrics"
	"github-issue-ranker/internal/scoring"
)

// DB is satisfied by *pgxpool.Pool.
type DB interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Options tunes a Generator.
type Options struct {
	// Path is overwritten with the text report on every run. Empty disables the file.
	Path string
	Mode scoring.EngagementMode
}

type repoSnapshot struct {
	repo          database.Repository
	issues        []database.Issue
	commentCounts map[int64]int64
}

// snapshot is everything a report is built from, read in one transaction.
type snapshot struct {
	repos    []repoSnapshot
	statuses []database.SyncStatus
	pending  int64
}

// Generator builds reports from the store.
type Generator struct {
	db         DB
	newQuerier func(pgx.Tx) database.Querier
	logger     *slog.Logger
	opts       Options
	now        func() time.Time
}

// NewGenerator creates a new Generator instance.
func NewGenerator(db DB, logger *slog.Logger, opts Options) *Generator {
	return &Generator{
		db:         db,
		newQuerier: func(tx pgx.Tx) database.Querier { return database.New(tx) },
		logger:     logger,
		opts:       opts,
		now:        time.Now,
	}
}

// Generate scores and ranks every stored repository, writes the text
// report to the configured path and returns it.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	snap, err := g.readSnapshot(ctx)
	if err != nil {
		metrics.ReportsGenerated.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, fmt.Errorf("reading store snapshot: %w", err)
	}

	rep := g.build(snap)

	if g.opts.Path != "" {
		if err := writeFileAtomic(g.opts.Path, []byte(rep.Text())); err != nil {
			metrics.ReportsGenerated.WithLabelValues(metrics.OutcomeFailure).Inc()
			return nil, fmt.Errorf("writing report file: %w", err)
		}
	}

	outcome := metrics.OutcomeSuccess
	if rep.Degraded {
		outcome = metrics.OutcomeDegraded
	}
	metrics.ReportsGenerated.WithLabelValues(outcome).Inc()
	g.logger.Info("Repository report generated",
		"run_id", rep.RunID, "repos", len(rep.Entries), "degraded", rep.Degraded, "path", g.opts.Path)
	return rep, nil
}

// readSnapshot reads all report inputs inside one read-only repeatable-read transaction.
func (g *Generator) readSnapshot(ctx context.Context) (*snapshot, error) {
	tx, err := g.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	q := g.newQuerier(tx)

	repos, err := q.ListRepositories(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing repositories: %w", err)
	}

	snap := &snapshot{repos: make([]repoSnapshot, 0, len(repos))}
	for _, repo := range repos {
		issues, err := q.ListIssuesByRepo(ctx, repo.ID)
		if err != nil {
			return nil, fmt.Errorf("listing issues of %s: %w", repo.Name, err)
		}
		rs := repoSnapshot{repo: repo, issues: issues}

		if g.opts.Mode == scoring.EngagementComments {
			rows, err := q.ListCommentCountsByRepo(ctx, repo.ID)
			if err != nil {
				return nil, fmt.Errorf("counting comments of %s: %w", repo.Name, err)
			}
			rs.commentCounts = make(map[int64]int64, len(rows))
			for _, row := range rows {
				rs.commentCounts[row.IssueID] = row.CommentCount
			}
		}
		snap.repos = append(snap.repos, rs)
	}

	if snap.statuses, err = q.ListSyncStatus(ctx); err != nil {
		return nil, fmt.Errorf("listing sync status: %w", err)
	}
	if snap.pending, err = q.CountPendingEnrichment(ctx); err != nil {
		return nil, fmt.Errorf("counting pending enrichment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("could not commit transaction: %w", err)
	}
	return snap, nil
}

func (g *Generator) build(snap *snapshot) *Report {
	scores := make([]RepositoryScore, 0, len(snap.repos))
	for _, rs := range snap.repos {
		inputs := make([]scoring.IssueInput, 0, len(rs.issues))
		var analyses []string
		for _, issue := range rs.issues {
			inputs = append(inputs, toIssueInput(issue, rs.commentCounts[issue.ID]))
			if issue.LlmAnalysis.Valid && issue.LlmAnalysis.String != "" {
				analyses = append(analyses, issue.LlmAnalysis.String)
			}
		}

		scores = append(scores, RepositoryScore{
			Name:       rs.repo.Name,
			Stars:      int(rs.repo.Stars),
			Language:   rs.repo.Language,
			OpenIssues: int(rs.repo.IssueCount),
			Result:     scoring.Compute(inputs, g.opts.Mode),
			Analyses:   analyses,
		})
	}

	ranked := scoring.Rank(scores, func(s RepositoryScore) float64 { return s.Result.Score })
	warnings := warningsFor(snap)

	return &Report{
		RunID:       uuid.NewString(),
		GeneratedAt: g.now().UTC(),
		Entries:     Assemble(ranked),
		Degraded:    len(warnings) > 0,
		Warnings:    warnings,
	}
}

func toIssueInput(issue database.Issue, comments int64) scoring.IssueInput {
	in := scoring.IssueInput{
		Closed:       issue.Status == "closed",
		CreatedAt:    issue.CreatedAt,
		Description:  issue.Description.String,
		Analysis:     issue.LlmAnalysis.String,
		CommentCount: int(comments),
	}
	if issue.ClosedAt.Valid {
		t := issue.ClosedAt.Time
		in.ClosedAt = &t
	}
	return in
}

func warningsFor(snap *snapshot) []string {
	warnings := []string{}
	for _, st := range snap.statuses {
		switch {
		case st.LastError.Valid:
			warnings = append(warnings, fmt.Sprintf("last sync of %s at %s failed: %s",
				st.RepoName, st.LastAttemptAt.UTC().Format(time.RFC3339), st.LastError.String))
		case st.Partial:
			warnings = append(warnings, fmt.Sprintf("last sync of %s is incomplete: %d issues stored",
				st.RepoName, st.Stored))
		}
	}
	if snap.pending > 0 {
		warnings = append(warnings, fmt.Sprintf("%d issues have no analysis yet, clarity scores may be understated", snap.pending))
	}
	return warnings
}

// writeFileAtomic replaces path with data through a temp file and a rename,
// so readers see either the old report or the new one.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
