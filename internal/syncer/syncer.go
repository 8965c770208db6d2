// internal/syncer/syncer.go
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github-issue-ranker/internal/database"
	custom_errors "github-issue-ranker/internal/errors"
	"github-issue-ranker/internal/model"
)

const (
	// Number of repositories to sync in parallel when Options.Concurrency is unset
	defaultConcurrency = 5
)

// IssueSource is the part of the GitHub client the syncer depends on.
type IssueSource interface {
	FetchAllIssues(ctx context.Context, owner, name string) ([]model.SourceIssue, error)
	ListComments(ctx context.Context, owner, name string, number int) ([]model.SourceComment, error)
	GetRepository(ctx context.Context, owner, name string) (*model.RepositoryMetadata, error)
}

// Notifier is woken whenever new issues were stored.
type Notifier interface {
	Notify()
}

// DB is satisfied by *pgxpool.Pool.
type DB interface {
	database.DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Options tunes a Syncer.
type Options struct {
	Repos            []string
	Interval         time.Duration
	Concurrency      int
	FetchComments    bool
	BackfillMetadata bool
}

// Result describes one repository sync.
type Result struct {
	Repo     string
	Fetched  int
	Stored   int
	Comments int
	Partial  bool
	Err      error
}

// Syncer orchestrates the fetching and storing of data.
type Syncer struct {
	db         DB
	queries    database.Querier
	newQuerier func(pgx.Tx) database.Querier
	source     IssueSource
	notifier   Notifier
	logger     *slog.Logger
	repos      []model.RepoIdentifier
	opts       Options
}

// NewSyncer creates a new Syncer instance. notifier may be nil.
func NewSyncer(db DB, source IssueSource, notifier Notifier, logger *slog.Logger, opts Options) (*Syncer, error) {
	parsedRepos, err := parseRepoIdentifiers(opts.Repos)
	if err != nil {
		return nil, err
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = defaultConcurrency
	}

	return &Syncer{
		db:         db,
		queries:    database.New(db),
		newQuerier: func(tx pgx.Tx) database.Querier { return database.New(tx) },
		source:     source,
		notifier:   notifier,
		logger:     logger,
		repos:      parsedRepos,
		opts:       opts,
	}, nil
}

// Start begins the continuous synchronization process.
func (s *Syncer) Start(ctx context.Context) {
	s.logger.Info("Starting syncer", "interval", s.opts.Interval.String(), "concurrency", s.opts.Concurrency)
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	s.RunCycle(ctx) // Initial sync

	for {
		select {
		case <-ticker.C:
			s.RunCycle(ctx)
		case <-ctx.Done():
			s.logger.Info("Syncer shutting down", "reason", ctx.Err())
			return
		}
	}
}

// RunCycle performs a synchronization pass for all configured repositories concurrently.
// Results are returned in configuration order.
func (s *Syncer) RunCycle(ctx context.Context) []Result {
	s.logger.Info("Starting new sync cycle", "repos", len(s.repos))
	results := make([]Result, len(s.repos))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	for i, repoID := range s.repos {
		g.Go(func() error {
			if gctx.Err() != nil {
				results[i] = Result{Repo: repoID.FullName(), Err: gctx.Err()}
				return nil
			}
			res, err := s.SyncRepo(gctx, repoID)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("Failed to sync repository", "owner", repoID.Owner, "repo", repoID.Name, "error", err)
			}
			results[i] = res
			return nil
		})
	}

	_ = g.Wait()
	s.logger.Info("Sync cycle finished")
	return results
}

// SyncRepo fetches, stores and records the status of a single repository.
// A partial fetch is not an error: whatever was fetched is stored and the
// status row is flagged. The returned error is the persistence failure, if any.
func (s *Syncer) SyncRepo(ctx context.Context, id model.RepoIdentifier) (Result, error) {
	logger := s.logger.With("repo", id.FullName())
	logger.Info("Syncing repository")

	issues, fetchErr := s.source.FetchAllIssues(ctx, id.Owner, id.Name)
	res := Result{Repo: id.FullName(), Fetched: len(issues), Partial: fetchErr != nil}
	if fetchErr != nil {
		logger.Warn("Issue fetch stopped early, continuing with partial set", "fetched", len(issues), "error", fetchErr)
	}

	if fetchErr != nil && len(issues) == 0 {
		res.Err = fetchErr
		s.recordStatus(ctx, res)
		return res, nil
	}

	batch := Batch{RepoName: id.FullName(), Issues: issues}
	if s.opts.BackfillMetadata {
		meta, err := s.source.GetRepository(ctx, id.Owner, id.Name)
		if err != nil {
			logger.Warn("Could not fetch repository metadata, keeping placeholders", "error", err)
		} else {
			batch.Metadata = meta
		}
	}
	if s.opts.FetchComments {
		comments, failed := s.fetchComments(ctx, id, issues)
		batch.Comments = comments
		if failed > 0 {
			res.Partial = true
			logger.Warn("Some comment fetches failed", "failed", failed)
		}
	}

	stored, err := s.UpsertIssues(ctx, batch)
	res.Stored = stored
	res.Comments = batch.commentCount()
	switch {
	case err != nil:
		res.Err = err
	case fetchErr != nil:
		res.Err = fetchErr
	}
	s.recordStatus(ctx, res)

	if err != nil {
		return res, err
	}
	if stored > 0 && s.notifier != nil {
		s.notifier.Notify()
	}
	logger.Info("Repository synced", "stored", stored, "partial", res.Partial)
	return res, nil
}

// fetchComments loads comments for every issue that reports any.
// Failed issues are skipped and counted.
func (s *Syncer) fetchComments(ctx context.Context, id model.RepoIdentifier, issues []model.SourceIssue) (map[int64][]model.SourceComment, int) {
	fetched := make([][]model.SourceComment, len(issues))
	failed := make([]bool, len(issues))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, issue := range issues {
		if issue.CommentCount == 0 {
			continue
		}
		g.Go(func() error {
			comments, err := s.source.ListComments(gctx, id.Owner, id.Name, issue.Number)
			if err != nil {
				s.logger.Debug("Failed to fetch comments", "repo", id.FullName(), "issue", issue.Number, "error", err)
				failed[i] = true
				return nil
			}
			fetched[i] = comments
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[int64][]model.SourceComment)
	nFailed := 0
	for i, issue := range issues {
		if failed[i] {
			nFailed++
		}
		if len(fetched[i]) > 0 {
			out[issue.SourceID] = fetched[i]
		}
	}
	return out, nFailed
}

func (s *Syncer) recordStatus(ctx context.Context, res Result) {
	params := database.UpsertSyncStatusParams{
		RepoName: res.Repo,
		Fetched:  int32(res.Fetched),
		Stored:   int32(res.Stored),
		Partial:  res.Partial,
	}
	if res.Err != nil {
		params.LastError.String = res.Err.Error()
		params.LastError.Valid = true
	}
	if err := s.queries.UpsertSyncStatus(ctx, params); err != nil {
		s.logger.Error("Failed to record sync status", "repo", res.Repo, "error", err)
	}
}

func parseRepoIdentifiers(repos []string) ([]model.RepoIdentifier, error) {
	var identifiers []model.RepoIdentifier
	for _, r := range repos {
		parts := strings.Split(r, "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, &custom_errors.ErrInvalidRepoFormat{Repo: r}
		}
		identifiers = append(identifiers, model.RepoIdentifier{Owner: parts[0], Name: parts[1]})
	}
	return identifiers, nil
}
