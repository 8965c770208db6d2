// internal/syncer/store.go
package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github-issue-ranker/internal/database"
	custom_errors "github-issue-ranker/internal/errors"
	"github-issue-ranker/internal/metrics"
	"github-issue-ranker/internal/model"
)

const unknownLanguage = "Unknown"

// Batch is one repository's worth of fetched data to persist.
type Batch struct {
	RepoName string
	Issues   []model.SourceIssue
	// Metadata is optional; nil keeps the stored stars and language.
	Metadata *model.RepositoryMetadata
	// Comments are keyed by issue SourceID.
	Comments map[int64][]model.SourceComment
}

func (b Batch) commentCount() int {
	n := 0
	for _, c := range b.Comments {
		n += len(c)
	}
	return n
}

// UpsertIssues stores a batch atomically and returns the number of issues written.
// Any failure rolls the whole batch back and is returned as *errors.PersistenceError.
func (s *Syncer) UpsertIssues(ctx context.Context, batch Batch) (int, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, s.persistenceFailure(batch.RepoName, "begin transaction", err)
	}
	defer tx.Rollback(ctx) // Rollback is a no-op if the tx has been committed

	stored, err := s.storeBatch(ctx, s.newQuerier(tx), batch)
	if err != nil {
		var perr *custom_errors.PersistenceError
		if errors.As(err, &perr) {
			metrics.PersistenceFailures.WithLabelValues(batch.RepoName).Inc()
			return 0, err
		}
		return 0, s.persistenceFailure(batch.RepoName, "store batch", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, s.persistenceFailure(batch.RepoName, "commit", err)
	}

	metrics.IssuesStored.WithLabelValues(batch.RepoName).Add(float64(stored))
	return stored, nil
}

// storeBatch performs every write of a batch against q, which is expected to be tx-bound.
func (s *Syncer) storeBatch(ctx context.Context, q database.Querier, batch Batch) (int, error) {
	fail := func(op string, err error) error {
		return &custom_errors.PersistenceError{Repo: batch.RepoName, Op: op, Err: err}
	}

	repo, err := s.ensureRepository(ctx, q, batch.RepoName, len(batch.Issues))
	if err != nil {
		return 0, fail("ensure repository", err)
	}

	if batch.Metadata != nil {
		language := unknownLanguage
		if batch.Metadata.Language != nil && *batch.Metadata.Language != "" {
			language = *batch.Metadata.Language
		}
		_, err := q.UpdateRepositoryMetadata(ctx, database.UpdateRepositoryMetadataParams{
			ID:       repo.ID,
			Stars:    int32(batch.Metadata.StarsCount),
			Language: language,
		})
		if err != nil {
			return 0, fail("update repository metadata", err)
		}
	}

	stored := 0
	for _, issue := range batch.Issues {
		issueID, err := q.UpsertIssue(ctx, toUpsertIssueParams(repo.ID, issue))
		if err != nil {
			return 0, fail(fmt.Sprintf("upsert issue #%d", issue.Number), err)
		}
		stored++

		for _, comment := range batch.Comments[issue.SourceID] {
			err := q.CreateComment(ctx, database.CreateCommentParams{
				IssueID:   issueID,
				SourceID:  comment.SourceID,
				Author:    comment.Author,
				Content:   comment.Body,
				CreatedAt: comment.CreatedAt,
			})
			if err != nil {
				return 0, fail(fmt.Sprintf("insert comment %d", comment.SourceID), err)
			}
		}
	}

	if _, err := q.RefreshRepositoryIssueCount(ctx, repo.ID); err != nil {
		return 0, fail("refresh issue count", err)
	}

	s.logger.Debug("Stored issue batch", "repo", batch.RepoName, "issues", stored, "comments", batch.commentCount())
	return stored, nil
}

// ensureRepository fetches a repository by name or creates it with placeholder metadata.
func (s *Syncer) ensureRepository(ctx context.Context, q database.Querier, name string, issueCount int) (database.Repository, error) {
	repo, err := q.GetRepositoryByName(ctx, name)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.Repository{}, fmt.Errorf("could not query repository: %w", err)
	}

	s.logger.Info("Repository not found in DB, creating new entry", "repo", name)
	repo, err = q.CreateRepository(ctx, database.CreateRepositoryParams{
		Name:       name,
		Stars:      0,
		Language:   unknownLanguage,
		IssueCount: int32(issueCount),
	})
	if err != nil {
		return database.Repository{}, fmt.Errorf("could not create repository: %w", err)
	}
	return repo, nil
}

// toUpsertIssueParams normalizes a source issue into its stored form.
// A closed issue always carries a closing time and an open one never does.
func toUpsertIssueParams(repoID int64, issue model.SourceIssue) database.UpsertIssueParams {
	status := model.StatusFromState(issue.State)

	var closedAt pgtype.Timestamptz
	if status == model.StatusClosed {
		switch {
		case issue.ClosedAt != nil:
			closedAt = pgtype.Timestamptz{Time: *issue.ClosedAt, Valid: true}
		case issue.UpdatedAt != nil:
			closedAt = pgtype.Timestamptz{Time: *issue.UpdatedAt, Valid: true}
		default:
			closedAt = pgtype.Timestamptz{Time: issue.CreatedAt, Valid: true}
		}
	}

	description := ""
	if issue.Body != nil {
		description = *issue.Body
	}

	return database.UpsertIssueParams{
		RepoID:      repoID,
		SourceID:    issue.SourceID,
		Number:      int32(issue.Number),
		Title:       issue.Title,
		Description: pgtype.Text{String: description, Valid: true},
		CreatedAt:   issue.CreatedAt,
		ClosedAt:    closedAt,
		Status:      string(status),
	}
}

func (s *Syncer) persistenceFailure(repo, op string, err error) error {
	metrics.PersistenceFailures.WithLabelValues(repo).Inc()
	return &custom_errors.PersistenceError{Repo: repo, Op: op, Err: err}
}
