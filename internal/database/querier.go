// internal/database/querier.go
package database

import (
	"context"
)

type Querier interface {
	CountComments(ctx context.Context) (int64, error)
	CountIssues(ctx context.Context) (int64, error)
	CountPendingEnrichment(ctx context.Context) (int64, error)
	CreateComment(ctx context.Context, arg CreateCommentParams) error
	CreateRepository(ctx context.Context, arg CreateRepositoryParams) (Repository, error)
	GetRepositoryByName(ctx context.Context, name string) (Repository, error)
	ListCommentCountsByRepo(ctx context.Context, repoID int64) ([]ListCommentCountsByRepoRow, error)
	ListIssuesByRepo(ctx context.Context, repoID int64) ([]Issue, error)
	ListIssuesPendingEnrichment(ctx context.Context, arg ListIssuesPendingEnrichmentParams) ([]ListIssuesPendingEnrichmentRow, error)
	ListRepositories(ctx context.Context) ([]Repository, error)
	ListSyncStatus(ctx context.Context) ([]SyncStatus, error)
	RefreshRepositoryIssueCount(ctx context.Context, id int64) (Repository, error)
	SetIssueAnalysis(ctx context.Context, arg SetIssueAnalysisParams) (int64, error)
	SetIssueEnrichmentError(ctx context.Context, arg SetIssueEnrichmentErrorParams) error
	UpdateRepositoryMetadata(ctx context.Context, arg UpdateRepositoryMetadataParams) (Repository, error)
	UpsertIssue(ctx context.Context, arg UpsertIssueParams) (int64, error)
	UpsertSyncStatus(ctx context.Context, arg UpsertSyncStatusParams) error
}

var _ Querier = (*Queries)(nil)
