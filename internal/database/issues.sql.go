// internal/database/issues.sql.go
// Statements are kept in step with queries/issues.sql.
package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const countIssues = `-- name: CountIssues :one
SELECT COUNT(*) FROM issues
`

func (q *Queries) CountIssues(ctx context.Context) (int64, error) {
	row := q.db.QueryRow(ctx, countIssues)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const countPendingEnrichment = `-- name: CountPendingEnrichment :one
SELECT COUNT(*)
FROM issues
WHERE llm_analysis IS NULL
  AND description IS NOT NULL
  AND btrim(description) <> ''
`

func (q *Queries) CountPendingEnrichment(ctx context.Context) (int64, error) {
	row := q.db.QueryRow(ctx, countPendingEnrichment)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const listIssuesByRepo = `-- name: ListIssuesByRepo :many
SELECT id, repo_id, source_id, number, title, description, created_at, closed_at, status,
       llm_analysis, enrichment_error, enriched_at
FROM issues
WHERE repo_id = $1
ORDER BY id
`

func (q *Queries) ListIssuesByRepo(ctx context.Context, repoID int64) ([]Issue, error) {
	rows, err := q.db.Query(ctx, listIssuesByRepo, repoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Issue
	for rows.Next() {
		var i Issue
		if err := rows.Scan(
			&i.ID,
			&i.RepoID,
			&i.SourceID,
			&i.Number,
			&i.Title,
			&i.Description,
			&i.CreatedAt,
			&i.ClosedAt,
			&i.Status,
			&i.LlmAnalysis,
			&i.EnrichmentError,
			&i.EnrichedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listIssuesPendingEnrichment = `-- name: ListIssuesPendingEnrichment :many
SELECT id, description
FROM issues
WHERE llm_analysis IS NULL
  AND description IS NOT NULL
  AND btrim(description) <> ''
  AND (enriched_at IS NULL OR enriched_at < $1)
ORDER BY id
LIMIT $2
`

type ListIssuesPendingEnrichmentParams struct {
	RetryBefore time.Time
	RowLimit    int32
}

type ListIssuesPendingEnrichmentRow struct {
	ID          int64
	Description pgtype.Text
}

func (q *Queries) ListIssuesPendingEnrichment(ctx context.Context, arg ListIssuesPendingEnrichmentParams) ([]ListIssuesPendingEnrichmentRow, error) {
	rows, err := q.db.Query(ctx, listIssuesPendingEnrichment, arg.RetryBefore, arg.RowLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListIssuesPendingEnrichmentRow
	for rows.Next() {
		var i ListIssuesPendingEnrichmentRow
		if err := rows.Scan(&i.ID, &i.Description); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const setIssueAnalysis = `-- name: SetIssueAnalysis :execrows
UPDATE issues
SET llm_analysis = $2, enrichment_error = NULL, enriched_at = NOW()
WHERE id = $1 AND description IS NOT DISTINCT FROM $3
`

type SetIssueAnalysisParams struct {
	ID          int64
	LlmAnalysis pgtype.Text
	Description pgtype.Text
}

func (q *Queries) SetIssueAnalysis(ctx context.Context, arg SetIssueAnalysisParams) (int64, error) {
	result, err := q.db.Exec(ctx, setIssueAnalysis, arg.ID, arg.LlmAnalysis, arg.Description)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const setIssueEnrichmentError = `-- name: SetIssueEnrichmentError :exec
UPDATE issues
SET enrichment_error = $2, enriched_at = NOW()
WHERE id = $1 AND llm_analysis IS NULL
`

type SetIssueEnrichmentErrorParams struct {
	ID              int64
	EnrichmentError pgtype.Text
}

func (q *Queries) SetIssueEnrichmentError(ctx context.Context, arg SetIssueEnrichmentErrorParams) error {
	_, err := q.db.Exec(ctx, setIssueEnrichmentError, arg.ID, arg.EnrichmentError)
	return err
}

const upsertIssue = `-- name: UpsertIssue :one
INSERT INTO issues (repo_id, source_id, number, title, description, created_at, closed_at, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (repo_id, source_id) DO UPDATE SET
    number = EXCLUDED.number,
    title = EXCLUDED.title,
    llm_analysis = CASE WHEN issues.description IS DISTINCT FROM EXCLUDED.description THEN NULL ELSE issues.llm_analysis END,
    enrichment_error = CASE WHEN issues.description IS DISTINCT FROM EXCLUDED.description THEN NULL ELSE issues.enrichment_error END,
    enriched_at = CASE WHEN issues.description IS DISTINCT FROM EXCLUDED.description THEN NULL ELSE issues.enriched_at END,
    description = EXCLUDED.description,
    created_at = EXCLUDED.created_at,
    closed_at = EXCLUDED.closed_at,
    status = EXCLUDED.status
RETURNING id
`

type UpsertIssueParams struct {
	RepoID      int64
	SourceID    int64
	Number      int32
	Title       string
	Description pgtype.Text
	CreatedAt   time.Time
	ClosedAt    pgtype.Timestamptz
	Status      string
}

func (q *Queries) UpsertIssue(ctx context.Context, arg UpsertIssueParams) (int64, error) {
	row := q.db.QueryRow(ctx, upsertIssue,
		arg.RepoID,
		arg.SourceID,
		arg.Number,
		arg.Title,
		arg.Description,
		arg.CreatedAt,
		arg.ClosedAt,
		arg.Status,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}
