// internal/database/repositories.sql.go
// Statements are kept in step with queries/repositories.sql.
package database

import (
	"context"
)

const createRepository = `-- name: CreateRepository :one
INSERT INTO repositories (name, stars, language, issue_count)
VALUES ($1, $2, $3, $4)
RETURNING id, name, stars, language, issue_count, last_synced_at, created_at, updated_at
`

type CreateRepositoryParams struct {
	Name       string
	Stars      int32
	Language   string
	IssueCount int32
}

func (q *Queries) CreateRepository(ctx context.Context, arg CreateRepositoryParams) (Repository, error) {
	row := q.db.QueryRow(ctx, createRepository,
		arg.Name,
		arg.Stars,
		arg.Language,
		arg.IssueCount,
	)
	var i Repository
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Stars,
		&i.Language,
		&i.IssueCount,
		&i.LastSyncedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getRepositoryByName = `-- name: GetRepositoryByName :one
SELECT id, name, stars, language, issue_count, last_synced_at, created_at, updated_at
FROM repositories
WHERE name = $1
`

func (q *Queries) GetRepositoryByName(ctx context.Context, name string) (Repository, error) {
	row := q.db.QueryRow(ctx, getRepositoryByName, name)
	var i Repository
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Stars,
		&i.Language,
		&i.IssueCount,
		&i.LastSyncedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listRepositories = `-- name: ListRepositories :many
SELECT id, name, stars, language, issue_count, last_synced_at, created_at, updated_at
FROM repositories
ORDER BY id
`

func (q *Queries) ListRepositories(ctx context.Context) ([]Repository, error) {
	rows, err := q.db.Query(ctx, listRepositories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Repository
	for rows.Next() {
		var i Repository
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Stars,
			&i.Language,
			&i.IssueCount,
			&i.LastSyncedAt,
			&i.CreatedAt,
			&i.UpdatedAt,
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

const refreshRepositoryIssueCount = `-- name: RefreshRepositoryIssueCount :one
UPDATE repositories
SET issue_count = (SELECT COUNT(*) FROM issues WHERE issues.repo_id = repositories.id),
    last_synced_at = NOW(),
    updated_at = NOW()
WHERE id = $1
RETURNING id, name, stars, language, issue_count, last_synced_at, created_at, updated_at
`

func (q *Queries) RefreshRepositoryIssueCount(ctx context.Context, id int64) (Repository, error) {
	row := q.db.QueryRow(ctx, refreshRepositoryIssueCount, id)
	var i Repository
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Stars,
		&i.Language,
		&i.IssueCount,
		&i.LastSyncedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const updateRepositoryMetadata = `-- name: UpdateRepositoryMetadata :one
UPDATE repositories
SET stars = $2, language = $3, updated_at = NOW()
WHERE id = $1
RETURNING id, name, stars, language, issue_count, last_synced_at, created_at, updated_at
`

type UpdateRepositoryMetadataParams struct {
	ID       int64
	Stars    int32
	Language string
}

func (q *Queries) UpdateRepositoryMetadata(ctx context.Context, arg UpdateRepositoryMetadataParams) (Repository, error) {
	row := q.db.QueryRow(ctx, updateRepositoryMetadata, arg.ID, arg.Stars, arg.Language)
	var i Repository
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Stars,
		&i.Language,
		&i.IssueCount,
		&i.LastSyncedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
