// internal/database/comments.sql.go
// Statements are kept in step with queries/comments.sql.
package database

import (
	"context"
	"time"
)

const countComments = `-- name: CountComments :one
SELECT COUNT(*) FROM comments
`

func (q *Queries) CountComments(ctx context.Context) (int64, error) {
	row := q.db.QueryRow(ctx, countComments)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const createComment = `-- name: CreateComment :exec
INSERT INTO comments (issue_id, source_id, author, content, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (issue_id, source_id) DO NOTHING
`

type CreateCommentParams struct {
	IssueID   int64
	SourceID  int64
	Author    string
	Content   string
	CreatedAt time.Time
}

func (q *Queries) CreateComment(ctx context.Context, arg CreateCommentParams) error {
	_, err := q.db.Exec(ctx, createComment,
		arg.IssueID,
		arg.SourceID,
		arg.Author,
		arg.Content,
		arg.CreatedAt,
	)
	return err
}

const listCommentCountsByRepo = `-- name: ListCommentCountsByRepo :many
SELECT c.issue_id, COUNT(*) AS comment_count
FROM comments c
JOIN issues i ON i.id = c.issue_id
WHERE i.repo_id = $1
GROUP BY c.issue_id
`

type ListCommentCountsByRepoRow struct {
	IssueID      int64
	CommentCount int64
}

func (q *Queries) ListCommentCountsByRepo(ctx context.Context, repoID int64) ([]ListCommentCountsByRepoRow, error) {
	rows, err := q.db.Query(ctx, listCommentCountsByRepo, repoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListCommentCountsByRepoRow
	for rows.Next() {
		var i ListCommentCountsByRepoRow
		if err := rows.Scan(&i.IssueID, &i.CommentCount); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
