// internal/database/sync_status.sql.go
// Statements are kept in step with queries/sync_status.sql.
package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const listSyncStatus = `-- name: ListSyncStatus :many
SELECT repo_name, last_attempt_at, fetched, stored, partial, last_error
FROM sync_status
ORDER BY repo_name
`

func (q *Queries) ListSyncStatus(ctx context.Context) ([]SyncStatus, error) {
	rows, err := q.db.Query(ctx, listSyncStatus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SyncStatus
	for rows.Next() {
		var i SyncStatus
		if err := rows.Scan(
			&i.RepoName,
			&i.LastAttemptAt,
			&i.Fetched,
			&i.Stored,
			&i.Partial,
			&i.LastError,
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

const upsertSyncStatus = `-- name: UpsertSyncStatus :exec
INSERT INTO sync_status (repo_name, last_attempt_at, fetched, stored, partial, last_error)
VALUES ($1, NOW(), $2, $3, $4, $5)
ON CONFLICT (repo_name) DO UPDATE SET
    last_attempt_at = EXCLUDED.last_attempt_at,
    fetched = EXCLUDED.fetched,
    stored = EXCLUDED.stored,
    partial = EXCLUDED.partial,
    last_error = EXCLUDED.last_error
`

type UpsertSyncStatusParams struct {
	RepoName  string
	Fetched   int32
	Stored    int32
	Partial   bool
	LastError pgtype.Text
}

func (q *Queries) UpsertSyncStatus(ctx context.Context, arg UpsertSyncStatusParams) error {
	_, err := q.db.Exec(ctx, upsertSyncStatus,
		arg.RepoName,
		arg.Fetched,
		arg.Stored,
		arg.Partial,
		arg.LastError,
	)
	return err
}
