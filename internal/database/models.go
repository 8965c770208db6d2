// internal/database/models.go
package database

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

type Comment struct {
	ID        int64
	IssueID   int64
	SourceID  int64
	Author    string
	Content   string
	CreatedAt time.Time
}

type Issue struct {
	ID              int64
	RepoID          int64
	SourceID        int64
	Number          int32
	Title           string
	Description     pgtype.Text
	CreatedAt       time.Time
	ClosedAt        pgtype.Timestamptz
	Status          string
	LlmAnalysis     pgtype.Text
	EnrichmentError pgtype.Text
	EnrichedAt      pgtype.Timestamptz
}

type Repository struct {
	ID           int64
	Name         string
	Stars        int32
	Language     string
	IssueCount   int32
	LastSyncedAt pgtype.Timestamptz
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type SyncStatus struct {
	RepoName      string
	LastAttemptAt time.Time
	Fetched       int32
	Stored        int32
	Partial       bool
	LastError     pgtype.Text
}
