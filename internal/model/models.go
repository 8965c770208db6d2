// internal/model/models.go
package model

import (
	"fmt"
	"time"
)

// IssueStatus is the normalized state of an issue.
type IssueStatus string

const (
	StatusOpen   IssueStatus = "open"
	StatusClosed IssueStatus = "closed"
)

// StatusFromState maps a source state string to an IssueStatus.
// Anything other than "open" is treated as closed.
func StatusFromState(state string) IssueStatus {
	if state == "open" {
		return StatusOpen
	}
	return StatusClosed
}

// RepoIdentifier holds the owner and name of a repository.
type RepoIdentifier struct {
	Owner string
	Name  string
}

// FullName returns the "owner/name" form used as the repository's identity in the store.
func (r RepoIdentifier) FullName() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Name)
}

// RepositoryMetadata is the subset of GitHub repository details we keep.
type RepositoryMetadata struct {
	GithubRepoID    int64
	FullName        string
	Language        *string
	StarsCount      int
	OpenIssuesCount int
}

// SourceIssue is an issue as read from the source API, before normalization.
type SourceIssue struct {
	SourceID     int64
	Number       int
	Title        string
	Body         *string
	State        string
	CreatedAt    time.Time
	UpdatedAt    *time.Time
	ClosedAt     *time.Time
	CommentCount int
}

// SourceComment is a comment as read from the source API.
type SourceComment struct {
	SourceID  int64
	Author    string
	Body      string
	CreatedAt time.Time
}
