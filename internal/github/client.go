// internal/github/client.go
package github

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	"github-issue-ranker/internal/metrics"
	"github-issue-ranker/internal/model"
)

// PageSize is the number of records requested per page.
const PageSize = 100

// Client is a wrapper around the go-github client.
type Client struct {
	gh       *github.Client
	logger   *slog.Logger
	maxPages int
}

// NewClient creates and configures a new Client instance.
// The provided token is sent as a bearer credential on every request.
// maxPages caps issue pagination per repository; 0 means no cap.
func NewClient(token string, maxPages int, logger *slog.Logger) *Client {
	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)

	return &Client{
		gh:       github.NewClient(tc),
		logger:   logger,
		maxPages: maxPages,
	}
}

// SetBaseURL points the client at another REST API root, such as a
// GitHub Enterprise host or a local test server.
func (c *Client) SetBaseURL(rawURL string) error {
	u, err := url.Parse(strings.TrimRight(rawURL, "/") + "/")
	if err != nil {
		return fmt.Errorf("parsing base URL: %w", err)
	}
	c.gh.BaseURL = u
	return nil
}

// GetRepository fetches repository details and translates them to our internal model.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (*model.RepositoryMetadata, error) {
	repo, _, err := c.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, err
	}
	return toRepositoryMetadata(repo), nil
}

// Issues returns a lazy sequence over every issue of owner/name, state=all.
// Each iteration starts again at page 1 and stops at the first empty page.
// A failed page ends the sequence with a final (zero, err) pair; issues
// from earlier pages have already been yielded and are not retried.
func (c *Client) Issues(ctx context.Context, owner, name string) iter.Seq2[model.SourceIssue, error] {
	return func(yield func(model.SourceIssue, error) bool) {
		repo := owner + "/" + name
		opts := &github.IssueListByRepoOptions{
			State: "all",
			ListOptions: github.ListOptions{
				PerPage: PageSize,
				Page:    1,
			},
		}

		for {
			if c.maxPages > 0 && opts.Page > c.maxPages {
				c.logger.Warn("Reached page cap, stopping pagination", "repo", repo, "max_pages", c.maxPages)
				return
			}

			issues, _, err := c.gh.Issues.ListByRepo(ctx, owner, name, opts)
			if err != nil {
				reason := failureReason(err)
				metrics.FetchFailures.WithLabelValues(repo, reason).Inc()
				c.logFailure(repo, opts.Page, reason, err)
				yield(model.SourceIssue{}, fmt.Errorf("fetching issues page %d of %s: %w", opts.Page, repo, err))
				return
			}
			if len(issues) == 0 {
				return
			}

			metrics.PagesFetched.WithLabelValues(repo).Inc()
			c.logger.Info("Fetched issues page", "repo", repo, "page", opts.Page, "count", len(issues))

			for _, issue := range issues {
				if !yield(toSourceIssue(issue), nil) {
					return
				}
			}
			opts.Page++
		}
	}
}

// FetchAllIssues drains Issues. The returned slice always holds every issue
// fetched; a non-nil error means pagination stopped early and the slice is partial.
func (c *Client) FetchAllIssues(ctx context.Context, owner, name string) ([]model.SourceIssue, error) {
	var all []model.SourceIssue
	var fetchErr error
	for issue, err := range c.Issues(ctx, owner, name) {
		if err != nil {
			fetchErr = err
			break
		}
		all = append(all, issue)
	}

	c.logger.Info("Total issues fetched", "repo", owner+"/"+name, "count", len(all), "partial", fetchErr != nil)
	return all, fetchErr
}

// ListComments fetches all comments of one issue.
// It handles API pagination transparently.
func (c *Client) ListComments(ctx context.Context, owner, name string, number int) ([]model.SourceComment, error) {
	var all []model.SourceComment

	opts := &github.IssueListCommentsOptions{
		ListOptions: github.ListOptions{
			PerPage: PageSize,
		},
	}

	for {
		c.logger.Debug("Fetching comments page", "owner", owner, "repo", name, "issue", number, "page", opts.Page)

		comments, resp, err := c.gh.Issues.ListComments(ctx, owner, name, number, opts)
		if err != nil {
			return nil, err
		}

		for _, comment := range comments {
			all = append(all, toSourceComment(comment))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

func (c *Client) logFailure(repo string, page int, reason string, err error) {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		c.logger.Error("Rate limited while fetching issues, keeping pages fetched so far",
			"repo", repo, "page", page, "reset", rateErr.Rate.Reset.Time.Format(time.RFC3339), "error", err)
		return
	}
	c.logger.Error("Failed to fetch issues page, keeping pages fetched so far",
		"repo", repo, "page", page, "reason", reason, "error", err)
}

func failureReason(err error) string {
	var (
		rateErr  *github.RateLimitError
		abuseErr *github.AbuseRateLimitError
		respErr  *github.ErrorResponse
	)
	switch {
	case errors.As(err, &rateErr):
		return "rate_limit"
	case errors.As(err, &abuseErr):
		return "secondary_rate_limit"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.As(err, &respErr) && respErr.Response != nil:
		return fmt.Sprintf("http_%d", respErr.Response.StatusCode)
	default:
		return "network"
	}
}

// toRepositoryMetadata translates a github.Repository object to our internal model.
func toRepositoryMetadata(r *github.Repository) *model.RepositoryMetadata {
	return &model.RepositoryMetadata{
		GithubRepoID:    r.GetID(),
		FullName:        r.GetFullName(),
		Language:        r.Language,
		StarsCount:      r.GetStargazersCount(),
		OpenIssuesCount: r.GetOpenIssuesCount(),
	}
}

// toSourceIssue translates a github.Issue object to our internal model.SourceIssue.
func toSourceIssue(i *github.Issue) model.SourceIssue {
	return model.SourceIssue{
		SourceID:     i.GetID(),
		Number:       i.GetNumber(),
		Title:        i.GetTitle(),
		Body:         i.Body,
		State:        i.GetState(),
		CreatedAt:    i.GetCreatedAt().Time,
		UpdatedAt:    timestampPtr(i.UpdatedAt),
		ClosedAt:     timestampPtr(i.ClosedAt),
		CommentCount: i.GetComments(),
	}
}

// toSourceComment translates a github.IssueComment object to our internal model.SourceComment.
func toSourceComment(c *github.IssueComment) model.SourceComment {
	return model.SourceComment{
		SourceID:  c.GetID(),
		Author:    c.GetUser().GetLogin(),
		Body:      c.GetBody(),
		CreatedAt: c.GetCreatedAt().Time,
	}
}

func timestampPtr(ts *github.Timestamp) *time.Time {
	if ts == nil {
		return nil
	}
	t := ts.Time
	return &t
}
