package scoring

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"time"
)

// Weight constants for the composite score.
// They must sum to 1.0.
const (
	weightResolved   = 0.40
	weightResolution = 0.30
	weightEngagement = 0.20
	weightClarity    = 0.10
)

// Scale factors that bring the word-count components near the unit range.
const (
	engagementScale = 50.0
	clarityScale    = 100.0
)

// EngagementMode selects what the engagement component measures.
type EngagementMode string

const (
	// EngagementDescription averages the word count of issue descriptions.
	EngagementDescription EngagementMode = "description"
	// EngagementComments averages the number of comments per issue.
	EngagementComments EngagementMode = "comments"
)

// IssueInput is the slice of an issue the score depends on.
type IssueInput struct {
	Closed       bool
	CreatedAt    time.Time
	ClosedAt     *time.Time
	Description  string
	Analysis     string
	CommentCount int
}

// Result is a score with the components it was built from.
type Result struct {
	// Score is rounded to 3 decimals. It is not clamped.
	Score float64

	Total    int
	Resolved int

	ResolvedRatio     float64
	AvgResolutionDays float64
	EngagementProxy   float64
	ClarityProxy      float64
}

// Compute scores one repository.
//
//	score = 0.4 * resolved/total
//	      + 0.3 * 1/max(1, avg_resolution_days)
//	      + 0.2 * engagement/50
//	      + 0.1 * clarity/100
//
// Any unknown mode is treated as EngagementDescription.
func Compute(issues []IssueInput, mode EngagementMode) Result {
	var (
		resolved       int
		resolutionDays int
		engagement     int
		clarity        int
	)

	for _, issue := range issues {
		if issue.Closed {
			resolved++
		}
		if issue.ClosedAt != nil {
			resolutionDays += wholeDays(issue.ClosedAt.Sub(issue.CreatedAt))
		}
		if mode == EngagementComments {
			engagement += issue.CommentCount
		} else {
			engagement += wordCount(issue.Description)
		}
		clarity += wordCount(issue.Analysis)
	}

	total := float64(max(1, len(issues)))
	res := Result{
		Total:             len(issues),
		Resolved:          resolved,
		ResolvedRatio:     float64(resolved) / total,
		AvgResolutionDays: float64(resolutionDays) / float64(max(1, resolved)),
		EngagementProxy:   float64(engagement) / total,
		ClarityProxy:      float64(clarity) / total,
	}

	score := weightResolved*res.ResolvedRatio +
		weightResolution*(1/math.Max(1, res.AvgResolutionDays)) +
		weightEngagement*(res.EngagementProxy/engagementScale) +
		weightClarity*(res.ClarityProxy/clarityScale)

	res.Score = round3(score)
	return res
}

// Rank returns a copy of items sorted by descending score.
// Items with equal scores keep their relative order.
func Rank[T any](items []T, score func(T) float64) []T {
	ranked := slices.Clone(items)
	slices.SortStableFunc(ranked, func(a, b T) int {
		return cmp.Compare(score(b), score(a))
	})
	return ranked
}

// wholeDays floors d to days, so 36h is 1 and -1h is -1.
func wholeDays(d time.Duration) int {
	return int(math.Floor(d.Hours() / 24))
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
