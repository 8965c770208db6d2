// internal/report/report.go
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github-issue-ranker/internal/scoring"
)

const (
	// MaxInsights is the number of analyses shown per repository.
	MaxInsights = 5
	// InsightLength is the number of characters kept from each analysis.
	InsightLength = 150

	insightSeparator = " | "
	blockSeparator   = "----------------------------------------------------"
)

// RepositoryScore is a scored repository before rendering.
type RepositoryScore struct {
	Name       string
	Stars      int
	Language   string
	OpenIssues int
	Result     scoring.Result
	// Analyses holds the non-empty analyses of the repository's issues in id order.
	Analyses []string
}

// Entry is one repository block of a report.
type Entry struct {
	Repository        string   `json:"repository"`
	Stars             int      `json:"stars"`
	Language          string   `json:"language"`
	OpenIssues        int      `json:"open_issues"`
	Score             float64  `json:"score"`
	ResolvedRatio     float64  `json:"resolved_ratio"`
	AvgResolutionDays float64  `json:"avg_resolution_days"`
	EngagementProxy   float64  `json:"engagement_proxy"`
	ClarityProxy      float64  `json:"clarity_proxy"`
	Insights          []string `json:"insights"`
}

// Report is a point-in-time ranking of every stored repository.
type Report struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Entries     []Entry   `json:"repositories"`
	// Degraded is set when the data behind the ranking is known to be stale or incomplete.
	Degraded bool     `json:"degraded"`
	Warnings []string `json:"warnings"`
}

// Assemble turns ranked scores into report entries, keeping their order.
// Insights are the first MaxInsights non-empty analyses in issue order; issues
// without an analysis are skipped rather than using up a slot.
func Assemble(ranked []RepositoryScore) []Entry {
	entries := make([]Entry, 0, len(ranked))
	for _, rs := range ranked {
		insights := make([]string, 0, MaxInsights)
		for _, analysis := range rs.Analyses {
			if len(insights) == MaxInsights {
				break
			}
			if analysis == "" {
				continue
			}
			insights = append(insights, truncate(analysis, InsightLength))
		}

		entries = append(entries, Entry{
			Repository:        rs.Name,
			Stars:             rs.Stars,
			Language:          rs.Language,
			OpenIssues:        rs.OpenIssues,
			Score:             rs.Result.Score,
			ResolvedRatio:     rs.Result.ResolvedRatio,
			AvgResolutionDays: rs.Result.AvgResolutionDays,
			EngagementProxy:   rs.Result.EngagementProxy,
			ClarityProxy:      rs.Result.ClarityProxy,
			Insights:          insights,
		})
	}
	return entries
}

// Text renders the report as plain text.
func (r *Report) Text() string {
	var b strings.Builder
	b.WriteString("GitHub Repository Issue Management Report\n")
	fmt.Fprintf(&b, "Run: %s, Generated: %s\n", r.RunID, r.GeneratedAt.Format(time.RFC3339))
	if r.Degraded {
		b.WriteString("Warning: rankings may be stale or incomplete\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "  - %s\n", w)
		}
	}
	b.WriteString("\n")

	for _, e := range r.Entries {
		fmt.Fprintf(&b, "Repository: %s\n", e.Repository)
		fmt.Fprintf(&b, "Stars: %d, Language: %s, Open Issues: %d\n", e.Stars, e.Language, e.OpenIssues)
		fmt.Fprintf(&b, "Issue Handling Score: %s\n", strconv.FormatFloat(e.Score, 'f', -1, 64))
		fmt.Fprintf(&b, "Sample AI Insights: %s\n", strings.Join(e.Insights, insightSeparator))
		b.WriteString(blockSeparator + "\n")
	}
	return b.String()
}

// truncate keeps the first n characters of s.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
