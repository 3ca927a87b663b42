package github

import (
	"fmt"
	"strings"

	"github.com/xxxsen/mrag/internal/model"
)

// RenderSummary produces the text stored as the profile chunk.
func RenderSummary(p *model.ProfileSummary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "GitHub Profile Analysis for User: %s\n", p.Username)
	fmt.Fprintf(&sb, "Source URL: %s\n", p.URL)
	sb.WriteString("---\n")
	fmt.Fprintf(&sb, "Total Repositories: %d\n", p.Repos)
	fmt.Fprintf(&sb, "Total Contributions (Last Year): %d\n", p.TotalContributions)
	sb.WriteString("Detailed Breakdown:\n")
	fmt.Fprintf(&sb, "- Commits: %d\n", p.Commits)
	fmt.Fprintf(&sb, "- Issues: %d\n", p.Issues)
	fmt.Fprintf(&sb, "- PRs: %d\n", p.PullRequests)
	fmt.Fprintf(&sb, "- Reviews: %d\n", p.Reviews)
	sb.WriteString("---\n")
	sb.WriteString("Activity Stats:\n")
	fmt.Fprintf(&sb, "- Current Streak: %d days\n", p.CurrentStreak)
	fmt.Fprintf(&sb, "- Longest Streak: %d days\n", p.LongestStreak)
	fmt.Fprintf(&sb, "- Active Days: %d days", p.ActiveDays)
	return sb.String()
}
