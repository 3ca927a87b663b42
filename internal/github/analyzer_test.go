package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

const profileHTML = `<html><body>
<nav><a href="/octocat?tab=repositories">Repositories <span class="Counter" title="8">8</span></a></nav>
</body></html>`

const contributionsHTML = `<html><body>
<h2 class="f4 text-normal mb-2">1,234 contributions in the last year</h2>
<table>
<tr>
<td class="ContributionCalendar-day" data-date="2024-03-04" data-count="0"></td>
<td class="ContributionCalendar-day" data-date="2024-03-01" data-count="2"></td>
<td class="ContributionCalendar-day" data-date="2024-03-02" data-count="1"></td>
<td class="ContributionCalendar-day" data-date="2024-03-03" id="day-3" data-level="1"></td>
<td class="ContributionCalendar-day" data-date="2024-02-29" id="day-0" data-level="0"></td>
<td class="ContributionCalendar-day"></td>
</tr>
</table>
<tool-tip for="day-3">3 contributions on March 3rd.</tool-tip>
<tool-tip for="day-0">No contributions on February 29th.</tool-tip>
</body></html>`

func newGitHubServer(t *testing.T, graphql http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/octocat", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(profileHTML))
	})
	mux.HandleFunc("/users/octocat/contributions", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(contributionsHTML))
	})
	if graphql != nil {
		mux.HandleFunc("/graphql", graphql)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func fixedClock() time.Time {
	return time.Date(2024, 3, 4, 12, 0, 0, 0, time.Local)
}

func TestAnalyze_ScrapeOnly(t *testing.T) {
	srv := newGitHubServer(t, nil)
	a := NewAnalyzer(Config{BaseURL: srv.URL}, WithClock(fixedClock))
	summary := a.Analyze(context.Background(), "https://github.com/octocat")

	require.Equal(t, "octocat", summary.Username)
	require.Equal(t, 8, summary.Repos)
	require.Equal(t, 1234, summary.TotalContributions)
	require.Equal(t, 3, summary.CurrentStreak)
	require.Equal(t, 3, summary.LongestStreak)
	require.Equal(t, 3, summary.ActiveDays)
	require.False(t, summary.IsExact)
	require.False(t, summary.Degraded())
	require.Len(t, summary.Stages, 3)
	require.Equal(t, StageGraphQL, summary.Stages[2].Stage)
}

func TestAnalyze_GraphQLOverrides(t *testing.T) {
	srv := newGitHubServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req graphqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "octocat", req.Variables["username"])
		_, _ = w.Write([]byte(`{"data":{"user":{"repositories":{"totalCount":42},
			"contributionsCollection":{"totalCommitContributions":10,"totalIssueContributions":2,
			"totalPullRequestContributions":3,"totalPullRequestReviewContributions":4}}}}`))
	})
	a := NewAnalyzer(Config{BaseURL: srv.URL, GraphQLURL: srv.URL + "/graphql", Token: "secret"}, WithClock(fixedClock))
	summary := a.Analyze(context.Background(), "https://github.com/octocat")

	require.True(t, summary.IsExact)
	require.Equal(t, 42, summary.Repos)
	require.Equal(t, 10, summary.Commits)
	require.Equal(t, 2, summary.Issues)
	require.Equal(t, 3, summary.PullRequests)
	require.Equal(t, 4, summary.Reviews)
	require.Equal(t, 1234, summary.TotalContributions)
	require.False(t, summary.Degraded())
}

func TestAnalyze_GraphQLFailureKeepsScrapedValues(t *testing.T) {
	srv := newGitHubServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	})
	a := NewAnalyzer(Config{BaseURL: srv.URL, GraphQLURL: srv.URL + "/graphql", Token: "bad"}, WithClock(fixedClock))
	summary := a.Analyze(context.Background(), "https://github.com/octocat")

	require.False(t, summary.IsExact)
	require.Equal(t, 8, summary.Repos)
	require.True(t, summary.Degraded())
	require.True(t, summary.Stages[2].Degraded)
	require.Contains(t, summary.Stages[2].Reason, "401")
}

func TestAnalyze_UnreachableNeverFails(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	a := NewAnalyzer(Config{BaseURL: srv.URL}, WithClock(fixedClock))
	summary := a.Analyze(context.Background(), "https://github.com/ghost")

	require.NotNil(t, summary)
	require.Equal(t, "ghost", summary.Username)
	require.Equal(t, 0, summary.Repos)
	require.True(t, summary.Degraded())
	require.True(t, summary.Stages[0].Degraded)
	require.True(t, summary.Stages[1].Degraded)

	text := RenderSummary(summary)
	require.True(t, strings.HasPrefix(text, "GitHub Profile Analysis for User: ghost\n"))
}

func TestRenderSummary(t *testing.T) {
	srv := newGitHubServer(t, nil)
	a := NewAnalyzer(Config{BaseURL: srv.URL}, WithClock(fixedClock))
	summary := a.Analyze(context.Background(), "https://github.com/octocat")
	want := `GitHub Profile Analysis for User: octocat
Source URL: https://github.com/octocat
---
Total Repositories: 8
Total Contributions (Last Year): 1234
Detailed Breakdown:
- Commits: 0
- Issues: 0
- PRs: 0
- Reviews: 0
---
Activity Stats:
- Current Streak: 3 days
- Longest Streak: 3 days
- Active Days: 3 days`
	require.Equal(t, want, RenderSummary(summary))
}

func TestParseCount(t *testing.T) {
	n, err := parseCount("1.2k")
	require.NoError(t, err)
	require.Equal(t, 1200, n)
	n, err = parseCount("1,024")
	require.NoError(t, err)
	require.Equal(t, 1024, n)
	_, err = parseCount("many")
	require.Error(t, err)
}

func TestUsernameFromURL(t *testing.T) {
	require.Equal(t, "octocat", UsernameFromURL("https://github.com/octocat/"))
	require.Equal(t, "octocat", UsernameFromURL("https://github.com/octocat"))
}

func TestDayCount_LevelOnlyMarksActivity(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<table><tr>
<td class="d" id="a" data-level="4"></td>
<td class="d" id="b" data-level="0"></td>
<td class="d" id="c" data-count="7" data-level="4"></td>
</tr></table>`))
	require.NoError(t, err)
	var counts []int
	doc.Find("td.d").Each(func(_ int, s *goquery.Selection) {
		n, err := dayCount(s, map[string]string{})
		require.NoError(t, err)
		counts = append(counts, n)
	})
	require.Equal(t, []int{1, 0, 7}, counts)
}
