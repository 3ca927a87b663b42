package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xxxsen/mrag/internal/model"
)

const profileQuery = `query($username: String!) {
  user(login: $username) {
    repositories { totalCount }
    contributionsCollection {
      totalCommitContributions
      totalIssueContributions
      totalPullRequestContributions
      totalPullRequestReviewContributions
    }
  }
}`

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type graphqlResponse struct {
	Data struct {
		User *struct {
			Repositories *struct {
				TotalCount int `json:"totalCount"`
			} `json:"repositories"`
			ContributionsCollection *struct {
				TotalCommitContributions            int `json:"totalCommitContributions"`
				TotalIssueContributions             int `json:"totalIssueContributions"`
				TotalPullRequestContributions       int `json:"totalPullRequestContributions"`
				TotalPullRequestReviewContributions int `json:"totalPullRequestReviewContributions"`
			} `json:"contributionsCollection"`
		} `json:"user"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// applyGraphQL overrides summary fields with exact API values. Repos is
// replaced when the response carries a repository count; contribution
// totals and IsExact only when contributionsCollection is present.
func (a *Analyzer) applyGraphQL(ctx context.Context, summary *model.ProfileSummary) error {
	body, err := json.Marshal(graphqlRequest{
		Query:     profileQuery,
		Variables: map[string]interface{}{"username": summary.Username},
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.GraphQLURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.Token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("github graphql failed: %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	var out graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode graphql response: %w", err)
	}
	if len(out.Errors) > 0 {
		return fmt.Errorf("github graphql error: %s", out.Errors[0].Message)
	}
	user := out.Data.User
	if user == nil {
		return fmt.Errorf("github user %s not found", summary.Username)
	}
	if user.Repositories != nil {
		summary.Repos = user.Repositories.TotalCount
	}
	if cc := user.ContributionsCollection; cc != nil {
		summary.Commits = cc.TotalCommitContributions
		summary.Issues = cc.TotalIssueContributions
		summary.PullRequests = cc.TotalPullRequestContributions
		summary.Reviews = cc.TotalPullRequestReviewContributions
		summary.IsExact = true
	}
	return nil
}
