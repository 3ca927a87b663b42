// Package github derives activity statistics from public GitHub profile pages,
// upgraded with exact GraphQL totals when a token is configured.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/mrag/internal/model"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL    = "https://github.com"
	DefaultGraphQLURL = "https://api.github.com/graphql"

	StageProfile       = "profile"
	StageContributions = "contributions"
	StageGraphQL       = "graphql"
)

// ScrapeDegradedError marks a stage whose data could not be obtained. The
// analyzer records it and continues with the values it has.
type ScrapeDegradedError struct {
	Stage string
	Err   error
}

func (e *ScrapeDegradedError) Error() string {
	return fmt.Sprintf("github %s stage degraded: %v", e.Stage, e.Err)
}

func (e *ScrapeDegradedError) Unwrap() error {
	return e.Err
}

type Config struct {
	BaseURL    string
	GraphQLURL string
	Token      string
	Timeout    time.Duration
}

type Analyzer struct {
	cfg    Config
	client *http.Client
	now    func() time.Time
}

type Option func(*Analyzer)

// WithClock overrides the clock used to decide which day is today.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		a.now = now
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(a *Analyzer) {
		a.client = client
	}
}

func NewAnalyzer(cfg Config, opts ...Option) *Analyzer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.GraphQLURL == "" {
		cfg.GraphQLURL = DefaultGraphQLURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.Token = strings.TrimSpace(cfg.Token)
	a := &Analyzer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// UsernameFromURL returns the last non-empty path segment of a profile URL.
func UsernameFromURL(profileURL string) string {
	raw := strings.TrimSpace(profileURL)
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		raw = u.Path
	}
	parts := strings.Split(strings.Trim(raw, "/"), "/")
	return parts[len(parts)-1]
}

// Analyze never fails. Every stage that cannot complete is recorded as
// degraded and the summary keeps the values gathered so far.
func (a *Analyzer) Analyze(ctx context.Context, profileURL string) *model.ProfileSummary {
	summary := &model.ProfileSummary{
		Username: UsernameFromURL(profileURL),
		URL:      strings.TrimSpace(profileURL),
	}
	logger := logutil.GetLogger(ctx).With(zap.String("username", summary.Username))
	record := func(stage string, err error) {
		if err == nil {
			summary.Stages = append(summary.Stages, model.StageResult{Stage: stage})
			return
		}
		degraded := &ScrapeDegradedError{Stage: stage, Err: err}
		logger.Warn("profile analysis degraded", zap.Error(degraded))
		summary.Stages = append(summary.Stages, model.StageResult{Stage: stage, Degraded: true, Reason: err.Error()})
	}

	record(StageProfile, a.scrapeProfile(ctx, summary))
	record(StageContributions, a.scrapeContributions(ctx, summary))
	if a.cfg.Token == "" {
		summary.Stages = append(summary.Stages, model.StageResult{Stage: StageGraphQL, Reason: "no token configured"})
	} else {
		record(StageGraphQL, a.applyGraphQL(ctx, summary))
	}
	logger.Info("profile analyzed",
		zap.Int("repos", summary.Repos),
		zap.Int("total_contributions", summary.TotalContributions),
		zap.Bool("exact", summary.IsExact),
		zap.Bool("degraded", summary.Degraded()))
	return summary
}

func (a *Analyzer) scrapeProfile(ctx context.Context, summary *model.ProfileSummary) error {
	doc, err := a.fetchDocument(ctx, a.cfg.BaseURL+"/"+url.PathEscape(summary.Username))
	if err != nil {
		return err
	}
	repos, err := parseRepoCount(doc)
	if err != nil {
		return err
	}
	summary.Repos = repos
	return nil
}

func (a *Analyzer) scrapeContributions(ctx context.Context, summary *model.ProfileSummary) error {
	doc, err := a.fetchDocument(ctx, a.cfg.BaseURL+"/users/"+url.PathEscape(summary.Username)+"/contributions")
	if err != nil {
		return err
	}
	total, totalErr := parseTotal(doc)
	if totalErr == nil {
		summary.TotalContributions = total
	}
	days := parseDays(ctx, doc)
	today := a.now().Format("2006-01-02")
	summary.LongestStreak = LongestStreak(days)
	summary.CurrentStreak = CurrentStreak(days, today)
	summary.ActiveDays = ActiveDays(days)
	if totalErr != nil {
		return totalErr
	}
	if len(days) == 0 {
		return fmt.Errorf("no calendar days found")
	}
	return nil
}
