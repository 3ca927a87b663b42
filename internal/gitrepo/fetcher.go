package gitrepo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/panjf2000/ants/v2"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/mrag/internal/model"
	"go.uber.org/zap"
)

const workspacePrefix = "mrag-repo-"

// Cloner materializes a repository into dir.
type Cloner interface {
	Clone(ctx context.Context, url, branch, dir string) error
}

type gitCloner struct {
	token string
}

// NewGitCloner returns a shallow go-git cloner. A non-empty token is sent as
// basic auth so private repositories can be read.
func NewGitCloner(token string) Cloner {
	return &gitCloner{token: strings.TrimSpace(token)}
}

func (c *gitCloner) Clone(ctx context.Context, url, branch, dir string) error {
	opts := &git.CloneOptions{
		URL:          url,
		Depth:        1,
		SingleBranch: true,
		Tags:         git.NoTags,
	}
	if branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(branch)
	}
	if c.token != "" {
		opts.Auth = &githttp.BasicAuth{Username: "x-access-token", Password: c.token}
	}
	if _, err := git.PlainCloneContext(ctx, dir, false, opts); err != nil {
		return fmt.Errorf("clone %s: %w", url, err)
	}
	return nil
}

type FetcherConfig struct {
	WorkspaceDir        string
	MaxConcurrentClones int
	MaxFileBytes        int64
}

// Fetcher clones repositories into throwaway workspaces on a bounded pool.
type Fetcher struct {
	cloner Cloner
	pool   *ants.Pool
	cfg    FetcherConfig
}

func NewFetcher(cloner Cloner, cfg FetcherConfig) (*Fetcher, error) {
	if cfg.MaxConcurrentClones <= 0 {
		cfg.MaxConcurrentClones = 2
	}
	if cfg.WorkspaceDir == "" {
		cfg.WorkspaceDir = os.TempDir()
	}
	if err := os.MkdirAll(cfg.WorkspaceDir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace dir: %w", err)
	}
	pool, err := ants.NewPool(cfg.MaxConcurrentClones)
	if err != nil {
		return nil, err
	}
	return &Fetcher{cloner: cloner, pool: pool, cfg: cfg}, nil
}

func (f *Fetcher) WorkspaceDir() string {
	return f.cfg.WorkspaceDir
}

type fetchResult struct {
	docs []model.SourceDocument
	err  error
}

// Fetch clones target and returns its text files tagged with target.URL.
// The workspace is always removed, including when the clone fails.
func (f *Fetcher) Fetch(ctx context.Context, target Target) ([]model.SourceDocument, error) {
	if target.Kind != KindRepo {
		return nil, fmt.Errorf("%s is not a repository url", target.URL)
	}
	done := make(chan fetchResult, 1)
	err := f.pool.Submit(func() {
		docs, err := f.fetch(ctx, target)
		done <- fetchResult{docs: docs, err: err}
	})
	if err != nil {
		return nil, fmt.Errorf("submit clone: %w", err)
	}
	select {
	case res := <-done:
		return res.docs, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *Fetcher) fetch(ctx context.Context, target Target) ([]model.SourceDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp(f.cfg.WorkspaceDir, workspacePrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logutil.GetLogger(ctx).Error("remove workspace failed", zap.String("dir", dir), zap.Error(err))
		}
	}()
	start := time.Now()
	if err := f.cloner.Clone(ctx, target.CloneURL(), target.Branch, dir); err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("repository cloned",
		zap.String("url", target.URL),
		zap.String("branch", target.Branch),
		zap.Duration("cost", time.Since(start)))
	return LoadFiles(dir, target.Path, target.URL, f.cfg.MaxFileBytes)
}

func (f *Fetcher) Close() {
	f.pool.Release()
}

// SweepWorkspaces removes workspace directories under root that are older
// than ttl, left behind by processes that died mid clone.
func SweepWorkspaces(root string, ttl time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), workspacePrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < ttl {
			continue
		}
		if err := os.RemoveAll(filepath.Join(root, entry.Name())); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
