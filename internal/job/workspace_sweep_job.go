package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mrag/internal/gitrepo"
)

type WorkspaceSweepJob struct {
	root string
	ttl  time.Duration
	now  func() time.Time
}

func NewWorkspaceSweepJob(root string, ttl time.Duration) *WorkspaceSweepJob {
	return &WorkspaceSweepJob{root: root, ttl: ttl, now: time.Now}
}

func (j *WorkspaceSweepJob) Name() string {
	return "workspace_sweep"
}

func (j *WorkspaceSweepJob) Run(ctx context.Context) error {
	if j.root == "" {
		return nil
	}
	ttl := j.ttl
	if ttl <= 0 {
		ttl = time.Hour
	}
	removed, err := gitrepo.SweepWorkspaces(j.root, ttl, j.now())
	if removed > 0 {
		logutil.GetLogger(ctx).Info("stale workspaces removed", zap.Int("count", removed), zap.String("root", j.root))
	}
	return err
}
