package job

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWorkspaceSweepJob_RemovesStaleDirs(t *testing.T) {
	root := t.TempDir()
	stale := filepath.Join(root, "mrag-repo-old")
	fresh := filepath.Join(root, "mrag-repo-new")
	other := filepath.Join(root, "keep-me")
	for _, dir := range []string{stale, fresh, other} {
		require.NoError(t, os.MkdirAll(dir, 0o755))
	}
	old := time.Now().Add(-3 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))
	require.NoError(t, os.Chtimes(other, old, old))

	j := NewWorkspaceSweepJob(root, time.Hour)
	require.Equal(t, "workspace_sweep", j.Name())
	require.NoError(t, j.Run(context.Background()))

	require.NoDirExists(t, stale)
	require.DirExists(t, fresh)
	require.DirExists(t, other)
}

func TestWorkspaceSweepJob_NoRoot(t *testing.T) {
	require.NoError(t, NewWorkspaceSweepJob("", time.Hour).Run(context.Background()))
}

type fakeCollector struct {
	ratio float64
	err   error
}

func (f *fakeCollector) GC(discardRatio float64) error {
	f.ratio = discardRatio
	return f.err
}

func TestEmbedCacheGCJob(t *testing.T) {
	c := &fakeCollector{}
	require.NoError(t, NewEmbedCacheGCJob(c, 0).Run(context.Background()))
	require.Equal(t, defaultDiscardRatio, c.ratio)

	c = &fakeCollector{err: errors.New("closed")}
	require.EqualError(t, NewEmbedCacheGCJob(c, 0.7).Run(context.Background()), "closed")
	require.Equal(t, 0.7, c.ratio)

	require.NoError(t, NewEmbedCacheGCJob(nil, 0).Run(context.Background()))
}
