package gitrepo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeCloner struct {
	files map[string]string
	err   error
	dirs  []string
}

func (f *fakeCloner) Clone(ctx context.Context, url, branch, dir string) error {
	f.dirs = append(f.dirs, dir)
	for name, content := range f.files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return f.err
}

func newTestFetcher(t *testing.T, cloner Cloner) *Fetcher {
	t.Helper()
	f, err := NewFetcher(cloner, FetcherConfig{WorkspaceDir: t.TempDir(), MaxConcurrentClones: 1, MaxFileBytes: 64})
	require.NoError(t, err)
	t.Cleanup(f.Close)
	return f
}

func TestFetcher_LoadsTextFilesAndCleansUp(t *testing.T) {
	cloner := &fakeCloner{files: map[string]string{
		"README.md":         "hello readme",
		"src/main.go":       "package main",
		"package-lock.json": "{}",
		"yarn.lock":         "lock",
		"logo.PNG":          "png",
		"icon.svg":          "<svg/>",
		"bin/tool":          "\x00\x01\x02",
		".git/config":       "[core]",
		"big.txt":           strings.Repeat("x", 100),
		"empty.txt":         "   ",
	}}
	f := newTestFetcher(t, cloner)
	target := Classify("https://github.com/octocat/hello")
	docs, err := f.Fetch(context.Background(), target)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, "hello readme", docs[0].Text)
	require.Equal(t, "package main", docs[1].Text)
	for _, doc := range docs {
		require.Equal(t, "https://github.com/octocat/hello", doc.Source)
	}
	require.Len(t, cloner.dirs, 1)
	_, err = os.Stat(cloner.dirs[0])
	require.True(t, os.IsNotExist(err))
}

func TestFetcher_CleansUpOnCloneFailure(t *testing.T) {
	cloner := &fakeCloner{files: map[string]string{"partial.txt": "half"}, err: errors.New("network down")}
	f := newTestFetcher(t, cloner)
	_, err := f.Fetch(context.Background(), Classify("https://github.com/octocat/hello"))
	require.Error(t, err)
	require.Len(t, cloner.dirs, 1)
	_, statErr := os.Stat(cloner.dirs[0])
	require.True(t, os.IsNotExist(statErr))
	entries, err := os.ReadDir(f.WorkspaceDir())
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestFetcher_SubPathAndBlob(t *testing.T) {
	cloner := &fakeCloner{files: map[string]string{
		"docs/a.md": "doc a",
		"docs/b.md": "doc b",
		"src/x.go":  "package x",
	}}
	f := newTestFetcher(t, cloner)
	docs, err := f.Fetch(context.Background(), Classify("https://github.com/o/r/tree/main/docs"))
	require.NoError(t, err)
	require.Len(t, docs, 2)

	docs, err = f.Fetch(context.Background(), Classify("https://github.com/o/r/blob/main/src/x.go"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "package x", docs[0].Text)
}

func TestFetcher_RejectsNonRepo(t *testing.T) {
	f := newTestFetcher(t, &fakeCloner{})
	_, err := f.Fetch(context.Background(), Classify("https://github.com/octocat"))
	require.Error(t, err)
}

func TestLoadFiles_RejectsEscape(t *testing.T) {
	_, err := LoadFiles(t.TempDir(), "../etc", "src", 0)
	require.Error(t, err)
}

func TestSweepWorkspaces(t *testing.T) {
	root := t.TempDir()
	old := filepath.Join(root, workspacePrefix+"old")
	fresh := filepath.Join(root, workspacePrefix+"fresh")
	other := filepath.Join(root, "keep")
	for _, dir := range []string{old, fresh, other} {
		require.NoError(t, os.MkdirAll(dir, 0o755))
	}
	now := time.Now()
	require.NoError(t, os.Chtimes(old, now.Add(-2*time.Hour), now.Add(-2*time.Hour)))
	require.NoError(t, os.Chtimes(other, now.Add(-2*time.Hour), now.Add(-2*time.Hour)))

	removed, err := SweepWorkspaces(root, time.Hour, now)
	require.NoError(t, err)
	require.Equal(t, 1, removed)
	_, err = os.Stat(old)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	require.NoError(t, err)
	_, err = os.Stat(other)
	require.NoError(t, err)
}
