package gitrepo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		in     string
		kind   Kind
		owner  string
		repo   string
		branch string
		path   string
		blob   bool
	}{
		{in: "https://github.com/octocat", kind: KindProfile, owner: "octocat"},
		{in: "https://github.com/octocat/", kind: KindProfile, owner: "octocat"},
		{in: "https://github.com/octocat/hello", kind: KindRepo, owner: "octocat", repo: "hello"},
		{in: "https://github.com/octocat/hello.git", kind: KindRepo, owner: "octocat", repo: "hello"},
		{in: "https://github.com/octocat/hello/tree/main/docs", kind: KindRepo, owner: "octocat", repo: "hello", branch: "main", path: "docs"},
		{in: "https://github.com/octocat/hello/blob/dev/src/a.go", kind: KindRepo, owner: "octocat", repo: "hello", branch: "dev", path: "src/a.go", blob: true},
		{in: "  https://www.github.com/octocat  ", kind: KindProfile, owner: "octocat"},
		{in: "https://github.com", kind: KindText},
		{in: "https://gitlab.com/octocat/hello", kind: KindText},
		{in: "ftp://github.com/octocat", kind: KindText},
		{in: "see https://github.com/octocat for details", kind: KindText},
		{in: "just some notes", kind: KindText},
		{in: "", kind: KindText},
	}
	for _, tc := range cases {
		got := Classify(tc.in)
		require.Equal(t, tc.kind, got.Kind, tc.in)
		require.Equal(t, tc.owner, got.Owner, tc.in)
		require.Equal(t, tc.repo, got.Repo, tc.in)
		require.Equal(t, tc.branch, got.Branch, tc.in)
		require.Equal(t, tc.path, got.Path, tc.in)
		require.Equal(t, tc.blob, got.Blob, tc.in)
	}
}

func TestTargetCloneURL(t *testing.T) {
	target := Classify("https://github.com/octocat/hello/tree/main")
	require.Equal(t, "https://github.com/octocat/hello.git", target.CloneURL())
	require.Equal(t, "main", target.Branch)
	require.Equal(t, "", target.Path)
	require.Equal(t, "repo", target.Kind.String())
}
