// Package gitrepo classifies GitHub URLs and loads repository contents as text documents.
package gitrepo

import (
	"net/url"
	"strings"
)

type Kind int

const (
	KindText Kind = iota
	KindProfile
	KindRepo
)

func (k Kind) String() string {
	switch k {
	case KindProfile:
		return "profile"
	case KindRepo:
		return "repo"
	default:
		return "text"
	}
}

// Target is the routing decision for one ingest input.
type Target struct {
	Kind  Kind
	URL   string
	Owner string
	Repo  string
	// Branch and Path come from /tree/<branch>/<path> or /blob/<branch>/<file>.
	Branch string
	Path   string
	Blob   bool
}

func (t Target) CloneURL() string {
	return "https://github.com/" + t.Owner + "/" + t.Repo + ".git"
}

// Classify decides whether input is a GitHub profile URL, a repository URL
// or plain text.
func Classify(input string) Target {
	raw := strings.TrimSpace(input)
	text := Target{Kind: KindText}
	if raw == "" || strings.ContainsAny(raw, " \t\r\n") {
		return text
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return text
	}
	host := strings.ToLower(u.Hostname())
	if host != "github.com" && host != "www.github.com" {
		return text
	}
	segments := splitPath(u.Path)
	switch {
	case len(segments) == 0:
		return text
	case len(segments) == 1:
		return Target{Kind: KindProfile, URL: raw, Owner: segments[0]}
	}
	t := Target{
		Kind:  KindRepo,
		URL:   raw,
		Owner: segments[0],
		Repo:  strings.TrimSuffix(segments[1], ".git"),
	}
	if len(segments) >= 4 && (segments[2] == "tree" || segments[2] == "blob") {
		t.Blob = segments[2] == "blob"
		t.Branch = segments[3]
		t.Path = strings.Join(segments[4:], "/")
	}
	return t
}

func splitPath(p string) []string {
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
