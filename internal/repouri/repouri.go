// Package repouri parses the git:// URIs that identify a file at a
// revision, e.g. git://github.com/owner/repo?main#path/to/file.go.
package repouri

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ErrInvalid is returned for URIs that do not name a repository file.
var ErrInvalid = errors.New("invalid repo URI")

var (
	commitIDRegex = regexp.MustCompile(`^[0-9a-fA-F]{40}$`)
	// positionRegex matches a trailing ":12" or ":12:3-14:5" on the fragment.
	positionRegex = regexp.MustCompile(`:[0-9]+(:[0-9]+)?(-[0-9]+(:[0-9]+)?)?$`)
)

// URI is a parsed repo URI.
type URI struct {
	RepoName string
	Rev      string
	CommitID string
	FilePath string
}

// Parse parses a git:// repo URI.
func Parse(raw string) (URI, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return URI{}, fmt.Errorf("%w %q: %v", ErrInvalid, raw, err)
	}
	if u.Scheme != "git" {
		return URI{}, fmt.Errorf("%w %q: scheme must be git", ErrInvalid, raw)
	}

	repo := strings.Trim(u.Host+u.Path, "/")
	if repo == "" {
		return URI{}, fmt.Errorf("%w %q: missing repository", ErrInvalid, raw)
	}

	path := positionRegex.ReplaceAllString(u.Fragment, "")
	if path == "" {
		return URI{}, fmt.Errorf("%w %q: missing file path", ErrInvalid, raw)
	}

	out := URI{RepoName: repo, FilePath: path}
	rev, err := url.PathUnescape(u.RawQuery)
	if err != nil {
		return URI{}, fmt.Errorf("%w %q: %v", ErrInvalid, raw, err)
	}
	if commitIDRegex.MatchString(rev) {
		out.CommitID = rev
	} else {
		out.Rev = rev
	}
	return out, nil
}

// EffectiveRev returns the revision to resolve: the symbolic rev if set,
// otherwise the commit ID. An empty result means the default branch.
func (u URI) EffectiveRev() string {
	if u.Rev != "" {
		return u.Rev
	}
	return u.CommitID
}

// Immutable reports whether the URI is pinned to a commit.
func (u URI) Immutable() bool {
	return u.Rev == "" && u.CommitID != ""
}

// OwnerRepo splits a code-host repo name like github.com/owner/repo into
// its owner and repository parts.
func (u URI) OwnerRepo() (host, owner, repo string, err error) {
	parts := strings.Split(u.RepoName, "/")
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("%w: repository %q is not host/owner/name", ErrInvalid, u.RepoName)
	}
	return parts[0], parts[1], parts[2], nil
}
