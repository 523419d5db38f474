package ghclient

import (
	"context"
	"fmt"

	gh "github.com/google/go-github/v57/github"
	"github.com/spiffcs/inbox/internal/log"
	"github.com/spiffcs/inbox/internal/model"
	"github.com/spiffcs/inbox/internal/repouri"
)

// CandidateFile resolves a git://github.com/owner/repo?rev#path URI with
// the contents API. An empty rev reads the default branch.
func (c *Client) CandidateFile(ctx context.Context, uri string) (*model.FileEntry, error) {
	u, err := repouri.Parse(uri)
	if err != nil {
		return nil, err
	}
	_, owner, repo, err := u.OwnerRepo()
	if err != nil {
		return nil, err
	}

	ref := u.EffectiveRev()
	var opts *gh.RepositoryContentGetOptions
	if ref != "" {
		opts = &gh.RepositoryContentGetOptions{Ref: ref}
	}

	log.Debug("fetching contents", "owner", owner, "repo", repo, "path", u.FilePath, "ref", ref)
	file, dir, _, err := c.client.Repositories.GetContents(ctx, owner, repo, u.FilePath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get contents of %s/%s/%s: %w", owner, repo, u.FilePath, err)
	}
	if file == nil {
		return nil, fmt.Errorf("%s is a directory with %d entries, not a file", u.FilePath, len(dir))
	}
	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode contents of %s: %w", u.FilePath, err)
	}

	oid := u.CommitID
	if oid == "" {
		if ref == "" {
			ref = "HEAD"
		}
		oid, _, err = c.client.Repositories.GetCommitSHA1(ctx, owner, repo, ref, "")
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s in %s/%s: %w", ref, owner, repo, err)
		}
	}

	return &model.FileEntry{
		Path:       file.GetPath(),
		Content:    content,
		Repository: model.RepositoryRef{Name: u.RepoName},
		Commit:     model.Commit{OID: oid},
	}, nil
}
