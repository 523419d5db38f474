package srcgql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spiffcs/inbox/internal/model"
	"github.com/spiffcs/inbox/internal/repouri"
)

const typenameDiscussionThread = "DiscussionThread"

// ThreadInboxItems fetches a thread and its targets. The response must
// carry a DiscussionThread node with a target connection that has nodes.
func (c *Client) ThreadInboxItems(ctx context.Context, threadID string) (*model.Thread, *model.TargetConnection, error) {
	resp, err := c.Do(ctx, ThreadInboxItemsQuery, map[string]any{"threadID": threadID})
	if err != nil {
		return nil, nil, err
	}

	var data struct {
		Node *struct {
			Typename string `json:"__typename"`
			model.Thread
			Targets json.RawMessage `json:"targets"`
		} `json:"node"`
	}
	if !decodeData(resp.Data, &data) || data.Node == nil {
		return nil, nil, newAggregateError(resp.Errors, "node")
	}
	if data.Node.Typename != typenameDiscussionThread {
		return nil, nil, newAggregateError(resp.Errors, fmt.Sprintf("node is %s, not %s", data.Node.Typename, typenameDiscussionThread))
	}
	if isNull(data.Node.Targets) {
		return nil, nil, newAggregateError(resp.Errors, "node.targets")
	}

	var conn model.TargetConnection
	if err := json.Unmarshal(data.Node.Targets, &conn); err != nil {
		return nil, nil, newAggregateError(resp.Errors, "node.targets.nodes: "+err.Error())
	}

	thread := data.Node.Thread
	return &thread, &conn, nil
}

// CandidateFile fetches the blob a git:// URI points at. Any GraphQL
// error fails the lookup even when partial data came back.
func (c *Client) CandidateFile(ctx context.Context, uri string) (*model.FileEntry, error) {
	parsed, err := repouri.Parse(uri)
	if err != nil {
		return nil, err
	}

	resp, err := c.Do(ctx, CandidateFileQuery, map[string]any{
		"repo": parsed.RepoName,
		"rev":  parsed.EffectiveRev(),
		"path": parsed.FilePath,
	})
	if err != nil {
		return nil, err
	}

	var data struct {
		Repository *struct {
			Commit *struct {
				Blob *model.FileEntry `json:"blob"`
			} `json:"commit"`
		} `json:"repository"`
	}
	ok := decodeData(resp.Data, &data)
	switch {
	case !ok || data.Repository == nil:
		return nil, newAggregateError(resp.Errors, "repository")
	case data.Repository.Commit == nil:
		return nil, newAggregateError(resp.Errors, "repository.commit")
	case data.Repository.Commit.Blob == nil:
		return nil, newAggregateError(resp.Errors, "repository.commit.blob")
	case len(resp.Errors) > 0:
		return nil, newAggregateError(resp.Errors, "")
	}
	return data.Repository.Commit.Blob, nil
}

// ErrNotAuthenticated is returned by Viewer when the request carried no
// valid credentials.
var ErrNotAuthenticated = errors.New("not authenticated")

// Viewer returns the username of the authenticated user.
func (c *Client) Viewer(ctx context.Context) (string, error) {
	resp, err := c.Do(ctx, ViewerQuery, nil)
	if err != nil {
		return "", err
	}
	if len(resp.Errors) > 0 {
		return "", newAggregateError(resp.Errors, "")
	}

	var data struct {
		CurrentUser *struct {
			Username string `json:"username"`
		} `json:"currentUser"`
	}
	if !decodeData(resp.Data, &data) {
		return "", newAggregateError(nil, "currentUser")
	}
	if data.CurrentUser == nil {
		return "", ErrNotAuthenticated
	}
	return data.CurrentUser.Username, nil
}

// decodeData unmarshals a non-null data payload into v.
func decodeData(raw json.RawMessage, v any) bool {
	if isNull(raw) {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
