package model

import (
	"encoding/json"
	"fmt"
)

// TypenameTargetRepo is the GraphQL typename of repository targets.
const TypenameTargetRepo = "DiscussionThreadTargetRepo"

// TargetItem is one node of a thread's target connection. Only
// TargetRepo carries data the inbox uses; other variants are kept so the
// raw connection round-trips.
type TargetItem interface {
	TargetID() string
	Typename() string
}

// RepositoryRef names a repository.
type RepositoryRef struct {
	Name string `json:"name"`
}

// Selection is the line range a repo target points at.
type Selection struct {
	StartLine      int    `json:"startLine"`
	StartCharacter int    `json:"startCharacter"`
	EndLine        int    `json:"endLine"`
	EndCharacter   int    `json:"endCharacter"`
	LinesBefore    string `json:"linesBefore,omitempty"`
	Lines          string `json:"lines,omitempty"`
	LinesAfter     string `json:"linesAfter,omitempty"`
}

// TargetRepo is a thread target inside a repository.
type TargetRepo struct {
	ID         string        `json:"id"`
	IsIgnored  bool          `json:"isIgnored"`
	Repository RepositoryRef `json:"repository"`
	Path       string        `json:"path,omitempty"`
	Branch     string        `json:"branch,omitempty"`
	Revision   string        `json:"revision,omitempty"`
	URL        string        `json:"url,omitempty"`
	Selection  *Selection    `json:"selection,omitempty"`
}

// TargetID returns the target's node ID.
func (t TargetRepo) TargetID() string { return t.ID }

// Typename returns the GraphQL __typename of a repo target.
func (t TargetRepo) Typename() string { return TypenameTargetRepo }

// TargetOther is any target variant the inbox does not handle.
type TargetOther struct {
	ID   string `json:"id"`
	Kind string `json:"__typename"`
}

// TargetID returns the target's node ID.
func (t TargetOther) TargetID() string { return t.ID }

// Typename returns the __typename the target was decoded from.
func (t TargetOther) Typename() string { return t.Kind }

// PageInfo describes pagination of a connection.
type PageInfo struct {
	HasNextPage bool `json:"hasNextPage"`
}

// TargetConnection is a page of thread targets.
type TargetConnection struct {
	Nodes      []TargetItem `json:"-"`
	TotalCount int          `json:"totalCount"`
	PageInfo   PageInfo     `json:"pageInfo"`
}

// wireTargetRepo mirrors the GraphQL shape, where branch and revision are
// objects with a display name.
type wireTargetRepo struct {
	ID         string        `json:"id"`
	IsIgnored  bool          `json:"isIgnored"`
	Repository RepositoryRef `json:"repository"`
	Path       string        `json:"path"`
	Branch     *displayName  `json:"branch"`
	Revision   *displayName  `json:"revision"`
	URL        string        `json:"url"`
	Selection  *Selection    `json:"selection"`
}

type displayName struct {
	DisplayName string `json:"displayName"`
}

func (d *displayName) String() string {
	if d == nil {
		return ""
	}
	return d.DisplayName
}

// UnmarshalJSON decodes the union by its __typename.
func (c *TargetConnection) UnmarshalJSON(data []byte) error {
	var raw struct {
		Nodes      []json.RawMessage `json:"nodes"`
		TotalCount int               `json:"totalCount"`
		PageInfo   PageInfo          `json:"pageInfo"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Nodes == nil {
		return fmt.Errorf("target connection has no nodes")
	}

	nodes := make([]TargetItem, 0, len(raw.Nodes))
	for i, n := range raw.Nodes {
		item, err := DecodeTargetItem(n)
		if err != nil {
			return fmt.Errorf("target node %d: %w", i, err)
		}
		nodes = append(nodes, item)
	}

	c.Nodes = nodes
	c.TotalCount = raw.TotalCount
	c.PageInfo = raw.PageInfo
	return nil
}

// MarshalJSON encodes nodes tagged with their __typename.
func (c TargetConnection) MarshalJSON() ([]byte, error) {
	nodes := make([]map[string]any, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		b, err := json.Marshal(n)
		if err != nil {
			return nil, err
		}
		var m map[string]any
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, err
		}
		m["__typename"] = n.Typename()
		nodes = append(nodes, m)
	}
	return json.Marshal(struct {
		Nodes      []map[string]any `json:"nodes"`
		TotalCount int              `json:"totalCount"`
		PageInfo   PageInfo         `json:"pageInfo"`
	}{nodes, c.TotalCount, c.PageInfo})
}

// DecodeTargetItem decodes a single target node.
func DecodeTargetItem(data json.RawMessage) (TargetItem, error) {
	var head struct {
		Typename string `json:"__typename"`
		ID       string `json:"id"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	if head.Typename == "" {
		return nil, fmt.Errorf("missing __typename")
	}

	if head.Typename != TypenameTargetRepo {
		return TargetOther{ID: head.ID, Kind: head.Typename}, nil
	}

	var w wireTargetRepo
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return TargetRepo{
		ID:         w.ID,
		IsIgnored:  w.IsIgnored,
		Repository: w.Repository,
		Path:       w.Path,
		Branch:     w.Branch.String(),
		Revision:   w.Revision.String(),
		URL:        w.URL,
		Selection:  w.Selection,
	}, nil
}
