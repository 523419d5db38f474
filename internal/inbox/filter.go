// Package inbox narrows a thread's targets to the items shown in its inbox.
package inbox

import (
	"regexp"
	"strings"

	"github.com/spiffcs/inbox/internal/model"
)

const (
	tokenOpen    = "is:open"
	tokenIgnored = "is:ignored"
)

var repoRegex = regexp.MustCompile(`repo:(\S+)`)

// Query holds the flags recognized in a free-text inbox query.
type Query struct {
	Open    bool
	Ignored bool
	// Repo is the value of the first repo: token, empty if absent.
	Repo string
}

// ParseQuery extracts the status and repo flags from query. Tokens are
// matched by substring, so "is:openish" still counts as is:open.
func ParseQuery(query string) Query {
	q := Query{
		Open:    strings.Contains(query, tokenOpen),
		Ignored: strings.Contains(query, tokenIgnored),
	}
	if m := repoRegex.FindStringSubmatch(query); m != nil {
		q.Repo = m[1]
	}
	return q
}

// HasStatus reports whether the query restricts by status.
func (q Query) HasStatus() bool {
	return q.Open || q.Ignored
}

// String renders the recognized tokens in canonical order.
func (q Query) String() string {
	var parts []string
	if q.Open {
		parts = append(parts, tokenOpen)
	}
	if q.Ignored {
		parts = append(parts, tokenIgnored)
	}
	if q.Repo != "" {
		parts = append(parts, "repo:"+q.Repo)
	}
	return strings.Join(parts, " ")
}

// Filter returns the repo targets in nodes that match query and settings,
// in input order. Non-repo targets are dropped, as are repeated IDs.
func Filter(nodes []model.TargetItem, query string, settings model.ThreadSettings) []model.TargetRepo {
	q := ParseQuery(query)
	handled := settings.HandledIDs()

	var repoItems map[string]struct{}
	if q.Repo != "" {
		repoItems = settings.ItemsForRepo(q.Repo)
	}

	out := make([]model.TargetRepo, 0, len(nodes))
	seen := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		item, ok := n.(model.TargetRepo)
		if !ok {
			continue
		}
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}

		if !q.matchStatus(item, handled) {
			continue
		}
		if repoItems != nil {
			if _, ok := repoItems[item.ID]; !ok {
				continue
			}
		}
		out = append(out, item)
	}
	return out
}

func (q Query) matchStatus(item model.TargetRepo, handled map[string]struct{}) bool {
	if !q.HasStatus() {
		return true
	}
	if _, ok := handled[item.ID]; ok {
		return false
	}
	if q.Open && !item.IsIgnored {
		return true
	}
	return q.Ignored && item.IsIgnored
}
