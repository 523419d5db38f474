// Package model contains domain types for the thread inbox.
// These types are independent of the GraphQL transport that produces them.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Thread is a discussion thread as returned by the backend.
type Thread struct {
	ID            string `json:"id"`
	IDWithoutKind string `json:"idWithoutKind"`
	Title         string `json:"title"`
	Type          string `json:"type"`
	// Settings is the opaque JSON settings blob; see ParseThreadSettings.
	Settings string `json:"settings"`
}

// ThreadSettings is the decoded form of a thread's settings blob.
type ThreadSettings struct {
	PullRequests []PullRequest `json:"pullRequests,omitempty"`
}

// PullRequest records a changeset opened for a thread and the target
// items it takes care of.
type PullRequest struct {
	Repo   string   `json:"repo"`
	Number int      `json:"number,omitempty"`
	Title  string   `json:"title,omitempty"`
	Status string   `json:"status,omitempty"`
	Items  []string `json:"items"`
}

// ParseThreadSettings decodes a settings blob. An empty blob yields zero settings.
func ParseThreadSettings(raw string) (ThreadSettings, error) {
	var s ThreadSettings
	if strings.TrimSpace(raw) == "" {
		return s, nil
	}
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return ThreadSettings{}, fmt.Errorf("invalid thread settings: %w", err)
	}
	return s, nil
}

// ParsedSettings decodes the thread's settings blob.
func (t *Thread) ParsedSettings() (ThreadSettings, error) {
	return ParseThreadSettings(t.Settings)
}

// HandledIDs returns the set of target item IDs listed by any pull request.
func (s ThreadSettings) HandledIDs() map[string]struct{} {
	ids := make(map[string]struct{})
	for _, pr := range s.PullRequests {
		for _, id := range pr.Items {
			ids[id] = struct{}{}
		}
	}
	return ids
}

// ItemsForRepo returns the union of item IDs of pull requests on repo.
func (s ThreadSettings) ItemsForRepo(repo string) map[string]struct{} {
	ids := make(map[string]struct{})
	for _, pr := range s.PullRequests {
		if pr.Repo != repo {
			continue
		}
		for _, id := range pr.Items {
			ids[id] = struct{}{}
		}
	}
	return ids
}
