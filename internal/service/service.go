// Package service orchestrates the query layer, the inbox filter and the
// diagnostics aggregator for the commands.
package service

import (
	"context"
	"fmt"
	"os"

	"github.com/spiffcs/inbox/internal/inbox"
	"github.com/spiffcs/inbox/internal/log"
	"github.com/spiffcs/inbox/internal/model"
	"github.com/spiffcs/inbox/internal/view"
)

// ThreadSource fetches a thread and its targets.
type ThreadSource interface {
	ThreadInboxItems(ctx context.Context, threadID string) (*model.Thread, *model.TargetConnection, error)
}

// InboxService loads a thread inbox.
type InboxService struct {
	source ThreadSource
}

// New creates an InboxService over source.
func New(source ThreadSource) *InboxService {
	return &InboxService{source: source}
}

// InboxRequest selects a thread and narrows its targets.
type InboxRequest struct {
	ThreadID string
	Query    string
	// Settings overrides the settings stored on the thread when set.
	Settings *model.ThreadSettings
}

// InboxResult is a loaded and filtered inbox.
type InboxResult struct {
	Thread   *model.Thread
	Settings model.ThreadSettings
	Query    inbox.Query
	// Total is the number of target nodes before filtering.
	Total int
	Items []model.TargetRepo
}

// State returns the result as a view state.
func (r *InboxResult) State() view.State[model.TargetRepo] {
	return view.Loaded(r.Items)
}

// Load fetches the thread and filters its targets.
func (s *InboxService) Load(ctx context.Context, req InboxRequest) (*InboxResult, error) {
	if req.ThreadID == "" {
		return nil, fmt.Errorf("thread ID is required")
	}

	thread, conn, err := s.source.ThreadInboxItems(ctx, req.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch thread %s: %w", req.ThreadID, err)
	}

	settings, err := s.settingsFor(thread, req.Settings)
	if err != nil {
		return nil, err
	}

	items := inbox.Filter(conn.Nodes, req.Query, settings)
	log.Debug("filtered inbox", "thread", thread.ID, "query", req.Query, "total", len(conn.Nodes), "kept", len(items))

	return &InboxResult{
		Thread:   thread,
		Settings: settings,
		Query:    inbox.ParseQuery(req.Query),
		Total:    len(conn.Nodes),
		Items:    items,
	}, nil
}

func (s *InboxService) settingsFor(thread *model.Thread, override *model.ThreadSettings) (model.ThreadSettings, error) {
	if override != nil {
		return *override, nil
	}
	settings, err := thread.ParsedSettings()
	if err != nil {
		return model.ThreadSettings{}, fmt.Errorf("thread %s: %w", thread.ID, err)
	}
	return settings, nil
}

// LoadSettingsFile reads thread settings from a JSON file.
func LoadSettingsFile(path string) (*model.ThreadSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}
	settings, err := model.ParseThreadSettings(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &settings, nil
}
