package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spiffcs/inbox/config"
	"github.com/spiffcs/inbox/internal/log"
	"github.com/spiffcs/inbox/internal/model"
	"github.com/spiffcs/inbox/internal/output"
	"github.com/spiffcs/inbox/internal/service"
	"github.com/spiffcs/inbox/internal/srcgql"
	"github.com/spiffcs/inbox/internal/tui"
	"github.com/spiffcs/inbox/internal/view"
)

// listOptions holds the flags of the list command.
type listOptions struct {
	Query        string
	SettingsFile string
	Interactive  bool
}

// NewCmdList creates the list command.
func NewCmdList(opts *Options) *cobra.Command {
	lo := &listOptions{}

	cmd := &cobra.Command{
		Use:   "list <thread-id>",
		Short: "List the inbox items of a thread",
		Long: `Fetches a discussion thread and its targets, keeps the repository
targets matching the query, and prints them.

The query understands three tokens anywhere in the text:
  is:open     items not ignored and not handled by a pull request
  is:ignored  ignored items not handled by a pull request
  repo:NAME   items in repository NAME (first token only)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, args[0], opts, lo)
		},
	}

	cmd.Flags().StringVarP(&lo.Query, "query", "q", "", "Filter query (is:open, is:ignored, repo:NAME)")
	cmd.Flags().StringVar(&lo.SettingsFile, "settings", "", "Read thread settings from a JSON file instead of the thread")
	cmd.Flags().BoolVarP(&lo.Interactive, "interactive", "i", false, "Browse the inbox in the terminal UI")
	return cmd
}

func runList(cmd *cobra.Command, threadID string, opts *Options, lo *listOptions) error {
	ctx := cmd.Context()

	rt, cleanup, err := setupRuntime(opts)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	format, err := resolveFormat(opts, cfg)
	if err != nil {
		return err
	}

	req := service.InboxRequest{ThreadID: threadID, Query: lo.Query}
	if lo.SettingsFile != "" {
		settings, err := service.LoadSettingsFile(lo.SettingsFile)
		if err != nil {
			return err
		}
		req.Settings = settings
	}

	gql := newGraphQLClient(cfg)
	svc := service.New(gql)

	if lo.Interactive && rt.useTUI {
		return runListInteractive(ctx, svc, req)
	}

	rt.startProgress(tui.ListTasks())
	result, err := loadInbox(ctx, rt, cfg, gql, svc, req)
	rt.closeProgress()
	if err != nil {
		return err
	}

	return output.NewFormatter(format).FormatInbox(result, cmd.OutOrStdout())
}

// loadInbox authenticates, fetches and filters, reporting each step to
// the progress display.
func loadInbox(ctx context.Context, rt *cmdRuntime, cfg *config.Config, gql *srcgql.Client, svc *service.InboxService, req service.InboxRequest) (*service.InboxResult, error) {
	if cfg.GetSourcegraphToken() == "" {
		rt.sendEvent(tui.TaskAuth, tui.StatusSkipped, tui.WithMessage("anonymous"))
	} else {
		rt.sendEvent(tui.TaskAuth, tui.StatusRunning)
		viewer, err := gql.Viewer(ctx)
		if err != nil {
			rt.sendEvent(tui.TaskAuth, tui.StatusError, tui.WithError(err))
			if errors.Is(err, srcgql.ErrNotAuthenticated) {
				return nil, fmt.Errorf("SRC_ACCESS_TOKEN was rejected by %s: %w", gql.Endpoint(), err)
			}
			return nil, fmt.Errorf("failed to get authenticated user: %w", err)
		}
		log.Info("authenticated", "user", viewer, "endpoint", gql.Endpoint())
		rt.sendEvent(tui.TaskAuth, tui.StatusComplete, tui.WithMessage(viewer))
	}

	rt.sendEvent(tui.TaskFetch, tui.StatusRunning)
	rt.sendEvent(tui.TaskFilter, tui.StatusRunning)
	result, err := svc.Load(ctx, req)
	rt.reportRateLimit(gql)
	if err != nil {
		rt.sendEvent(tui.TaskFetch, tui.StatusError, tui.WithError(err))
		rt.sendEvent(tui.TaskFilter, tui.StatusSkipped)
		return nil, err
	}
	rt.sendEvent(tui.TaskFetch, tui.StatusComplete, tui.WithCount(result.Total))
	rt.sendEvent(tui.TaskFilter, tui.StatusComplete,
		tui.WithCount(len(result.Items)),
		tui.WithMessage(fmt.Sprintf("%d of %d", len(result.Items), result.Total)))

	return result, nil
}

// runListInteractive shows the inbox full screen; r reloads the thread.
func runListInteractive(ctx context.Context, svc *service.InboxService, req service.InboxRequest) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	states := make(chan view.State[tui.Row], 4)
	var mu sync.Mutex
	load := func() {
		mu.Lock()
		defer mu.Unlock()
		sendState(ctx, states, view.Loading[tui.Row]())
		result, err := svc.Load(ctx, req)
		if err != nil {
			sendState(ctx, states, view.Failed[tui.Row](err))
			return
		}
		sendState(ctx, states, inboxRows(result))
	}
	go load()

	title := "Thread " + req.ThreadID
	if req.Query != "" {
		title += "  " + req.Query
	}
	m := tui.NewInboxModel(title, states,
		tui.WithInitialState(view.Loading[tui.Row]()),
		tui.WithRefresh(func() { go load() }),
	)
	return tui.RunInbox(m)
}

// inboxRows converts a loaded inbox into display rows.
func inboxRows(result *service.InboxResult) view.State[tui.Row] {
	handled := result.Settings.HandledIDs()
	return view.Map(result.State(), func(t model.TargetRepo) tui.Row {
		_, ok := handled[t.ID]
		return tui.TargetRow(t, ok)
	})
}
