package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spiffcs/inbox/config"
	"github.com/spiffcs/inbox/internal/candidate"
	"github.com/spiffcs/inbox/internal/diagnostics"
	"github.com/spiffcs/inbox/internal/log"
	"github.com/spiffcs/inbox/internal/output"
	"github.com/spiffcs/inbox/internal/service"
	"github.com/spiffcs/inbox/internal/tui"
	"github.com/spiffcs/inbox/internal/view"
)

// diagnosticsOptions holds the flags of the diagnostics command.
type diagnosticsOptions struct {
	File  string
	Watch bool
}

// NewCmdDiagnostics creates the diagnostics command.
func NewCmdDiagnostics(opts *Options) *cobra.Command {
	do := &diagnosticsOptions{}

	cmd := &cobra.Command{
		Use:   "diagnostics",
		Short: "Show diagnostics joined with their files",
		Long: `Reads a diagnostics feed, resolves the file each diagnostic was
reported on, and prints one row per diagnostic in feed order.

The feed is a JSON array of {"url": "git://repo?rev#path", "diagnostics": [...]}
entries. With --watch the feed is re-read whenever the file changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDiagnostics(cmd, opts, do)
		},
	}

	cmd.Flags().StringVarP(&do.File, "file", "f", "", "Diagnostics feed file (default: config diagnostics_file)")
	cmd.Flags().BoolVarP(&do.Watch, "watch", "w", false, "Keep running and update when the feed changes")
	return cmd
}

func runDiagnostics(cmd *cobra.Command, opts *Options, do *diagnosticsOptions) error {
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

	path := do.File
	if path == "" {
		path = cfg.DiagnosticsFile
	}
	if path == "" {
		return fmt.Errorf("no diagnostics feed: pass --file or set diagnostics_file in %s", config.ConfigPath())
	}

	coll, err := diagnostics.OpenFile(path)
	if err != nil {
		return err
	}
	defer coll.Close()

	var extra []candidate.Option
	if !do.Watch {
		extra = append(extra, candidate.WithProgress(func(completed, total int) {
			rt.sendEvent(tui.TaskResolve, tui.StatusRunning,
				tui.WithProgress(float64(completed)/float64(total)),
				tui.WithMessage(fmt.Sprintf("%d/%d files", completed, total)))
		}))
	}
	resolver, err := newResolver(ctx, cfg, newGraphQLClient(cfg), extra...)
	if err != nil {
		return err
	}

	formatter := output.NewFormatter(format)
	if do.Watch {
		if err := coll.Watch(); err != nil {
			return err
		}
		if rt.useTUI {
			return watchDiagnosticsTUI(ctx, coll, resolver)
		}
		return watchDiagnostics(ctx, coll, resolver, formatter, cmd.OutOrStdout())
	}

	rt.startProgress(tui.DiagnosticsTasks())
	rt.sendEvent(tui.TaskResolve, tui.StatusRunning)
	state := service.SnapshotDiagnostics(ctx, coll, resolver)
	if err := state.Err(); err != nil {
		rt.sendEvent(tui.TaskResolve, tui.StatusError, tui.WithError(err))
		rt.closeProgress()
		return err
	}
	rt.sendEvent(tui.TaskResolve, tui.StatusComplete,
		tui.WithCount(len(state.Items())),
		tui.WithMessage(fmt.Sprintf("%d files", resolver.Len())))
	rt.closeProgress()

	return formatter.FormatDiagnostics(state.Items(), cmd.OutOrStdout())
}

// watchDiagnosticsTUI runs the aggregator behind the interactive inbox.
func watchDiagnosticsTUI(ctx context.Context, coll diagnostics.Collection, resolver diagnostics.Resolver) error {
	ctx, cancel := context.WithCancel(ctx)

	states := make(chan view.State[tui.Row], 4)
	agg := diagnostics.NewAggregator(coll, resolver, func(s diagnostics.State) {
		sendState(ctx, states, view.Map(s, tui.DiagnosticRow))
	})
	if err := agg.Start(ctx); err != nil {
		cancel()
		return err
	}

	m := tui.NewInboxModel("Diagnostics", states,
		tui.WithInitialState(view.Loading[tui.Row]()),
		tui.WithRefresh(agg.Refresh),
	)
	err := tui.RunInbox(m)

	// Unblock any publication waiting on the channel before disposing.
	cancel()
	agg.Dispose()
	return err
}

// watchDiagnostics prints every settled state until ctx is done.
func watchDiagnostics(ctx context.Context, coll diagnostics.Collection, resolver diagnostics.Resolver, formatter output.Formatter, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)

	states := make(chan diagnostics.State, 4)
	agg := diagnostics.NewAggregator(coll, resolver, func(s diagnostics.State) {
		sendState(ctx, states, s)
	})
	if err := agg.Start(ctx); err != nil {
		cancel()
		return err
	}
	defer func() {
		cancel()
		agg.Dispose()
	}()

	// Errors are sticky until an explicit refresh.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			agg.Refresh()
		case s := <-states:
			switch s.Kind() {
			case view.KindLoading:
				log.Info("resolving diagnostics")
			case view.KindError:
				log.Error("diagnostics failed", "error", s.Err())
				fmt.Fprintf(os.Stderr, "%s (send SIGHUP to retry)\n", s.Message())
			default:
				if err := formatter.FormatDiagnostics(s.Items(), w); err != nil {
					return err
				}
			}
		}
	}
}
