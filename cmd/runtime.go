package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spiffcs/inbox/config"
	"github.com/spiffcs/inbox/internal/candidate"
	"github.com/spiffcs/inbox/internal/ghclient"
	"github.com/spiffcs/inbox/internal/log"
	"github.com/spiffcs/inbox/internal/output"
	"github.com/spiffcs/inbox/internal/srcgql"
	"github.com/spiffcs/inbox/internal/tui"
)

// cmdRuntime bundles TUI-related state threaded through a command.
type cmdRuntime struct {
	useTUI  bool
	events  chan tui.Event
	tuiDone chan error
}

// setupRuntime starts profiling, decides on TUI mode and initializes
// logging. The returned cleanup stops profiling and closes the log file.
func setupRuntime(opts *Options) (*cmdRuntime, func(), error) {
	profiler := NewProfiler(opts.CPUProfile, opts.MemProfile, opts.Trace)
	if err := profiler.Start(); err != nil {
		return nil, nil, err
	}

	useTUI := shouldUseTUI(opts)

	// Suppress terminal logs during TUI to avoid interleaving with display
	var w io.Writer = os.Stderr
	if useTUI {
		w = io.Discard
	}
	log.Initialize(opts.Verbosity, w, log.Options{LogFile: opts.LogFile})

	cleanup := func() {
		profiler.Stop()
		if err := log.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "could not close log file: %v\n", err)
		}
	}
	return &cmdRuntime{useTUI: useTUI}, cleanup, nil
}

// startProgress starts the progress TUI goroutine if TUI mode is enabled.
func (rt *cmdRuntime) startProgress(tasks []tui.Task) {
	if !rt.useTUI {
		return
	}
	rt.events = make(chan tui.Event, 100)
	rt.tuiDone = make(chan error, 1)
	go func() {
		rt.tuiDone <- tui.Run(rt.events, tui.WithTasks(tasks))
	}()
}

// closeProgress closes the event channel and waits for the TUI to finish.
// It is safe to call more than once.
func (rt *cmdRuntime) closeProgress() {
	if rt.events == nil {
		return
	}
	close(rt.events)
	rt.events = nil
	if rt.tuiDone != nil {
		if err := <-rt.tuiDone; err != nil {
			log.Debug("progress display exited", "error", err)
		}
		rt.tuiDone = nil
	}
}

// sendEvent sends a task event to the TUI channel if it exists.
func (rt *cmdRuntime) sendEvent(task tui.TaskID, status tui.TaskStatus, opts ...tui.TaskEventOption) {
	if rt.events == nil {
		return
	}
	tui.SendTaskEvent(rt.events, task, status, opts...)
}

// reportRateLimit forwards a throttled backend to the progress display.
func (rt *cmdRuntime) reportRateLimit(c *srcgql.Client) {
	st := c.RateLimit()
	if !st.Limited {
		return
	}
	log.Warn("rate limited", "endpoint", c.Endpoint(), "reset", st.ResetAt)
	tui.SendEvent(rt.events, tui.RateLimitEvent{Limited: true, ResetAt: st.ResetAt})
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newGraphQLClient creates a client for the configured endpoint.
func newGraphQLClient(cfg *config.Config) *srcgql.Client {
	token := cfg.GetSourcegraphToken()
	if token == "" {
		log.Info("SRC_ACCESS_TOKEN not set, sending anonymous requests")
	}
	return srcgql.NewClient(cfg.GetEndpoint(), srcgql.WithToken(token))
}

// newResolver builds the candidate file cache over the configured source,
// backed by the on-disk blob cache when it is available.
func newResolver(ctx context.Context, cfg *config.Config, gql *srcgql.Client, extra ...candidate.Option) (*candidate.Cache, error) {
	var fetcher candidate.Fetcher = gql
	if cfg.FileSource == config.FileSourceGitHub {
		gh, err := ghclient.NewClient(ctx, cfg.GetGitHubToken())
		if err != nil {
			return nil, err
		}
		fetcher = gh
	}

	opts := []candidate.Option{candidate.WithConcurrency(cfg.GetConcurrency())}

	ttl, err := cfg.GetCacheTTL()
	if err != nil {
		return nil, err
	}
	if store, err := openBlobCache(ttl); err != nil {
		log.Warn("failed to initialize cache", "error", err)
	} else {
		opts = append(opts, candidate.WithStore(store))
	}

	opts = append(opts, extra...)

	log.Debug("resolving candidate files", "source", cfg.FileSource, "concurrency", cfg.GetConcurrency())
	return candidate.New(fetcher, opts...), nil
}

// resolveFormat picks the flag format, falling back to the configured default.
func resolveFormat(opts *Options, cfg *config.Config) (output.Format, error) {
	if opts.Format != "" {
		return output.ParseFormat(opts.Format)
	}
	return output.ParseFormat(cfg.DefaultFormat)
}

// sendState delivers v unless ctx is done first.
func sendState[T any](ctx context.Context, ch chan<- T, v T) {
	select {
	case ch <- v:
	case <-ctx.Done():
	}
}
