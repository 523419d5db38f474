package cmd

import (
	"fmt"
	"io"
	"time"

	gh "github.com/google/go-github/v57/github"
	"github.com/spf13/cobra"
	"github.com/spiffcs/inbox/internal/ghclient"
	"github.com/spiffcs/inbox/internal/log"
	"github.com/spiffcs/inbox/internal/ratelimit"
)

// NewCmdRateLimit creates the ratelimit command.
func NewCmdRateLimit(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Check API rate limit status",
		Long:  `Display current rate limit status for the GraphQL endpoint and, when GITHUB_TOKEN is set, the GitHub API.`,
	}
	cmd.AddCommand(NewCmdRateLimitStatus(opts))
	return cmd
}

// NewCmdRateLimitStatus creates the ratelimit status subcommand.
func NewCmdRateLimitStatus(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show current rate limit status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRateLimitStatus(cmd, opts)
		},
	}
}

func runRateLimitStatus(cmd *cobra.Command, opts *Options) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	_, cleanup, err := setupRuntime(NewOptions(WithVerbosity(opts.Verbosity), WithLogFile(opts.LogFile), WithTUI(new(bool))))
	if err != nil {
		return err
	}
	defer cleanup()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// The GraphQL endpoint reports limits only as response headers, so
	// issue a cheap request first.
	gql := newGraphQLClient(cfg)
	if _, err := gql.Viewer(ctx); err != nil {
		log.Debug("viewer request failed", "error", err)
	}
	fmt.Fprintf(w, "GraphQL (%s):\n", gql.Endpoint())
	printStatus(w, "API", gql.RateLimit())

	token := cfg.GetGitHubToken()
	if token == "" {
		fmt.Fprintln(w, "\nGitHub: GITHUB_TOKEN not set")
		return nil
	}

	client, err := ghclient.NewClient(ctx, token)
	if err != nil {
		return err
	}
	limits, err := client.RateLimits(ctx)
	if err != nil {
		return fmt.Errorf("failed to get rate limits: %w", err)
	}

	fmt.Fprintln(w, "\nGitHub API:")
	printRate(w, "Core", limits.Core)
	printRate(w, "Search", limits.Search)
	printRate(w, "GraphQL", limits.GraphQL)
	return nil
}

func printStatus(w io.Writer, name string, st ratelimit.Status) {
	if !st.Known() {
		fmt.Fprintf(w, "  %-8s unknown (no rate limit headers)\n", name+":")
		return
	}
	fmt.Fprintf(w, "  %-8s %d/%d remaining (resets in %s)\n",
		name+":", st.Remaining, st.Limit, resetIn(st.ResetAt))
}

func printRate(w io.Writer, name string, r *gh.Rate) {
	if r == nil {
		return
	}
	fmt.Fprintf(w, "  %-8s %d/%d remaining (resets in %s)\n",
		name+":", r.Remaining, r.Limit, resetIn(r.Reset.Time))
}

func resetIn(t time.Time) time.Duration {
	d := time.Until(t).Round(time.Second)
	if d < 0 {
		return 0
	}
	return d
}
