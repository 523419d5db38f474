package cmd

import (
	"github.com/spf13/cobra"
)

// New creates the root command with all subcommands registered.
func New() *cobra.Command {
	opts := NewOptions()

	rootCmd := &cobra.Command{
		Use:   "inbox",
		Short: "Thread inbox and diagnostics viewer",
		Long: `A CLI tool that lists the repository targets of a discussion thread,
narrowed by a free-text query and the thread's pull request settings, and
shows diagnostics joined with the files they were reported on.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	addGlobalFlags(rootCmd, opts)

	// Register subcommands
	rootCmd.AddCommand(NewCmdList(opts))
	rootCmd.AddCommand(NewCmdDiagnostics(opts))
	rootCmd.AddCommand(NewCmdConfig())
	rootCmd.AddCommand(NewCmdCache())
	rootCmd.AddCommand(NewCmdVersion())
	rootCmd.AddCommand(NewCmdRateLimit(opts))

	return rootCmd
}

// addGlobalFlags adds the flags shared by every command.
func addGlobalFlags(cmd *cobra.Command, opts *Options) {
	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.Format, "output", "o", "", "Output format (table, json, markdown)")
	flags.CountVarP(&opts.Verbosity, "verbose", "v", "Increase verbosity (-v info, -vv debug, -vvv trace)")
	flags.StringVar(&opts.LogFile, "log-file", "", "Also write logs to a rotating file")

	// TUI flag with tri-state: nil = auto, true = force, false = disable
	flags.Var(newTUIFlag(opts), "tui", "Enable/disable the terminal UI (default: auto-detect)")
	flags.Lookup("tui").NoOptDefVal = "true"

	// Profiling flags
	flags.StringVar(&opts.CPUProfile, "cpuprofile", "", "Write CPU profile to file")
	flags.StringVar(&opts.MemProfile, "memprofile", "", "Write memory profile to file")
	flags.StringVar(&opts.Trace, "trace", "", "Write execution trace to file")
	_ = flags.MarkHidden("cpuprofile")
	_ = flags.MarkHidden("memprofile")
	_ = flags.MarkHidden("trace")
}
