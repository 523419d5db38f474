package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spiffcs/inbox/config"
)

// configKey is a key that "inbox config get/set" understands.
type configKey struct {
	name    string
	aliases []string
	usage   string
	get     func(*config.Config) string
	set     func(*config.Config, string) error
}

var configKeys = []configKey{
	{
		name:    "default_format",
		aliases: []string{"format"},
		usage:   "Output format for list and diagnostics (table, json, markdown)",
		get:     func(c *config.Config) string { return c.DefaultFormat },
		set:     func(c *config.Config, v string) error { c.DefaultFormat = v; return nil },
	},
	{
		name:  "endpoint",
		usage: "GraphQL endpoint threads and candidate files are queried from",
		get:   func(c *config.Config) string { return c.GetEndpoint() },
		set:   func(c *config.Config, v string) error { c.Endpoint = v; return nil },
	},
	{
		name:  "file_source",
		usage: "Backend candidate files are fetched from (graphql, github)",
		get:   func(c *config.Config) string { return c.FileSource },
		set:   func(c *config.Config, v string) error { c.FileSource = v; return nil },
	},
	{
		name:  "diagnostics_file",
		usage: "Diagnostics feed read when --file is not given",
		get:   func(c *config.Config) string { return c.DiagnosticsFile },
		set: func(c *config.Config, v string) error {
			abs, err := filepath.Abs(v)
			if err != nil {
				return err
			}
			c.DiagnosticsFile = abs
			return nil
		},
	},
	{
		name:  "cache_ttl",
		usage: "Freshness of cached blobs at branch revisions (e.g. 12h, 2d)",
		get: func(c *config.Config) string {
			if c.CacheTTL != "" {
				return c.CacheTTL
			}
			ttl, _ := c.GetCacheTTL()
			return ttl.String()
		},
		set: func(c *config.Config, v string) error { c.CacheTTL = v; return nil },
	},
	{
		name:  "concurrency",
		usage: "Candidate files resolved in parallel",
		get:   func(c *config.Config) string { return strconv.Itoa(c.GetConcurrency()) },
		set: func(c *config.Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid concurrency: %s", v)
			}
			c.Concurrency = n
			return nil
		},
	},
}

func lookupConfigKey(name string) (configKey, error) {
	for _, k := range configKeys {
		if k.name == name {
			return k, nil
		}
		for _, a := range k.aliases {
			if a == name {
				return k, nil
			}
		}
	}
	if strings.Contains(name, "token") {
		return configKey{}, fmt.Errorf("tokens are read from SRC_ACCESS_TOKEN and GITHUB_TOKEN only")
	}
	return configKey{}, fmt.Errorf("unknown config key: %s", name)
}

// configKeyHelp lists the keys for command help.
func configKeyHelp() string {
	var b strings.Builder
	for _, k := range configKeys {
		fmt.Fprintf(&b, "\n  %-17s %s", k.name, k.usage)
	}
	return b.String()
}

// NewCmdConfig creates the config command.
func NewCmdConfig() *cobra.Command {
	show := newCmdConfigShow()

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or edit inbox configuration",
		Long: `Inspect or edit inbox configuration.

Settings are merged from the global file, then ./.inbox.yaml, then
INBOX_<KEY> environment variables. Without a subcommand the merged
result is printed.

Keys:` + configKeyHelp(),
		RunE: show.RunE,
	}
	cmd.Flags().AddFlagSet(show.Flags())

	cmd.AddCommand(show)
	cmd.AddCommand(newCmdConfigGet())
	cmd.AddCommand(newCmdConfigSet())
	cmd.AddCommand(newCmdConfigInit())
	cmd.AddCommand(newCmdConfigPath())
	return cmd
}

func newCmdConfigShow() *cobra.Command {
	var (
		format   string
		defaults bool
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.DefaultConfig()
			if !defaults {
				var err error
				if cfg, err = config.Load(); err != nil {
					return err
				}
			}
			return writeConfig(cmd.OutOrStdout(), cfg, format)
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", "yaml", "Output format (yaml, json)")
	cmd.Flags().BoolVar(&defaults, "defaults", false, "Print built-in defaults instead of the merged configuration")
	return cmd
}

// writeConfig prints cfg. YAML output ends with comments reporting which
// credentials are present in the environment.
func writeConfig(w io.Writer, cfg *config.Config, format string) error {
	switch format {
	case "yaml":
		out, err := cfg.ToYAML()
		if err != nil {
			return err
		}
		fmt.Fprint(w, out)
		fmt.Fprintf(w, "# SRC_ACCESS_TOKEN: %s\n", presence(cfg.GetSourcegraphToken()))
		fmt.Fprintf(w, "# GITHUB_TOKEN: %s\n", presence(cfg.GetGitHubToken()))
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
	default:
		return fmt.Errorf("invalid format: %s (must be yaml or json)", format)
	}
	return nil
}

func presence(token string) string {
	if token == "" {
		return "not set"
	}
	return "set"
}

func newCmdConfigGet() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one effective configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := lookupConfigKey(args[0])
			if err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key.get(cfg))
			return nil
		},
	}
}

func newCmdConfigSet() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write a value to the global config file",
		Long:  "Write a value to the global config file.\n\nKeys:" + configKeyHelp(),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd.OutOrStdout(), config.ConfigPath(), args[0], args[1])
		},
	}
}

// runConfigSet updates key in the file at path only, so values from a
// local file or the environment are never persisted globally.
func runConfigSet(w io.Writer, path, name, value string) error {
	key, err := lookupConfigKey(name)
	if err != nil {
		return err
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	if err := key.set(cfg, value); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	out, err := cfg.ToYAML()
	if err != nil {
		return err
	}
	if err := config.SaveTo(path, out); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s = %s (%s)\n", key.name, key.get(cfg), path)
	return nil
}

func newCmdConfigInit() *cobra.Command {
	var local, force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		Long: `Write a commented starter config file.

By default the global file is written. --local writes ./.inbox.yaml,
which overrides the global file when inbox runs from this directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := config.ConfigPath()
			if local {
				path = config.LocalConfigPath()
			}
			return runConfigInit(cmd.OutOrStdout(), path, force)
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "Write ./.inbox.yaml instead of the global file")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func runConfigInit(w io.Writer, path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.SaveTo(path, config.MinimalConfig()); err != nil {
		return err
	}
	fmt.Fprintf(w, "Wrote %s\n", path)
	return nil
}

func newCmdConfigPath() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "List the config sources in load order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			writeConfigSources(cmd.OutOrStdout(), config.GetConfigPaths())
			return nil
		},
	}
}

func writeConfigSources(w io.Writer, paths config.ConfigPathInfo) {
	exists := func(ok bool) string {
		if ok {
			return "found"
		}
		return "missing"
	}
	fmt.Fprintf(w, "1. global  %s (%s)\n", paths.GlobalPath, exists(paths.GlobalExists))
	fmt.Fprintf(w, "2. local   %s (%s)\n", paths.LocalPath, exists(paths.LocalExists))

	var env []string
	for _, k := range configKeys {
		name := config.EnvPrefix + "_" + strings.ToUpper(k.name)
		if os.Getenv(name) != "" {
			env = append(env, name)
		}
	}
	if len(env) == 0 {
		fmt.Fprintf(w, "3. env     %s_* (none set)\n", config.EnvPrefix)
		return
	}
	fmt.Fprintf(w, "3. env     %s\n", strings.Join(env, ", "))
}
