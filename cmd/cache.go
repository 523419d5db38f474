package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spiffcs/inbox/internal/cache"
)

// NewCmdCache creates the cache command with subcommands.
func NewCmdCache() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the candidate file cache",
	}

	cmd.AddCommand(newCmdCacheClear())
	cmd.AddCommand(newCmdCacheStats())

	return cmd
}

// newCmdCacheClear creates the cache clear subcommand.
func newCmdCacheClear() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the candidate file cache",
		RunE:  runCacheClear,
	}
}

// newCmdCacheStats creates the cache stats subcommand.
func newCmdCacheStats() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE:  runCacheStats,
	}
}

// openBlobCache opens the on-disk candidate file cache.
func openBlobCache(ttl time.Duration) (*cache.Cache, error) {
	dir, err := cache.DefaultDir()
	if err != nil {
		return nil, fmt.Errorf("failed to locate cache directory: %w", err)
	}
	return cache.New(dir, ttl)
}

// configuredBlobCache opens the cache with the configured TTL.
func configuredBlobCache() (*cache.Cache, time.Duration, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, 0, err
	}
	ttl, err := cfg.GetCacheTTL()
	if err != nil {
		return nil, 0, err
	}
	c, err := openBlobCache(ttl)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to access cache: %w", err)
	}
	return c, ttl, nil
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	c, _, err := configuredBlobCache()
	if err != nil {
		return err
	}

	if err := c.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared.")
	return nil
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	c, ttl, err := configuredBlobCache()
	if err != nil {
		return err
	}

	stats, err := c.Stats()
	if err != nil {
		return fmt.Errorf("failed to get cache stats: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Cache statistics (%s):\n", c.Dir())
	fmt.Fprintf(w, "  File blobs (TTL: %s, commit-pinned blobs never expire):\n", ttl)
	fmt.Fprintf(w, "    Total:   %d\n", stats.Total)
	fmt.Fprintf(w, "    Valid:   %d\n", stats.Valid)
	fmt.Fprintf(w, "    Pinned:  %d\n", stats.Pinned)
	fmt.Fprintf(w, "    Expired: %d\n", stats.Total-stats.Valid)
	fmt.Fprintf(w, "    Size:    %s\n", formatBytes(stats.Bytes))
	return nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
