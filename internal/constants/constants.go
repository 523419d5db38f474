// Package constants provides a centralized location for configuration
// defaults and magic numbers used throughout the inbox application.
package constants

import "time"

// Backend constants
const (
	// DefaultEndpoint is the GraphQL endpoint used when none is configured.
	DefaultEndpoint = "https://sourcegraph.com/.api/graphql"

	// RequestTimeout bounds a single GraphQL or REST request.
	RequestTimeout = 30 * time.Second

	// DefaultConcurrency is the number of candidate files resolved at once.
	DefaultConcurrency = 8
)

// Rate limiting constants
const (
	// RateLimitLowWatermark is the threshold below which rate limit
	// warnings are logged.
	RateLimitLowWatermark = 100
)

// Cache constants
const (
	// CandidateCacheTTL is the maximum age of a cached file blob whose URI
	// names a symbolic revision. Blobs pinned to a commit never expire.
	CandidateCacheTTL = 24 * time.Hour

	// CacheVersion must be incremented when the on-disk entry format changes.
	CacheVersion = 1
)

// Diagnostics feed constants
const (
	// DiagnosticsDebounce is how long the file collection waits for writes
	// to settle before reloading.
	DiagnosticsDebounce = 150 * time.Millisecond
)

// TUI display constants
const (
	// SidebarWidth is the width of the inbox sidebar in columns.
	SidebarWidth = 32

	// HeaderLines is the number of lines used by the inbox header.
	HeaderLines = 2

	// FooterLines is the number of lines used by the inbox footer.
	FooterLines = 2

	// TruncationSuffixWidth is the width of the "..." suffix when truncating strings.
	TruncationSuffixWidth = 3
)

// Placeholder text
const (
	// EmptyInboxText is shown when a loaded inbox has no items.
	EmptyInboxText = "Inbox is empty."
)
