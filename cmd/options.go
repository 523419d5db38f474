package cmd

// Options holds the shared command-line options for the inbox CLI.
type Options struct {
	Format    string
	Verbosity int
	LogFile   string
	TUI       *bool // nil = auto-detect, true = force TUI, false = disable TUI

	// Profiling options
	CPUProfile string // Write CPU profile to file
	MemProfile string // Write memory profile to file
	Trace      string // Write execution trace to file
}

// Option is a functional option for configuring Options.
type Option func(*Options)

// NewOptions creates a new Options and applies any provided options.
func NewOptions(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithFormat sets the output format (table, json, markdown).
func WithFormat(format string) Option {
	return func(o *Options) {
		o.Format = format
	}
}

// WithVerbosity sets the verbosity level.
func WithVerbosity(v int) Option {
	return func(o *Options) {
		o.Verbosity = v
	}
}

// WithLogFile sets the rotating log file path.
func WithLogFile(path string) Option {
	return func(o *Options) {
		o.LogFile = path
	}
}

// WithTUI controls TUI mode (nil = auto-detect, true = force, false = disable).
func WithTUI(tui *bool) Option {
	return func(o *Options) {
		o.TUI = tui
	}
}
