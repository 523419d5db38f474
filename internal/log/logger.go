// Package log is the process-wide structured logger. Verbosity follows
// the -v count on the command line; output goes through a tint handler
// and optionally to a rotating log file.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Verbosity levels
const (
	LevelQuiet = iota // Default: only errors and warnings
	LevelInfo         // -v: progress messages, cache hits, counts
	LevelDebug        // -vv: queries, cache operations, timing
	LevelTrace        // -vvv: full payloads
)

const slogLevelTrace = slog.Level(-8)

var (
	mu         sync.Mutex
	verbosity  int
	logger     *slog.Logger
	output     io.Writer
	fileWriter *lumberjack.Logger
	inProgress bool
)

// Options configures Initialize.
type Options struct {
	// LogFile, when set, also writes logs to a rotating file.
	LogFile string
}

// Initialize sets up the global logger with the given verbosity writing to w.
func Initialize(level int, w io.Writer, opts ...Options) {
	mu.Lock()
	defer mu.Unlock()

	verbosity = level
	output = w

	lvl := slogLevel(level)
	handlers := []slog.Handler{
		tint.NewHandler(w, &tint.Options{
			Level:      lvl,
			TimeFormat: time.TimeOnly,
			NoColor:    !isTerminal(w) || os.Getenv("NO_COLOR") != "",
		}),
	}

	closeFileLocked()
	for _, o := range opts {
		if o.LogFile == "" {
			continue
		}
		fileWriter = &lumberjack.Logger{
			Filename:   o.LogFile,
			MaxSize:    20, // MB
			MaxBackups: 3,
			MaxAge:     14, // days
		}
		handlers = append(handlers, tint.NewHandler(fileWriter, &tint.Options{
			Level:      lvl,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		}))
	}

	if len(handlers) == 1 {
		logger = slog.New(handlers[0])
		return
	}
	logger = slog.New(&fanoutHandler{handlers: handlers})
}

func slogLevel(level int) slog.Level {
	switch {
	case level >= LevelTrace:
		return slogLevelTrace
	case level >= LevelDebug:
		return slog.LevelDebug
	case level >= LevelInfo:
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// Close flushes and closes the log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	return closeFileLocked()
}

func closeFileLocked() error {
	if fileWriter == nil {
		return nil
	}
	err := fileWriter.Close()
	fileWriter = nil
	return err
}

// Info logs at info level (-v)
func Info(msg string, args ...any) {
	if verbosity >= LevelInfo {
		clearProgress()
		logger.Info(msg, args...)
	}
}

// Debug logs at debug level (-vv)
func Debug(msg string, args ...any) {
	if verbosity >= LevelDebug {
		clearProgress()
		logger.Debug(msg, args...)
	}
}

// Trace logs at trace level (-vvv)
func Trace(msg string, args ...any) {
	if verbosity >= LevelTrace {
		clearProgress()
		logger.Log(context.Background(), slogLevelTrace, msg, args...)
	}
}

// Warn logs at warn level (always visible)
func Warn(msg string, args ...any) {
	clearProgress()
	logger.Warn(msg, args...)
}

// Error logs at error level (always visible)
func Error(msg string, args ...any) {
	clearProgress()
	logger.Error(msg, args...)
}

// Progress prints a progress message with carriage return (no newline).
// Only shown at info level or higher.
func Progress(format string, args ...any) {
	if verbosity >= LevelInfo {
		inProgress = true
		_, _ = fmt.Fprintf(output, "\r"+format, args...)
	}
}

// ProgressDone completes a progress line with "done" and newline
func ProgressDone() {
	if verbosity >= LevelInfo && inProgress {
		_, _ = fmt.Fprintln(output, " done")
		inProgress = false
	}
}

func clearProgress() {
	if inProgress {
		_, _ = fmt.Fprintln(output)
		inProgress = false
	}
}

// IsDebug returns true if debug-level logging is enabled
func IsDebug() bool {
	return verbosity >= LevelDebug
}

// Verbosity returns the current verbosity level
func Verbosity() int {
	return verbosity
}

// fanoutHandler sends each record to every handler that accepts its level.
type fanoutHandler struct {
	handlers []slog.Handler
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, hh := range h.handlers {
		if hh.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, hh := range h.handlers {
		if !hh.Enabled(ctx, r.Level) {
			continue
		}
		if err := hh.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		next[i] = hh.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: next}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		next[i] = hh.WithGroup(name)
	}
	return &fanoutHandler{handlers: next}
}

func init() {
	output = os.Stderr
	verbosity = LevelQuiet
	logger = slog.New(tint.NewHandler(output, &tint.Options{
		Level:   slog.LevelWarn,
		NoColor: !isTerminal(os.Stderr),
	}))
}
