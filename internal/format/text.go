// Package format provides shared text formatting utilities for terminal output.
package format

import (
	"path"
	"regexp"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spiffcs/inbox/internal/constants"
)

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// StripAnsi removes ANSI escape sequences from a string.
func StripAnsi(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// DisplayWidth returns the visible width of s in terminal columns,
// ignoring ANSI escape sequences.
func DisplayWidth(s string) int {
	return runewidth.StringWidth(StripAnsi(s))
}

// Truncate shortens plain text to maxWidth columns, ending in "..." when
// anything was cut.
func Truncate(s string, maxWidth int) string {
	if maxWidth <= constants.TruncationSuffixWidth {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// PadRight pads plain or styled text with spaces to width columns.
func PadRight(s string, width int) string {
	w := DisplayWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

// Fit truncates then pads s so it occupies exactly width columns.
func Fit(s string, width int) string {
	return PadRight(Truncate(s, width), width)
}

// ShortPath keeps the trailing segments of a slash path that fit in
// maxWidth, prefixing ".../" when segments were dropped.
func ShortPath(p string, maxWidth int) string {
	if runewidth.StringWidth(p) <= maxWidth {
		return p
	}
	segs := strings.Split(path.Clean(p), "/")
	kept := segs[len(segs)-1]
	for i := len(segs) - 2; i >= 0; i-- {
		next := segs[i] + "/" + kept
		if runewidth.StringWidth(".../"+next) > maxWidth {
			break
		}
		kept = next
	}
	if runewidth.StringWidth(".../"+kept) > maxWidth {
		return Truncate(kept, maxWidth)
	}
	return ".../" + kept
}
