package output

import (
	"fmt"
	"io"

	"github.com/spiffcs/inbox/internal/format"
	"github.com/spiffcs/inbox/internal/model"
	"github.com/spiffcs/inbox/internal/service"
)

// Format represents the output format
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates a format name. An empty name selects the table.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON, FormatMarkdown:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json or markdown)", s)
	}
}

// Formatter defines the interface for output formatters
type Formatter interface {
	FormatInbox(result *service.InboxResult, w io.Writer) error
	FormatDiagnostics(items []model.DiagnosticInfo, w io.Writer) error
}

// NewFormatter creates a formatter for the specified format
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Pretty: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

// itemStatus reports the display status of an inbox item.
func itemStatus(item model.TargetRepo, handled map[string]struct{}) string {
	_, ok := handled[item.ID]
	return format.TargetStatus(item.IsIgnored, ok)
}

func startLine(item model.TargetRepo) int {
	if item.Selection == nil {
		return 0
	}
	return item.Selection.StartLine + 1
}
