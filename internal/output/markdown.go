package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spiffcs/inbox/internal/format"
	"github.com/spiffcs/inbox/internal/model"
	"github.com/spiffcs/inbox/internal/service"
)

// MarkdownFormatter formats output as Markdown
type MarkdownFormatter struct {
	// Now overrides the generation timestamp.
	Now func() time.Time
}

func (f *MarkdownFormatter) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

// FormatInbox outputs the inbox grouped by repository as Markdown
func (f *MarkdownFormatter) FormatInbox(result *service.InboxResult, w io.Writer) error {
	title := "Thread Inbox"
	if result.Thread != nil && result.Thread.Title != "" {
		title = result.Thread.Title
	}
	fmt.Fprintf(w, "# %s\n", title)
	fmt.Fprintf(w, "\n*Generated: %s*\n\n", f.now().Format("2006-01-02 15:04"))

	if q := result.Query.String(); q != "" {
		fmt.Fprintf(w, "Query: `%s`\n\n", q)
	}

	if len(result.Items) == 0 {
		fmt.Fprintln(w, "Inbox is empty.")
		return nil
	}

	handled := result.Settings.HandledIDs()
	var order []string
	groups := make(map[string][]model.TargetRepo)
	for _, item := range result.Items {
		repo := item.Repository.Name
		if _, ok := groups[repo]; !ok {
			order = append(order, repo)
		}
		groups[repo] = append(groups[repo], item)
	}

	for _, repo := range order {
		items := groups[repo]
		fmt.Fprintf(w, "## %s (%d)\n\n", repo, len(items))
		fmt.Fprintln(w, "| Status | Path | Line | Branch |")
		fmt.Fprintln(w, "|--------|------|------|--------|")
		for _, item := range items {
			path := escapeMarkdown(item.Path)
			if item.URL != "" {
				path = fmt.Sprintf("[%s](%s)", path, item.URL)
			}
			line := ""
			if n := startLine(item); n > 0 {
				line = fmt.Sprintf("%d", n)
			}
			fmt.Fprintf(w, "| %s | %s | %s | %s |\n",
				itemStatus(item, handled), path, line, escapeMarkdown(item.Branch))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "---\n\n*%d of %d items*\n", len(result.Items), result.Total)
	return nil
}

// FormatDiagnostics outputs diagnostics grouped by file as Markdown
func (f *MarkdownFormatter) FormatDiagnostics(items []model.DiagnosticInfo, w io.Writer) error {
	fmt.Fprintln(w, "# Diagnostics")
	fmt.Fprintf(w, "\n*Generated: %s*\n\n", f.now().Format("2006-01-02 15:04"))

	if len(items) == 0 {
		fmt.Fprintln(w, "No diagnostics found.")
		return nil
	}

	var current *model.FileEntry
	for _, d := range items {
		if d.Entry != current {
			if current != nil {
				fmt.Fprintln(w)
			}
			current = d.Entry
			if current != nil {
				fmt.Fprintf(w, "## %s/%s\n\n", current.Repository.Name, current.Path)
				if current.Commit.OID != "" {
					fmt.Fprintf(w, "Commit `%s`\n\n", current.Commit.OID)
				}
			}
		}
		source := ""
		if d.Source != "" {
			source = fmt.Sprintf(" *(%s)*", escapeMarkdown(d.Source))
		}
		fmt.Fprintf(w, "- %s **%s** line %d: %s%s\n",
			format.SeverityIcon(d.Severity), d.Severity, d.Line(), escapeMarkdown(firstLine(d.Message)), source)
	}

	return nil
}

func escapeMarkdown(s string) string {
	return strings.NewReplacer("|", "\\|", "*", "\\*", "_", "\\_", "`", "\\`").Replace(s)
}
