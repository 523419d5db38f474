package output

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spiffcs/inbox/internal/format"
	"github.com/spiffcs/inbox/internal/model"
	"github.com/spiffcs/inbox/internal/service"
	"golang.org/x/term"
)

// TableFormatter formats output as a terminal table
type TableFormatter struct{}

// hyperlink creates a clickable terminal hyperlink using OSC 8
// Format: \033]8;;URL\033\\TEXT\033]8;;\033\\
func hyperlink(text, url string) string {
	if url == "" || !term.IsTerminal(int(os.Stdout.Fd())) {
		return text
	}
	return fmt.Sprintf("\033]8;;%s\033\\%s\033]8;;\033\\", url, text)
}

// FormatInbox outputs the filtered inbox items as a table
func (f *TableFormatter) FormatInbox(result *service.InboxResult, w io.Writer) error {
	if result.Thread != nil && result.Thread.Title != "" {
		fmt.Fprintf(w, "%s\n\n", color.New(color.Bold).Sprint(result.Thread.Title))
	}

	if len(result.Items) == 0 {
		fmt.Fprintln(w, "Inbox is empty.")
		return nil
	}

	const (
		colStatus = 8
		colRepo   = 30
		colPath   = 44
		colLine   = 5
		colBranch = 16
	)

	fmt.Fprintf(w, "%-*s  %-*s  %-*s  %-*s  %s\n",
		colStatus, "Status",
		colRepo, "Repository",
		colPath, "Path",
		colLine, "Line",
		"Branch")
	fmt.Fprintln(w, strings.Repeat("-", colStatus+colRepo+colPath+colLine+colBranch+8))

	handled := result.Settings.HandledIDs()
	var open, ignored, done int
	for _, item := range result.Items {
		status := itemStatus(item, handled)
		switch status {
		case "open":
			open++
		case "ignored":
			ignored++
		default:
			done++
		}

		line := ""
		if n := startLine(item); n > 0 {
			line = strconv.Itoa(n)
		}

		path := format.ShortPath(item.Path, colPath)
		linked := hyperlink(path, item.URL) + strings.Repeat(" ", max(0, colPath-format.DisplayWidth(path)))

		fmt.Fprintf(w, "%s  %s  %s  %-*s  %s\n",
			format.PadRight(colorStatus(status), colStatus),
			format.Fit(item.Repository.Name, colRepo),
			linked,
			colLine, line,
			format.Truncate(item.Branch, colBranch),
		)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("━", 60))
	fmt.Fprintf(w, "  %d of %d items", len(result.Items), result.Total)
	fmt.Fprintf(w, "  %s %d open", color.GreenString("●"), open)
	if ignored > 0 {
		fmt.Fprintf(w, "  %s %d ignored", color.YellowString("○"), ignored)
	}
	if done > 0 {
		fmt.Fprintf(w, "  %s %d handled", color.CyanString("○"), done)
	}
	fmt.Fprintln(w)

	return nil
}

// FormatDiagnostics outputs joined diagnostics as a table
func (f *TableFormatter) FormatDiagnostics(items []model.DiagnosticInfo, w io.Writer) error {
	if len(items) == 0 {
		fmt.Fprintln(w, "No diagnostics found.")
		return nil
	}

	const (
		colSeverity = 9
		colLocation = 48
		colSource   = 12
	)

	fmt.Fprintf(w, "%-*s  %-*s  %-*s  %s\n",
		colSeverity, "Severity",
		colLocation, "Location",
		colSource, "Source",
		"Message")
	fmt.Fprintln(w, strings.Repeat("-", colSeverity+colLocation+colSource+40))

	counts := make(map[model.Severity]int)
	for _, d := range items {
		counts[d.Severity]++

		location := format.ShortPath(d.Location(), colLocation)

		fmt.Fprintf(w, "%s  %s  %s  %s\n",
			format.PadRight(colorSeverity(d.Severity), colSeverity),
			format.PadRight(location, colLocation),
			format.Fit(d.Source, colSource),
			firstLine(d.Message),
		)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("━", 60))
	var parts []string
	for s := model.SeverityError; s <= model.SeverityHint; s++ {
		if counts[s] == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %d %s", format.SeverityIcon(s), counts[s], s))
	}
	fmt.Fprintf(w, "  %s\n", strings.Join(parts, "  "))

	return nil
}

func colorStatus(status string) string {
	switch status {
	case "open":
		return color.GreenString(status)
	case "ignored":
		return color.YellowString(status)
	default:
		return color.CyanString(status)
	}
}

func colorSeverity(s model.Severity) string {
	label := format.SeverityIcon(s) + " " + s.String()
	switch s {
	case model.SeverityError:
		return color.RedString(label)
	case model.SeverityWarning:
		return color.YellowString(label)
	case model.SeverityInformation:
		return color.CyanString(label)
	default:
		return color.WhiteString(label)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
