package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spiffcs/inbox/internal/constants"
	"github.com/spiffcs/inbox/internal/format"
	"github.com/spiffcs/inbox/internal/view"
)

// RenderOptions controls RenderState.
type RenderOptions struct {
	Width  int
	Height int
	Cursor int
	// ShowSidebar renders grouped counts beside the list.
	ShowSidebar  bool
	SpinnerFrame string
}

// RenderState renders a view state: an alert for Error, a spinner for
// Loading, a notice for Empty, and sidebar plus list for Populated.
func RenderState(s view.State[Row], opts RenderOptions) string {
	switch s.Kind() {
	case view.KindError:
		return alertStyle.Render(iconError + " " + s.Message())
	case view.KindLoading:
		frame := opts.SpinnerFrame
		if frame == "" {
			frame = "⣾"
		}
		return spinnerStyle.Render(frame) + " Loading..."
	case view.KindEmpty:
		return emptyStyle.Render(constants.EmptyInboxText)
	default:
		return renderPopulated(s.Items(), opts)
	}
}

func renderPopulated(rows []Row, opts RenderOptions) string {
	width := opts.Width
	if width <= 0 {
		width = 80
	}
	if !opts.ShowSidebar || width < constants.SidebarWidth*2 {
		return renderList(rows, opts.Cursor, width, opts.Height)
	}

	sidebar := sidebarStyle.Width(constants.SidebarWidth).Render(renderSidebar(GroupRows(rows)))
	listWidth := width - lipgloss.Width(sidebar) - 1
	return lipgloss.JoinHorizontal(lipgloss.Top, sidebar, " ", renderList(rows, opts.Cursor, listWidth, opts.Height))
}

func renderSidebar(groups []RepoGroup) string {
	inner := constants.SidebarWidth - 2
	var b strings.Builder
	for i, g := range groups {
		if i > 0 {
			b.WriteString("\n")
		}
		name := g.Repo
		if name == "" {
			name = "(unknown)"
		}
		count := " (" + itoa(g.Count) + ")"
		b.WriteString(sidebarRepoStyle.Render(format.Truncate(name, inner-len(count))))
		b.WriteString(dimStyle.Render(count))
		for _, f := range g.Files {
			fc := " " + itoa(f.Count)
			b.WriteString("\n  ")
			b.WriteString(format.Fit(format.ShortPath(f.Path, inner-2-len(fc)), inner-2-len(fc)))
			b.WriteString(dimStyle.Render(fc))
		}
	}
	return b.String()
}

func renderList(rows []Row, cursor, width, height int) string {
	if height <= 0 {
		height = len(rows)
	}
	start, end := calculateScrollWindow(cursor, len(rows), height)

	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		lines = append(lines, renderRow(rows[i], i == cursor, width))
	}
	return strings.Join(lines, "\n")
}

func renderRow(r Row, selected bool, width int) string {
	// "> " + icon + " " + location + "  " + text
	const prefix = 2 + format.IconWidth
	locWidth := min(40, max(10, width/3))
	textWidth := max(0, width-prefix-locWidth-2)

	marker := "  "
	if selected {
		marker = cursorStyle.Render("> ")
	}
	icon := levelStyles[r.Level].Render(format.Fit(r.Icon, format.IconWidth-1))
	loc := format.Fit(format.ShortPath(r.Location(), locWidth), locWidth)
	text := format.Truncate(r.Text, textWidth)

	if selected {
		return marker + icon + " " + selectedStyle.Render(loc+"  "+text)
	}
	return marker + icon + " " + locationStyle.Render(loc) + "  " + text
}

// calculateScrollWindow keeps the cursor roughly centered in a window of
// viewHeight rows.
func calculateScrollWindow(cursor, total, viewHeight int) (start, end int) {
	if total <= viewHeight {
		return 0, total
	}

	start = max(0, cursor-viewHeight/2)
	end = start + viewHeight
	if end > total {
		end = total
		start = max(0, end-viewHeight)
	}
	return start, end
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

// renderHeader renders the title line with per-kind counts.
func renderHeader(title string, s view.State[Row]) string {
	h := titleStyle.Render(title)
	if s.Kind() == view.KindPopulated {
		h += dimStyle.Render(fmt.Sprintf("  %d items", len(s.Items())))
	}
	return h
}
