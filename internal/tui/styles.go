package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Task icons
	iconPending  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render("○")
	iconComplete = lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Render("✓")
	iconError    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	iconSkipped  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render("-")

	taskNameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	taskDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220")).
			Bold(true)
)

// Inbox view styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#CBD5E1"))

	alertStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			Italic(true)

	selectedStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#334155")).
			Foreground(lipgloss.Color("#F1F5F9")).
			Bold(true)

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#60A5FA")).
			Bold(true)

	locationStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#93C5FD"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9CA3AF"))

	sidebarStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderRight(true).
			BorderForeground(lipgloss.Color("#475569")).
			PaddingRight(1)

	sidebarRepoStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#60A5FA")).
				Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B"))

	levelStyles = map[Level]lipgloss.Style{
		LevelError:   lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")),
		LevelWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")),
		LevelInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA")),
		LevelMuted:   lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")),
	}
)

// StatusIcon returns the appropriate icon for a task status.
func StatusIcon(status TaskStatus, spinnerFrame string) string {
	switch status {
	case StatusRunning:
		return spinnerStyle.Render(spinnerFrame)
	case StatusComplete:
		return iconComplete
	case StatusError:
		return iconError
	case StatusSkipped:
		return iconSkipped
	default:
		return iconPending
	}
}
