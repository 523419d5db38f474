package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
)

// Task represents a single task in the TUI progress display.
type Task struct {
	ID       TaskID
	Name     string
	Status   TaskStatus
	Message  string
	Count    int
	Progress float64
	Error    error
}

// NewTask creates a pending task.
func NewTask(id TaskID, name string) Task {
	return Task{ID: id, Name: name, Status: StatusPending}
}

// View renders the task as one line.
func (t Task) View(spinnerFrame string, prog progress.Model) string {
	var b strings.Builder
	b.WriteString("  ")
	b.WriteString(StatusIcon(t.Status, spinnerFrame))
	b.WriteString(" ")
	if t.Status == StatusPending {
		b.WriteString(taskDimStyle.Render(t.Name))
	} else {
		b.WriteString(taskNameStyle.Render(t.Name))
	}

	switch {
	case t.Status == StatusRunning && t.Progress > 0:
		fmt.Fprintf(&b, " %s %d%%", prog.ViewAs(t.Progress), int(t.Progress*100))
		if t.Message != "" {
			b.WriteString(" " + messageStyle.Render("("+t.Message+")"))
		}
	case t.Message != "":
		b.WriteString(" " + messageStyle.Render(t.Message))
	case t.Count > 0:
		b.WriteString(" " + messageStyle.Render(fmt.Sprintf("(%d)", t.Count)))
	}

	if t.Error != nil {
		b.WriteString(" " + errorStyle.Render(t.Error.Error()))
	}
	return b.String()
}
