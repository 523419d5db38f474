package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Model is the Bubble Tea model for the task progress display shown while
// a command loads its data.
type Model struct {
	tasks          []Task
	spinner        spinner.Model
	progress       progress.Model
	events         <-chan Event
	done           bool
	viewer         string
	rateLimited    bool
	rateLimitReset time.Time
}

// doneMsg signals that the event channel was closed.
type doneMsg struct{}

// ModelOption is a functional option for configuring a Model.
type ModelOption func(*Model)

// WithTasks sets the tasks to display.
func WithTasks(tasks []Task) ModelOption {
	return func(m *Model) {
		m.tasks = tasks
	}
}

// ListTasks returns the task list for the list command.
func ListTasks() []Task {
	return []Task{
		NewTask(TaskAuth, "Authenticating"),
		NewTask(TaskFetch, "Fetching thread"),
		NewTask(TaskFilter, "Filtering items"),
	}
}

// DiagnosticsTasks returns the task list for a one-shot diagnostics run.
func DiagnosticsTasks() []Task {
	return []Task{
		NewTask(TaskResolve, "Resolving files"),
	}
}

// NewModel creates a progress model fed by events.
func NewModel(events <-chan Event, opts ...ModelOption) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	m := Model{
		tasks:   ListTasks(),
		spinner: s,
		progress: progress.New(
			progress.WithScaledGradient("#60a5fa", "#1e3a8a"),
			progress.WithWidth(25),
			progress.WithoutPercentage(),
		),
		events: events,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init starts the spinner and the event pump.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd

	case TaskEvent:
		cmd := m.apply(msg)
		return m, tea.Batch(cmd, waitForEvent(m.events))

	case RateLimitEvent:
		m.rateLimited = msg.Limited
		m.rateLimitReset = msg.ResetAt
		return m, waitForEvent(m.events)

	case DoneEvent, doneMsg:
		m.done = true
		return m, tea.Quit
	}

	return m, nil
}

// apply folds a TaskEvent into the matching task.
func (m *Model) apply(e TaskEvent) tea.Cmd {
	var cmd tea.Cmd
	for i := range m.tasks {
		t := &m.tasks[i]
		if t.ID != e.Task {
			continue
		}
		t.Status = e.Status
		if e.Message != "" {
			t.Message = e.Message
		}
		if e.Count > 0 {
			t.Count = e.Count
		}
		if e.Progress > 0 {
			t.Progress = e.Progress
			cmd = m.progress.SetPercent(e.Progress)
		}
		if e.Error != nil {
			t.Error = e.Error
		}
		if e.Task == TaskAuth && e.Status == StatusComplete {
			m.viewer = e.Message
		}
		break
	}
	return cmd
}

// View renders the model.
func (m Model) View() string {
	var b strings.Builder
	frame := m.spinner.View()

	for _, task := range m.tasks {
		if task.ID == TaskAuth && task.Status == StatusComplete && m.viewer != "" {
			fmt.Fprintf(&b, "  %s Authenticated as %s\n", iconComplete, userStyle.Render(m.viewer))
			continue
		}
		b.WriteString(task.View(frame, m.progress))
		b.WriteString("\n")
	}

	if m.rateLimited {
		if wait := time.Until(m.rateLimitReset).Round(time.Second); wait > 0 {
			b.WriteString(warnStyle.Render(fmt.Sprintf("\n  Rate limited (resets in %s)\n", wait)))
		}
	}

	if !m.done {
		b.WriteString(footerStyle.Render("\n  Press Ctrl+C to cancel"))
	}
	b.WriteString("\n")
	return b.String()
}

// waitForEvent creates a command that waits for the next event.
func waitForEvent(events <-chan Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return doneMsg{}
		}
		return event
	}
}
