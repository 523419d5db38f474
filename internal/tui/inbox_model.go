package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spiffcs/inbox/internal/constants"
	"github.com/spiffcs/inbox/internal/view"
)

// InboxModel is the interactive inbox view. It renders the latest state
// received on its channel.
type InboxModel struct {
	title       string
	state       view.State[Row]
	states      <-chan view.State[Row]
	refresh     func()
	spinner     spinner.Model
	cursor      int
	showSidebar bool
	width       int
	height      int
	quitting    bool
}

// stateMsg carries a new state into the model.
type stateMsg struct {
	state view.State[Row]
}

// InboxOption is a functional option for configuring InboxModel.
type InboxOption func(*InboxModel)

// WithRefresh sets the function the r key calls.
func WithRefresh(fn func()) InboxOption {
	return func(m *InboxModel) {
		m.refresh = fn
	}
}

// WithInitialState sets the state shown before anything is received.
func WithInitialState(s view.State[Row]) InboxOption {
	return func(m *InboxModel) {
		m.state = s
	}
}

// WithSidebar sets whether the sidebar starts visible.
func WithSidebar(show bool) InboxOption {
	return func(m *InboxModel) {
		m.showSidebar = show
	}
}

// NewInboxModel creates an inbox model. states may be nil for a static view.
func NewInboxModel(title string, states <-chan view.State[Row], opts ...InboxOption) InboxModel {
	s := spinner.New()
	s.Spinner = spinner.Dot

	m := InboxModel{
		title:       title,
		state:       view.Loading[Row](),
		states:      states,
		spinner:     s,
		showSidebar: true,
		width:       80,
		height:      24,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init implements tea.Model.
func (m InboxModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForState(m.states))
}

// Update implements tea.Model.
func (m InboxModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case stateMsg:
		m.state = msg.state
		m.clampCursor()
		return m, waitForState(m.states)
	}

	return m, nil
}

func (m InboxModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "j", "down":
		if m.cursor < len(m.state.Items())-1 {
			m.cursor++
		}

	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}

	case "g", "home":
		m.cursor = 0

	case "G", "end":
		m.cursor = max(0, len(m.state.Items())-1)

	case "s":
		m.showSidebar = !m.showSidebar

	case "r":
		if m.refresh != nil {
			fn := m.refresh
			return m, func() tea.Msg {
				fn()
				return nil
			}
		}
	}
	return m, nil
}

func (m *InboxModel) clampCursor() {
	n := len(m.state.Items())
	if m.cursor >= n {
		m.cursor = max(0, n-1)
	}
}

// State returns the state being shown.
func (m InboxModel) State() view.State[Row] {
	return m.state
}

// Cursor returns the selected row index.
func (m InboxModel) Cursor() int {
	return m.cursor
}

// SidebarVisible reports whether the sidebar is shown.
func (m InboxModel) SidebarVisible() bool {
	return m.showSidebar
}

// View implements tea.Model.
func (m InboxModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(renderHeader(m.title, m.state))
	b.WriteString("\n\n")
	b.WriteString(RenderState(m.state, RenderOptions{
		Width:        m.width,
		Height:       m.height - constants.HeaderLines - constants.FooterLines - 2,
		Cursor:       m.cursor,
		ShowSidebar:  m.showSidebar,
		SpinnerFrame: m.spinner.View(),
	}))
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("j/k: nav   g/G: top/bottom   s: sidebar   r: refresh   q: quit"))
	return b.String()
}

// waitForState creates a command that waits for the next state. A nil or
// closed channel ends the pump.
func waitForState(states <-chan view.State[Row]) tea.Cmd {
	if states == nil {
		return nil
	}
	return func() tea.Msg {
		s, ok := <-states
		if !ok {
			return nil
		}
		return stateMsg{state: s}
	}
}
