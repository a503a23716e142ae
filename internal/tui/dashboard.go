package tui

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/BHPAV/dev-container-launcher/internal/engine"
	"github.com/BHPAV/dev-container-launcher/internal/errors"
	"github.com/BHPAV/dev-container-launcher/internal/lifecycle"
	"github.com/BHPAV/dev-container-launcher/internal/watcher"
)

// Actions is the subset of the lifecycle manager the dashboard drives.
type Actions interface {
	CreateSandbox(ctx context.Context, req lifecycle.CreateRequest) (*lifecycle.CreateResult, error)
	ListSandboxes(ctx context.Context) ([]engine.Sandbox, error)
	StartSandbox(ctx context.Context, alias string) (bool, error)
	StopSandbox(ctx context.Context, alias string) (bool, error)
	RemoveSandbox(ctx context.Context, alias string, force bool) (*lifecycle.RemoveResult, error)
	OpenEditor(ctx context.Context, alias string) error
}

var _ Actions = (*lifecycle.Manager)(nil)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			MarginBottom(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)

	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	promptStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1)
)

type mode int

const (
	modeTable mode = iota
	modeConfirmDelete
	modeCreate
)

// Create form fields.
const (
	fieldName = iota
	fieldImage
	fieldWorkspace
	fieldCount
)

type eventMsg watcher.Event

type eventsDoneMsg struct{}

type sandboxesMsg struct {
	sandboxes []engine.Sandbox
	err       error
}

type actionDoneMsg struct {
	text string
	err  error
}

// DashboardOptions configures the dashboard.
type DashboardOptions struct {
	// DefaultImage prefills the create form.
	DefaultImage string

	// DefaultWorkspace prefills the create form, usually the working
	// directory.
	DefaultWorkspace string
}

// Dashboard is the bubbletea model for the sandbox table.
type Dashboard struct {
	ctx     context.Context
	actions Actions
	events  <-chan watcher.Event

	table     table.Model
	sandboxes []engine.Sandbox

	mode    mode
	pending string
	inputs  []textinput.Model
	focus   int

	status    string
	statusErr bool

	width  int
	height int
}

// NewDashboard builds the model. events may be nil, in which case the
// table only refreshes after actions and on "r".
func NewDashboard(ctx context.Context, actions Actions, events <-chan watcher.Event, opts DashboardOptions) *Dashboard {
	t := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57"))
	t.SetStyles(s)

	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		in := textinput.New()
		in.CharLimit = 256
		inputs[i] = in
	}
	inputs[fieldName].Prompt = "Name:      "
	inputs[fieldName].Placeholder = "my-project"
	inputs[fieldImage].Prompt = "Image:     "
	inputs[fieldImage].SetValue(opts.DefaultImage)
	inputs[fieldWorkspace].Prompt = "Workspace: "
	inputs[fieldWorkspace].SetValue(opts.DefaultWorkspace)

	return &Dashboard{
		ctx:     ctx,
		actions: actions,
		events:  events,
		table:   t,
		inputs:  inputs,
	}
}

func columns(width int) []table.Column {
	name := max(16, (width-50)/2)
	image := max(16, width-50-name)
	return []table.Column{
		{Title: "Name", Width: name},
		{Title: "Status", Width: 10},
		{Title: "Port", Width: 7},
		{Title: "Image", Width: image},
		{Title: "ID", Width: 12},
	}
}

// portCell renders a host port, or N/A when none is published.
func portCell(port int) string {
	if port == 0 {
		return "N/A"
	}
	return fmt.Sprint(port)
}

func rows(sandboxes []engine.Sandbox) []table.Row {
	out := make([]table.Row, 0, len(sandboxes))
	for _, sb := range sandboxes {
		out = append(out, table.Row{
			sb.Alias,
			string(sb.Status),
			portCell(sb.HostPort),
			sb.Image,
			sb.ShortID(),
		})
	}
	return out
}

func waitForEvent(ch <-chan watcher.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return eventsDoneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *Dashboard) refresh() tea.Cmd {
	return func() tea.Msg {
		sbs, err := m.actions.ListSandboxes(m.ctx)
		return sandboxesMsg{sandboxes: sbs, err: err}
	}
}

// Init implements tea.Model.
func (m *Dashboard) Init() tea.Cmd {
	if m.events == nil {
		return m.refresh()
	}
	return tea.Batch(waitForEvent(m.events), m.refresh())
}

// Selected returns the alias under the cursor, or "".
func (m *Dashboard) Selected() string {
	row := m.table.SelectedRow()
	if len(row) == 0 {
		return ""
	}
	return row[0]
}

// Sandboxes returns the sandboxes currently shown.
func (m *Dashboard) Sandboxes() []engine.Sandbox {
	return m.sandboxes
}

// Status returns the last status line and whether it reports an error.
func (m *Dashboard) Status() (string, bool) {
	return m.status, m.statusErr
}

func (m *Dashboard) setSandboxes(sbs []engine.Sandbox) {
	m.sandboxes = sbs
	m.table.SetRows(rows(sbs))
	if c := m.table.Cursor(); c >= len(sbs) && len(sbs) > 0 {
		m.table.SetCursor(len(sbs) - 1)
	}
}

func (m *Dashboard) setStatus(text string, err error) {
	if err != nil {
		m.status = err.Error()
		m.statusErr = true
		return
	}
	m.status = text
	m.statusErr = false
}

// Update implements tea.Model.
func (m *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetColumns(columns(msg.Width))
		m.table.SetHeight(max(3, msg.Height-8))
		return m, nil

	case eventMsg:
		m.setSandboxes(msg.Sandboxes)
		return m, waitForEvent(m.events)

	case eventsDoneMsg:
		m.events = nil
		return m, nil

	case sandboxesMsg:
		if msg.err != nil {
			m.setStatus("", msg.err)
			return m, nil
		}
		m.setSandboxes(msg.sandboxes)
		return m, nil

	case actionDoneMsg:
		m.setStatus(msg.text, msg.err)
		return m, m.refresh()

	case tea.KeyMsg:
		switch m.mode {
		case modeConfirmDelete:
			return m.updateConfirm(msg)
		case modeCreate:
			return m.updateCreate(msg)
		}
		return m.updateTable(msg)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Dashboard) updateTable(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	alias := m.Selected()
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		m.setStatus("refreshing", nil)
		return m, m.refresh()
	case "c":
		m.mode = modeCreate
		m.focus = fieldName
		m.inputs[fieldName].SetValue("")
		return m, m.focusInput()
	case "enter":
		if alias == "" {
			return m, nil
		}
		return m, m.run(fmt.Sprintf("opened %s in editor", alias), func(ctx context.Context) error {
			return m.actions.OpenEditor(ctx, alias)
		})
	case "s":
		if alias == "" {
			return m, nil
		}
		return m, m.runChange(alias, "stopped", m.actions.StopSandbox)
	case "S":
		if alias == "" {
			return m, nil
		}
		return m, m.runChange(alias, "started", m.actions.StartSandbox)
	case "d":
		if alias == "" {
			return m, nil
		}
		m.mode = modeConfirmDelete
		m.pending = alias
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Dashboard) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	alias := m.pending
	switch msg.String() {
	case "y", "Y":
		m.mode = modeTable
		m.pending = ""
		return m, m.run(fmt.Sprintf("removed %s", alias), func(ctx context.Context) error {
			_, err := m.actions.RemoveSandbox(ctx, alias, true)
			return err
		})
	case "n", "N", "esc", "q":
		m.mode = modeTable
		m.pending = ""
		m.setStatus("remove cancelled", nil)
	}
	return m, nil
}

func (m *Dashboard) updateCreate(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeTable
		m.blurInputs()
		return m, nil
	case "tab", "down":
		m.focus = (m.focus + 1) % fieldCount
		return m, m.focusInput()
	case "shift+tab", "up":
		m.focus = (m.focus + fieldCount - 1) % fieldCount
		return m, m.focusInput()
	case "enter":
		if m.focus < fieldCount-1 {
			m.focus++
			return m, m.focusInput()
		}
		return m, m.submitCreate()
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *Dashboard) focusInput() tea.Cmd {
	m.blurInputs()
	return m.inputs[m.focus].Focus()
}

func (m *Dashboard) blurInputs() {
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
}

func (m *Dashboard) submitCreate() tea.Cmd {
	req := lifecycle.CreateRequest{
		Alias:     strings.TrimSpace(m.inputs[fieldName].Value()),
		Image:     strings.TrimSpace(m.inputs[fieldImage].Value()),
		Workspace: strings.TrimSpace(m.inputs[fieldWorkspace].Value()),
	}
	if req.Alias == "" {
		m.setStatus("", errors.Validation("name is required"))
		return nil
	}
	m.mode = modeTable
	m.blurInputs()
	m.setStatus(fmt.Sprintf("creating %s", req.Alias), nil)
	return func() tea.Msg {
		res, err := m.actions.CreateSandbox(m.ctx, req)
		if err != nil {
			return actionDoneMsg{err: err}
		}
		text := fmt.Sprintf("created %s on port %d", req.Alias, res.Port)
		if res.SSHError != nil {
			text += fmt.Sprintf(" (ssh config not updated: %v)", res.SSHError)
		}
		return actionDoneMsg{text: text}
	}
}

func (m *Dashboard) run(done string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(m.ctx); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{text: done}
	}
}

func (m *Dashboard) runChange(alias, verb string, fn func(context.Context, string) (bool, error)) tea.Cmd {
	return func() tea.Msg {
		changed, err := fn(m.ctx, alias)
		if err != nil {
			return actionDoneMsg{err: err}
		}
		if !changed {
			return actionDoneMsg{text: fmt.Sprintf("%s already %s", alias, verb)}
		}
		return actionDoneMsg{text: fmt.Sprintf("%s %s", verb, alias)}
	}
}

// View implements tea.Model.
func (m *Dashboard) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Dev Containers"))
	b.WriteString("\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")

	switch m.mode {
	case modeConfirmDelete:
		b.WriteString(promptStyle.Render(fmt.Sprintf("Remove %s? [y/n]", m.pending)))
		b.WriteString("\n")
	case modeCreate:
		fields := make([]string, 0, fieldCount+1)
		fields = append(fields, "New container")
		for _, in := range m.inputs {
			fields = append(fields, in.View())
		}
		b.WriteString(promptStyle.Render(strings.Join(fields, "\n")))
		b.WriteString("\n")
	}

	if m.status != "" {
		if m.statusErr {
			b.WriteString(errorStyle.Render(m.status))
		} else {
			b.WriteString(statusStyle.Render(m.status))
		}
		b.WriteString("\n")
	}

	help := "[enter] Editor  [c] Create  [s] Stop  [S] Start  [d] Delete  [r] Refresh  [q] Quit"
	switch m.mode {
	case modeCreate:
		help = "[tab] Next field  [enter] Create  [esc] Cancel"
	case modeConfirmDelete:
		help = "[y] Remove  [n] Cancel"
	}
	b.WriteString(helpStyle.Render(help))
	return b.String()
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// RunDashboard runs the interactive dashboard until the user quits or ctx
// is cancelled. The watcher is started here and stopped on return.
func RunDashboard(ctx context.Context, actions Actions, w *watcher.Watcher, opts DashboardOptions) error {
	if !IsTerminal(os.Stdin) || !IsTerminal(os.Stdout) {
		return errors.Validation("the dashboard needs an interactive terminal; use 'devctl ls' instead")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var events <-chan watcher.Event
	if w != nil {
		ch, unsubscribe := w.Subscribe(4)
		defer unsubscribe()
		events = ch
		go func() { _ = w.Run(ctx) }()
	}

	m := NewDashboard(ctx, actions, events, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
