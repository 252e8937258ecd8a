package tui

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/atotto/clipboard"

	"github.com/therockpusher/taskweaver/internal/domain"
)

// Service is the slice of the dependency service the board needs.
type Service interface {
	RankedOpenTasks(context.Context) ([]domain.RankedTask, error)
	ActiveBlockers(context.Context, string) ([]domain.Task, error)
	Blocked(context.Context, string) ([]domain.Task, error)
	StartTask(context.Context, string) (domain.Task, error)
	CompleteTask(context.Context, string) (domain.Task, error)
	CancelTask(context.Context, string) (domain.Task, error)
}

// viewMode selects the board or the details pane.
type viewMode int

const (
	modeBoard viewMode = iota
	modeDetails
)

// boardChromeLines counts header, column titles, status and help rows.
const boardChromeLines = 6

// loadedMsg carries one ranked board reload.
type loadedMsg struct {
	tasks []domain.RankedTask
	err   error
}

// detailsMsg carries the neighbours of one task.
type detailsMsg struct {
	taskID   string
	blockers []domain.Task
	blocked  []domain.Task
	err      error
}

// actionMsg reports a finished mutation or side effect.
type actionMsg struct {
	status string
	err    error
	reload bool
}

// taskDetail is the details pane state.
type taskDetail struct {
	taskID   string
	blockers []domain.Task
	blocked  []domain.Task
	loaded   bool
}

// Model is the ranked dependency board.
type Model struct {
	svc Service

	ready  bool
	width  int
	height int
	err    error
	status string

	help help.Model
	keys keyMap

	tasks    []domain.RankedTask
	selected int
	offset   int
	mode     viewMode
	detail   taskDetail

	markdown *markdownRenderer
	copyText func(string) error
}

// NewModel constructs a board over svc.
func NewModel(svc Service, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	m := Model{
		svc:      svc,
		status:   "loading...",
		help:     h,
		keys:     newKeyMap(),
		markdown: &markdownRenderer{},
		copyText: clipboard.WriteAll,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

// Init loads the board.
func (m Model) Init() tea.Cmd {
	return m.loadData
}

// Update applies one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		m.clampSelection()
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.tasks = msg.tasks
		m.clampSelection()
		if m.status == "" || strings.HasSuffix(m.status, "loading...") {
			m.status = "ready"
		}
		if m.mode == modeDetails {
			idx := m.indexOf(m.detail.taskID)
			if idx < 0 {
				m.mode = modeBoard
				m.detail = taskDetail{}
				return m, nil
			}
			m.selected = idx
			return m, m.loadDetails(m.detail.taskID)
		}
		return m, nil

	case detailsMsg:
		if msg.taskID != m.detail.taskID {
			return m, nil
		}
		if msg.err != nil {
			m.status = "details failed: " + msg.err.Error()
			return m, nil
		}
		m.detail.blockers = msg.blockers
		m.detail.blocked = msg.blocked
		m.detail.loaded = true
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.status = "error: " + msg.err.Error()
			return m, nil
		}
		if msg.status != "" {
			m.status = msg.status
		}
		if msg.reload {
			return m, m.loadData
		}
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	default:
		return m, nil
	}
}

// handleKey dispatches one key press.
func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.reload):
		m.status = "reloading..."
		return m, m.loadData
	}
	if m.err != nil {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.back):
		if m.mode == modeDetails {
			m.mode = modeBoard
			m.detail = taskDetail{}
		}
		return m, nil
	case key.Matches(msg, m.keys.moveUp):
		if m.mode == modeBoard && m.selected > 0 {
			m.selected--
			m.clampSelection()
		}
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		if m.mode == modeBoard && m.selected < len(m.tasks)-1 {
			m.selected++
			m.clampSelection()
		}
		return m, nil
	}

	task, ok := m.selectedTask()
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.details):
		if m.mode == modeDetails {
			return m, nil
		}
		m.mode = modeDetails
		m.detail = taskDetail{taskID: task.ID}
		return m, m.loadDetails(task.ID)
	case key.Matches(msg, m.keys.start):
		return m, m.transition(task, m.svc.StartTask, "started")
	case key.Matches(msg, m.keys.complete):
		return m, m.transition(task, m.svc.CompleteTask, "completed")
	case key.Matches(msg, m.keys.cancel):
		return m, m.transition(task, m.svc.CancelTask, "cancelled")
	case key.Matches(msg, m.keys.copyID):
		return m, m.copyID(task.ID)
	}
	return m, nil
}

func (m Model) loadData() tea.Msg {
	if m.svc == nil {
		return loadedMsg{err: fmt.Errorf("no service configured")}
	}
	tasks, err := m.svc.RankedOpenTasks(context.Background())
	return loadedMsg{tasks: tasks, err: err}
}

func (m Model) loadDetails(taskID string) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx := context.Background()
		blockers, err := svc.ActiveBlockers(ctx, taskID)
		if err != nil {
			return detailsMsg{taskID: taskID, err: err}
		}
		blocked, err := svc.Blocked(ctx, taskID)
		if err != nil {
			return detailsMsg{taskID: taskID, err: err}
		}
		return detailsMsg{taskID: taskID, blockers: blockers, blocked: blocked}
	}
}

// transition runs one status change and reloads the board.
func (m Model) transition(task domain.RankedTask, fn func(context.Context, string) (domain.Task, error), verb string) tea.Cmd {
	return func() tea.Msg {
		if _, err := fn(context.Background(), task.ID); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: verb + " " + task.Title, reload: true}
	}
}

func (m Model) copyID(id string) tea.Cmd {
	write := m.copyText
	return func() tea.Msg {
		if err := write(id); err != nil {
			return actionMsg{err: fmt.Errorf("copy id: %w", err)}
		}
		return actionMsg{status: "copied " + id}
	}
}

func (m Model) selectedTask() (domain.RankedTask, bool) {
	if len(m.tasks) == 0 {
		return domain.RankedTask{}, false
	}
	if m.mode == modeDetails {
		if idx := m.indexOf(m.detail.taskID); idx >= 0 {
			return m.tasks[idx], true
		}
		return domain.RankedTask{}, false
	}
	return m.tasks[clamp(m.selected, 0, len(m.tasks)-1)], true
}

func (m Model) indexOf(taskID string) int {
	for i, t := range m.tasks {
		if t.ID == taskID {
			return i
		}
	}
	return -1
}

// clampSelection keeps the cursor and scroll window inside the task list.
func (m *Model) clampSelection() {
	if len(m.tasks) == 0 {
		m.selected, m.offset = 0, 0
		return
	}
	m.selected = clamp(m.selected, 0, len(m.tasks)-1)
	rows := m.visibleRows()
	if m.selected < m.offset {
		m.offset = m.selected
	}
	if m.selected >= m.offset+rows {
		m.offset = m.selected - rows + 1
	}
	m.offset = clamp(m.offset, 0, max(0, len(m.tasks)-rows))
}

func (m Model) visibleRows() int {
	if m.height <= 0 {
		return max(1, len(m.tasks))
	}
	return max(1, m.height-boardChromeLines)
}

// View renders the current screen.
func (m Model) View() tea.View {
	v := tea.NewView(m.render())
	v.AltScreen = true
	return v
}

func (m Model) render() string {
	switch {
	case m.err != nil:
		return "error: " + m.err.Error() + "\n\npress r to retry • q quit\n"
	case !m.ready:
		return "loading..."
	case m.mode == modeDetails:
		return m.renderDetails()
	default:
		return m.renderBoard()
	}
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true)
	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Bold(true)
	readyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	waitingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
)

func (m Model) renderBoard() string {
	readyCount := 0
	for _, t := range m.tasks {
		if t.Ready() {
			readyCount++
		}
	}
	lines := []string{
		titleStyle.Render("taskweaver") + mutedStyle.Render(fmt.Sprintf("  %d open · %d ready", len(m.tasks), readyCount)),
		"",
	}
	if len(m.tasks) == 0 {
		lines = append(lines, "No open tasks.")
	} else {
		lines = append(lines, headerStyle.Render(fmt.Sprintf("  %-5s %7s %7s %4s %4s  %s", "STATE", "EFF", "OWN", "BLK", "UNL", "TITLE")))
		titleWidth := 40
		if m.width > 0 {
			titleWidth = max(10, m.width-38)
		}
		rows := m.visibleRows()
		end := min(len(m.tasks), m.offset+rows)
		for i := m.offset; i < end; i++ {
			t := m.tasks[i]
			state := waitingStyle.Render("wait ")
			if t.Ready() {
				state = readyStyle.Render("ready")
			}
			row := fmt.Sprintf("%s %7s %7s %4d %4d  %s",
				state,
				formatPriority(t.EffectivePriority),
				formatPriority(t.IntrinsicPriority),
				t.ActiveBlockerCount,
				t.TasksBlockedCount,
				truncate(t.Title, titleWidth),
			)
			if i == m.selected {
				lines = append(lines, cursorStyle.Render("›")+" "+row)
			} else {
				lines = append(lines, "  "+row)
			}
		}
	}
	lines = append(lines, "", statusStyle.Render(m.status), m.renderHelp())
	return strings.Join(lines, "\n")
}

func (m Model) renderDetails() string {
	idx := m.indexOf(m.detail.taskID)
	if idx < 0 {
		return "task no longer open\n\n" + m.renderHelp()
	}
	t := m.tasks[idx]
	lines := []string{
		titleStyle.Render(t.Title),
		mutedStyle.Render(fmt.Sprintf("id %s · %s · %d min · value %s", t.ID, t.Status, t.DurationMin, formatPriority(t.Value))),
		fmt.Sprintf("priority: own %s · effective %s", formatPriority(t.IntrinsicPriority), formatPriority(t.EffectivePriority)),
	}
	if t.Requirement != "" {
		lines = append(lines, mutedStyle.Render("requirement: "+t.Requirement))
	}
	if desc := m.markdown.render(t.Description, max(0, m.width-4)); desc != "" {
		lines = append(lines, "", desc)
	}

	lines = append(lines, "", headerStyle.Render("Blocked by"))
	switch {
	case !m.detail.loaded:
		lines = append(lines, mutedStyle.Render("  loading..."))
	case len(m.detail.blockers) == 0:
		lines = append(lines, readyStyle.Render("  nothing active, ready to start"))
	default:
		for _, b := range m.detail.blockers {
			lines = append(lines, fmt.Sprintf("  %s  %s (%s)", b.ID, b.Title, b.Status))
		}
	}

	lines = append(lines, "", headerStyle.Render("Blocks"))
	switch {
	case !m.detail.loaded:
		lines = append(lines, mutedStyle.Render("  loading..."))
	case len(m.detail.blocked) == 0:
		lines = append(lines, mutedStyle.Render("  nothing"))
	default:
		for _, b := range m.detail.blocked {
			lines = append(lines, fmt.Sprintf("  %s  %s (%s)", b.ID, b.Title, b.Status))
		}
	}
	lines = append(lines, "", statusStyle.Render(m.status), m.renderHelp())
	return strings.Join(lines, "\n")
}

func (m Model) renderHelp() string {
	h := m.help
	h.SetWidth(max(0, m.width-2))
	return h.View(m.keys)
}

func formatPriority(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return min(max(v, lo), hi)
}
