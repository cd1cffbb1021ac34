package tasklist

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskflow/internal/keys"
	"github.com/nhle/taskflow/internal/model"
	"github.com/nhle/taskflow/internal/tasks"
	"github.com/nhle/taskflow/internal/theme"
)

// Model is the filtered, paginated task table.
type Model struct {
	table       table.Model
	keys        *keys.KeyMap
	all         []model.Task
	filter      tasks.Filter
	page        int
	perPage     int
	searchMode  bool
	searchInput textinput.Model
	width       int
	height      int
	now         func() time.Time
}

// New creates a task table showing perPage rows per page.
func New(k *keys.KeyMap, perPage, width, height int) Model {
	if perPage <= 0 {
		perPage = tasks.DefaultPerPage
	}

	t := table.New(
		table.WithColumns(columns(width)),
		table.WithFocused(true),
		table.WithHeight(perPage+1),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(theme.ColorBorder).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(theme.ColorWhite).
		Background(theme.ColorBlue)
	t.SetStyles(styles)

	si := textinput.New()
	si.Placeholder = "search tasks..."
	si.Prompt = "/ "
	si.Width = width - 4

	return Model{
		table:       t,
		keys:        k,
		page:        1,
		perPage:     perPage,
		searchInput: si,
		width:       width,
		height:      height,
		now:         time.Now,
	}
}

// columns sizes the table to the available width, giving the title the
// remainder.
func columns(width int) []table.Column {
	const fixed = 12 + 8 + 11 + 16
	title := width - fixed - 10
	if title < 16 {
		title = 16
	}
	return []table.Column{
		{Title: "Title", Width: title},
		{Title: "Status", Width: 12},
		{Title: "Priority", Width: 8},
		{Title: "Due", Width: 11},
		{Title: "Assignee", Width: 16},
	}
}

// SetTasks replaces the displayed collection. The current page is kept
// when it still exists.
func (m *Model) SetTasks(ts []model.Task) {
	m.all = ts
	m.rebuild()
}

// Filter returns the active filter.
func (m Model) Filter() tasks.Filter {
	return m.filter
}

// Searching reports whether the search input has focus.
func (m Model) Searching() bool {
	return m.searchMode
}

// Page returns the page currently displayed.
func (m Model) Page() tasks.Page {
	return tasks.Paginate(m.filter.Apply(m.all), m.page, m.perPage)
}

// SelectedTask returns the highlighted task.
func (m Model) SelectedTask() (model.Task, bool) {
	items := m.Page().Items
	i := m.table.Cursor()
	if i < 0 || i >= len(items) {
		return model.Task{}, false
	}
	return items[i], true
}

// Update handles messages for the task table.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if m.searchMode {
			return m.handleSearchKeys(msg)
		}
		return m.handleNormalKeys(msg)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// handleSearchKeys processes key input while in search mode.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		m.searchInput.Blur()
		m.filter.Query = strings.TrimSpace(m.searchInput.Value())
		m.page = 1
		m.rebuild()
		return m, nil

	case "esc":
		m.searchMode = false
		m.searchInput.Blur()
		m.searchInput.Reset()
		m.filter.Query = ""
		m.page = 1
		m.rebuild()
		return m, nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

// handleNormalKeys processes key input in normal (non-search) mode.
func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.searchInput.SetValue(m.filter.Query)
		return m, m.searchInput.Focus()

	case key.Matches(msg, m.keys.CycleStatus):
		m.filter.Status = nextStatus(m.filter.Status)
		m.page = 1
		m.rebuild()
		return m, nil

	case key.Matches(msg, m.keys.CyclePriority):
		m.filter.Priority = nextPriority(m.filter.Priority)
		m.page = 1
		m.rebuild()
		return m, nil

	case key.Matches(msg, m.keys.ResetFilters):
		m.filter.Reset()
		m.searchInput.Reset()
		m.page = 1
		m.rebuild()
		return m, nil

	case key.Matches(msg, m.keys.NextPage):
		if p := m.Page(); p.Page < p.TotalPages {
			m.page = p.Page + 1
			m.rebuild()
		}
		return m, nil

	case key.Matches(msg, m.keys.PrevPage):
		if p := m.Page(); p.Page > 1 {
			m.page = p.Page - 1
			m.rebuild()
		}
		return m, nil
	}

	// Delegate to the table for cursor movement
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// nextStatus cycles all → pending → in-progress → completed → all.
func nextStatus(s model.Status) model.Status {
	for i, v := range model.Statuses {
		if v == s {
			if i+1 < len(model.Statuses) {
				return model.Statuses[i+1]
			}
			return ""
		}
	}
	return model.Statuses[0]
}

func nextPriority(p model.Priority) model.Priority {
	for i, v := range model.Priorities {
		if v == p {
			if i+1 < len(model.Priorities) {
				return model.Priorities[i+1]
			}
			return ""
		}
	}
	return model.Priorities[0]
}

// rebuild recomputes the visible rows from the collection and filter.
func (m *Model) rebuild() {
	p := m.Page()
	m.page = p.Page

	now := m.now()
	rows := make([]table.Row, 0, len(p.Items))
	for _, t := range p.Items {
		due := t.DueDay()
		if t.IsOverdue(now) {
			due += " !"
		}
		assignee := "-"
		if t.AssignedTo != nil {
			assignee = t.AssignedTo.Name
			if assignee == "" {
				assignee = t.AssignedTo.ID
			}
		}
		rows = append(rows, table.Row{t.Title, string(t.Status), string(t.Priority), due, assignee})
	}
	m.table.SetRows(rows)
	if m.table.Cursor() >= len(rows) {
		m.table.SetCursor(max(len(rows)-1, 0))
	}
}

// FilterSummary describes the active filters for the status bar, or "".
func (m Model) FilterSummary() string {
	var parts []string
	if m.filter.Query != "" {
		parts = append(parts, fmt.Sprintf("search %q", m.filter.Query))
	}
	if m.filter.Status != "" {
		parts = append(parts, "status "+string(m.filter.Status))
	}
	if m.filter.Priority != "" {
		parts = append(parts, "priority "+string(m.filter.Priority))
	}
	if m.filter.Due != "" {
		parts = append(parts, "due "+m.filter.Due)
	}
	return strings.Join(parts, ", ")
}

// View renders the task table.
func (m Model) View() string {
	var sections []string

	if m.searchMode {
		sections = append(sections, lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.searchInput.View()))
	}

	p := m.Page()
	if p.Total == 0 {
		sections = append(sections, m.renderEmptyState())
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}

	sections = append(sections,
		m.table.View(),
		theme.DimmedStyle.Render(fmt.Sprintf(" page %d/%d · %d tasks", p.Page, p.TotalPages, p.Total)),
	)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderEmptyState shows guidance text when no tasks are visible.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.perPage+2).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if !m.filter.IsZero() {
		return style.Render("No matching tasks.\nPress x to reset filters.")
	}
	return style.Render("No tasks yet.")
}

// SetSize updates the table dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.table.SetColumns(columns(width))
	m.table.SetWidth(width)
	m.searchInput.Width = width - 4
}
