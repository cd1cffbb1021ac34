package inbox

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskflow/internal/model"
	"github.com/nhle/taskflow/internal/theme"
)

// Model is the notification panel. It renders a snapshot of the inbox,
// newest first, in a scrollable viewport.
type Model struct {
	viewport viewport.Model
	items    []model.NotificationEvent
	width    int
	height   int
	now      func() time.Time
}

// New creates a notification panel.
func New(width, height int) Model {
	vp := viewport.New(width-4, height-4)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		width:    width,
		height:   height,
		now:      time.Now,
	}
}

// SetItems replaces the displayed notifications.
func (m *Model) SetItems(items []model.NotificationEvent) {
	m.items = items
	m.viewport.SetContent(m.renderContent())
}

// Len returns the number of displayed notifications.
func (m Model) Len() int {
	return len(m.items)
}

// Update scrolls the viewport.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the panel.
func (m Model) View() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		Render(fmt.Sprintf("Notifications (%d)", len(m.items)))

	return theme.PanelStyle.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, m.viewport.View()))
}

func (m Model) renderContent() string {
	if len(m.items) == 0 {
		return theme.DimmedStyle.Render("No notifications")
	}

	now := m.now()
	var b strings.Builder
	for i, ev := range m.items {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(ev.Message)
		b.WriteString("\n")
		if ev.Task != nil && ev.Task.Title != "" {
			b.WriteString("  ")
			b.WriteString(ev.Task.Title)
			if ev.Task.Description != "" {
				b.WriteString(theme.DimmedStyle.Render(" · " + ev.Task.Description))
			}
			b.WriteString("\n")
		}
		b.WriteString(theme.DimmedStyle.Render("  " + Ago(now, ev.Timestamp)))
		b.WriteString("\n")
	}
	return b.String()
}

// Ago renders t relative to now in a compact form.
func Ago(now, t time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Local().Format("Jan 2 15:04")
	}
}

// SetSize updates the panel dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width - 4
	m.viewport.Height = height - 4
}
