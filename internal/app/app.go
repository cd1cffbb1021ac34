package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskflow/internal/events"
	"github.com/nhle/taskflow/internal/keys"
	"github.com/nhle/taskflow/internal/model"
	appsync "github.com/nhle/taskflow/internal/sync"
	"github.com/nhle/taskflow/internal/tasks"
	"github.com/nhle/taskflow/internal/theme"
	"github.com/nhle/taskflow/internal/ui"
	"github.com/nhle/taskflow/internal/ui/inbox"
	"github.com/nhle/taskflow/internal/ui/tasklist"
)

// notificationMsg carries a task:assigned notification to the UI.
type notificationMsg struct {
	event model.NotificationEvent
}

// streamStateMsg carries an event stream state transition to the UI.
type streamStateMsg struct {
	state events.State
}

// inboxPanelWidth caps the notification panel width.
const inboxPanelWidth = 48

// Options wires the dashboard to the running client components.
type Options struct {
	Session  model.Session
	Syncer   *appsync.Syncer
	Stream   *events.Client
	PageSize int
}

// Model is the root Bubble Tea model for the live dashboard.
type Model struct {
	session  model.Session
	keys     *keys.KeyMap
	layout   ui.Layout
	taskList tasklist.Model
	inbox    inbox.Model
	help     help.Model
	syncer   *appsync.Syncer
	stream   *events.Client

	// streamCh bridges stream callbacks, which run on the reader goroutine,
	// into the Bubble Tea loop. done unblocks the waiting command on quit.
	streamCh chan tea.Msg
	done     chan struct{}
	unsubs   []func()

	streamState   events.State
	summary       tasks.Summary
	showInbox     bool
	showHelp      bool
	ready         bool
	statusMessage string
	now           func() time.Time
}

// New creates the dashboard model and subscribes to the stream.
func New(opts Options) Model {
	k := keys.DefaultKeyMap()
	m := Model{
		session:     opts.Session,
		keys:        k,
		taskList:    tasklist.New(k, opts.PageSize, 80, 24),
		inbox:       inbox.New(inboxPanelWidth, 24),
		help:        help.New(),
		syncer:      opts.Syncer,
		stream:      opts.Stream,
		streamCh:    make(chan tea.Msg, 64),
		done:        make(chan struct{}),
		streamState: opts.Stream.State(),
		now:         time.Now,
	}

	ch := m.streamCh
	m.unsubs = append(m.unsubs,
		opts.Stream.OnAssigned(func(ev model.NotificationEvent) {
			post(ch, notificationMsg{event: ev})
		}),
		opts.Stream.OnStateChange(func(s events.State) {
			post(ch, streamStateMsg{state: s})
		}),
	)
	return m
}

// post forwards msg without blocking the stream reader. The inbox already
// holds the event, so a dropped message only delays a redraw.
func post(ch chan<- tea.Msg, msg tea.Msg) {
	select {
	case ch <- msg:
	default:
	}
}

// waitForStream returns a tea.Cmd that waits for the next stream message.
func (m Model) waitForStream() tea.Cmd {
	ch, done := m.streamCh, m.done
	return func() tea.Msg {
		select {
		case msg := <-ch:
			return msg
		case <-done:
			return nil
		}
	}
}

// Init starts the refresh loop and the stream bridge.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.syncer.Start(),
		m.waitForStream(),
	)
}

// shutdown releases subscriptions and stops background refreshes.
func (m Model) shutdown() tea.Cmd {
	for _, unsub := range m.unsubs {
		unsub()
	}
	close(m.done)
	m.syncer.Stop()
	return tea.Quit
}

// Update handles messages and dispatches to the task table.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.resize()
		return m, nil

	case appsync.ResultMsg:
		switch {
		case msg.AuthExpired:
			m.statusMessage = "session expired: run `taskflow login`"
		case msg.Err != nil:
			m.statusMessage = "refresh failed: " + msg.Err.Error()
		default:
			m.statusMessage = ""
			m.taskList.SetTasks(msg.Tasks)
			m.summary = tasks.Summarize(msg.Tasks, m.session.UserID, m.now())
		}
		return m, m.syncer.WaitForResult()

	case notificationMsg:
		m.syncInbox()
		return m, m.waitForStream()

	case streamStateMsg:
		m.streamState = msg.state
		return m, m.waitForStream()

	case tea.KeyMsg:
		if m.taskList.Searching() {
			break
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, m.shutdown()

		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			return m, nil

		case key.Matches(msg, m.keys.Back):
			m.showHelp = false
			m.showInbox = false
			m.resize()
			return m, nil

		case key.Matches(msg, m.keys.Refresh):
			m.syncer.Trigger(appsync.ReasonManual)
			return m, nil

		case key.Matches(msg, m.keys.Notifications):
			m.showInbox = !m.showInbox
			if m.showInbox {
				m.stream.Inbox().MarkRead()
			}
			m.syncInbox()
			m.resize()
			return m, nil

		case key.Matches(msg, m.keys.ClearNotifications):
			m.stream.Inbox().Clear()
			m.syncInbox()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.taskList, cmd = m.taskList.Update(msg)
	return m, cmd
}

// syncInbox copies the current inbox snapshot into the panel.
func (m *Model) syncInbox() {
	m.inbox.SetItems(m.stream.Inbox().Items())
}

// resize lays out the table and the optional notification panel.
func (m *Model) resize() {
	if !m.ready {
		return
	}
	height := m.layout.ContentHeight()
	width := m.layout.ContentWidth()
	if m.showInbox {
		var panel int
		width, panel = m.layout.SplitWidth(inboxPanelWidth)
		m.inbox.SetSize(panel, height)
	}
	m.taskList.SetSize(width, height)
	m.help.Width = m.layout.Width - 4
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(
		m.title(),
		m.stream.Inbox().UnreadBadge(),
		theme.StreamStyle(m.streamState.String()).Render("● "+m.streamState.String()),
		theme.HeaderStyle.Render(m.syncStatus()),
	)
	statusBar := m.layout.RenderStatusBar(m.statusLine())

	return m.layout.RenderWithFrame(header, m.renderContent(), statusBar)
}

func (m Model) title() string {
	name := m.session.Name
	if name == "" {
		name = m.session.Email
	}
	if name == "" {
		return "TaskFlow"
	}
	return "TaskFlow · " + name
}

// renderContent returns the table, the notification panel, or help.
func (m Model) renderContent() string {
	if m.showHelp {
		m.help.ShowAll = true
		title := lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorWhite).
			MarginBottom(1).
			Render("Keyboard Shortcuts")
		return theme.PanelStyle.
			Width(m.layout.Width - 4).
			Render(lipgloss.JoinVertical(lipgloss.Left, title, m.help.View(m.keys)))
	}

	if !m.showInbox {
		return m.taskList.View()
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, m.taskList.View(), m.inbox.View())
}

// syncStatus returns a short string describing the refresh loop.
func (m Model) syncStatus() string {
	status := m.syncer.Status()
	switch status.State {
	case appsync.SyncRunning:
		return "syncing"
	case appsync.SyncError:
		return "⚠ sync failed"
	}
	if status.LastSync.IsZero() {
		return "waiting"
	}
	return "synced " + status.LastSync.Format("15:04:05")
}

// statusLine returns the dashboard counts, filters, or the last error.
func (m Model) statusLine() string {
	if m.statusMessage != "" {
		return theme.ErrorStyle.Render(m.statusMessage)
	}
	if m.taskList.Searching() {
		return "enter apply | esc cancel"
	}

	parts := []string{
		fmt.Sprintf("assigned %d", len(m.summary.Assigned)),
		fmt.Sprintf("created %d", len(m.summary.Created)),
		fmt.Sprintf("overdue %d", len(m.summary.Overdue)),
	}
	line := strings.Join(parts, " · ")
	if f := m.taskList.FilterSummary(); f != "" {
		line += " | " + f + " | x reset"
	}
	return line + " | ? help"
}
