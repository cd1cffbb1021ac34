package app

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskflow/internal/events"
	"github.com/nhle/taskflow/internal/model"
	appsync "github.com/nhle/taskflow/internal/sync"
)

type staticRepo struct {
	tasks []model.Task
}

func (r staticRepo) Tasks() []model.Task { return r.tasks }

func (r staticRepo) Refresh(context.Context) ([]model.Task, error) { return r.tasks, nil }

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestModel(t *testing.T) (Model, *events.Client) {
	t.Helper()
	stream := events.NewClient(events.Config{})
	syncer := appsync.New(staticRepo{}, 0)
	t.Cleanup(syncer.Stop)

	m := New(Options{
		Session:  model.Session{UserID: "u1", Name: "Ada", Role: model.RoleUser},
		Syncer:   syncer,
		Stream:   stream,
		PageSize: 4,
	})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	return next.(Model), stream
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func TestModel_ResultUpdatesTableAndSummary(t *testing.T) {
	m, _ := newTestModel(t)
	past := time.Now().Add(-48 * time.Hour)

	m, cmd := update(t, m, appsync.ResultMsg{Tasks: []model.Task{
		{ID: "t1", Title: "Write report", Status: model.StatusPending, DueDate: &past,
			AssignedTo: &model.UserRef{ID: "u1"}},
		{ID: "t2", Title: "Review PR", Status: model.StatusCompleted,
			CreatedBy: &model.UserRef{ID: "u1"}},
	}})
	assert.NotNil(t, cmd)

	view := m.View()
	assert.Contains(t, view, "Write report")
	assert.Contains(t, view, "assigned 1")
	assert.Contains(t, view, "created 1")
	assert.Contains(t, view, "overdue 1")
	assert.Contains(t, view, "TaskFlow · Ada")
}

func TestModel_ResultErrorKeepsTasks(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = update(t, m, appsync.ResultMsg{Tasks: []model.Task{{ID: "t1", Title: "Write report"}}})

	m, _ = update(t, m, appsync.ResultMsg{Err: assert.AnError, AuthExpired: true})
	view := m.View()
	assert.Contains(t, view, "Write report")
	assert.Contains(t, view, "session expired")
}

func TestModel_NotificationBadgeAndPanel(t *testing.T) {
	m, stream := newTestModel(t)

	ev := model.NotificationEvent{
		ID:        "n1",
		Message:   "You have been assigned a new task",
		Task:      &model.TaskSnapshot{Title: "Deploy"},
		Timestamp: time.Now(),
	}
	stream.Inbox().Push(ev)
	m, cmd := update(t, m, notificationMsg{event: ev})
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "[1 new]")

	m, _ = update(t, m, runes("n"))
	assert.Equal(t, 0, stream.Inbox().Unread())
	view := m.View()
	assert.NotContains(t, view, "[1 new]")
	assert.Contains(t, view, "Deploy")

	m, _ = update(t, m, runes("c"))
	assert.Equal(t, 0, stream.Inbox().Len())
	assert.Contains(t, m.View(), "No notifications")
}

func TestModel_StreamState(t *testing.T) {
	m, _ := newTestModel(t)
	assert.Contains(t, m.View(), "disconnected")

	m, _ = update(t, m, streamStateMsg{state: events.Connected})
	assert.Contains(t, m.View(), "connected")
	assert.NotContains(t, m.View(), "disconnected")
}

func TestModel_HelpToggle(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = update(t, m, runes("?"))
	assert.Contains(t, m.View(), "Keyboard Shortcuts")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.NotContains(t, m.View(), "Keyboard Shortcuts")
}

func TestModel_QuitStopsBackgroundWork(t *testing.T) {
	m, _ := newTestModel(t)
	_, cmd := update(t, m, runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	// The stream bridge unblocks once the dashboard quits.
	assert.Nil(t, m.waitForStream()())
}

func TestModel_SearchSwallowsShortcuts(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = update(t, m, runes("/"))

	m, _ = update(t, m, runes("q"))
	assert.True(t, m.taskList.Searching())
	assert.Contains(t, m.View(), "enter apply")
}
