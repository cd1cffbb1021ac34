package tasklist

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskflow/internal/keys"
	"github.com/nhle/taskflow/internal/model"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func sample() []model.Task {
	return []model.Task{
		{ID: "1", Title: "Write report", Status: model.StatusPending, Priority: model.PriorityHigh},
		{ID: "2", Title: "Review PR", Status: model.StatusCompleted, Priority: model.PriorityLow},
		{ID: "3", Title: "Plan sprint", Status: model.StatusInProgress, Priority: model.PriorityMedium},
		{ID: "4", Title: "Fix login", Status: model.StatusPending, Priority: model.PriorityLow},
		{ID: "5", Title: "Deploy", Status: model.StatusPending, Priority: model.PriorityMedium},
	}
}

func newModel() Model {
	m := New(keys.DefaultKeyMap(), 4, 100, 20)
	m.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	m.SetTasks(sample())
	return m
}

func TestModel_Pagination(t *testing.T) {
	m := newModel()

	p := m.Page()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 2, p.TotalPages)
	assert.Len(t, p.Items, 4)

	m, _ = m.Update(runes("l"))
	p = m.Page()
	assert.Equal(t, 2, p.Page)
	require.Len(t, p.Items, 1)
	assert.Equal(t, "5", p.Items[0].ID)

	// Already on the last page.
	m, _ = m.Update(runes("l"))
	assert.Equal(t, 2, m.Page().Page)

	m, _ = m.Update(runes("h"))
	assert.Equal(t, 1, m.Page().Page)
}

func TestModel_CycleFiltersAndReset(t *testing.T) {
	m := newModel()

	m, _ = m.Update(runes("s"))
	assert.Equal(t, model.StatusPending, m.Filter().Status)
	assert.Equal(t, 3, m.Page().Total)

	m, _ = m.Update(runes("p"))
	assert.Equal(t, model.PriorityLow, m.Filter().Priority)
	assert.Equal(t, 1, m.Page().Total)
	assert.Contains(t, m.FilterSummary(), "status pending")

	m, _ = m.Update(runes("x"))
	assert.True(t, m.Filter().IsZero())
	assert.Equal(t, 5, m.Page().Total)
	assert.Empty(t, m.FilterSummary())
}

func TestModel_StatusCycleWrapsToAll(t *testing.T) {
	m := newModel()
	for range len(model.Statuses) {
		m, _ = m.Update(runes("s"))
	}
	assert.Equal(t, model.StatusCompleted, m.Filter().Status)

	m, _ = m.Update(runes("s"))
	assert.Equal(t, model.Status(""), m.Filter().Status)
}

func TestModel_Search(t *testing.T) {
	m := newModel()

	m, _ = m.Update(runes("/"))
	require.True(t, m.Searching())

	m, _ = m.Update(runes("report"))
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.Searching())
	assert.Equal(t, "report", m.Filter().Query)

	task, ok := m.SelectedTask()
	require.True(t, ok)
	assert.Equal(t, "1", task.ID)

	m, _ = m.Update(runes("/"))
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Empty(t, m.Filter().Query)
	assert.Equal(t, 5, m.Page().Total)
}

func TestModel_RefreshKeepsPage(t *testing.T) {
	m := newModel()
	m, _ = m.Update(runes("l"))

	m.SetTasks(append(sample(), model.Task{ID: "6", Title: "Retro", Status: model.StatusPending}))
	assert.Equal(t, 2, m.Page().Page)

	// Shrinking below the current page clamps to the last one.
	m.SetTasks(sample()[:2])
	assert.Equal(t, 1, m.Page().Page)
}

func TestModel_EmptyState(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 4, 100, 20)
	m.SetTasks(nil)
	assert.Contains(t, m.View(), "No tasks yet.")

	m.SetTasks(sample())
	m, _ = m.Update(runes("/"))
	m, _ = m.Update(runes("nothing matches"))
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Contains(t, m.View(), "No matching tasks.")
}
