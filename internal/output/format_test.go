package output

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/nhle/taskflow/internal/model"
	"github.com/nhle/taskflow/internal/tasks"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func sampleTasks() []model.Task {
	past := now.Add(-72 * time.Hour)
	return []model.Task{
		{ID: "t1", Title: "Write report", Status: model.StatusPending, Priority: model.PriorityHigh,
			DueDate: &past, AssignedTo: &model.UserRef{ID: "u1", Name: "Ada"}},
		{ID: "t2", Title: "Review\nPR", Status: model.StatusCompleted, Priority: model.PriorityLow},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatTable, "table": FormatTable, "JSON": FormatJSON, "yaml": FormatYAML} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestTaskPage_Table(t *testing.T) {
	var buf bytes.Buffer
	p := tasks.Paginate(sampleTasks(), 1, 4)
	require.NoError(t, TaskPage(&buf, FormatTable, p, now))

	out := buf.String()
	assert.Contains(t, out, "Write report")
	assert.Contains(t, out, "(overdue)")
	assert.Contains(t, out, "Review PR")
	assert.Contains(t, out, "Ada")
	assert.Contains(t, out, "Page 1 of 1 (2 tasks)")
}

func TestTaskPage_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, TaskPage(&buf, FormatTable, tasks.Paginate(nil, 1, 4), now))
	assert.Equal(t, "No tasks found.\n", buf.String())
}

func TestTaskPage_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, TaskPage(&buf, FormatJSON, tasks.Paginate(sampleTasks(), 1, 1), now))

	var got pageView
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 2, got.TotalPages)
	require.Len(t, got.Tasks, 1)
	assert.Equal(t, "t1", got.Tasks[0].ID)
	assert.True(t, got.Tasks[0].Overdue)
	assert.Equal(t, "2025-05-29", got.Tasks[0].Due)
}

func TestUsers_YAML(t *testing.T) {
	var buf bytes.Buffer
	users := []model.User{{ID: "u1", Name: "Ada", Email: "ada@example.com", Role: model.RoleAdmin}}
	require.NoError(t, Users(&buf, FormatYAML, users))

	var got []userView
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "admin", got[0].Role)
}

func TestSummary_Table(t *testing.T) {
	var buf bytes.Buffer
	s := tasks.Summarize(sampleTasks(), "u1", now)
	require.NoError(t, Summary(&buf, FormatTable, s, now))

	out := buf.String()
	assert.Contains(t, out, "Assigned to me (1)")
	assert.Contains(t, out, "Created by me (0)")
	assert.Contains(t, out, "Overdue (1)")
}

func TestNotification(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Notification(&buf, model.NotificationEvent{
		Message:   "You have been assigned a new task",
		Task:      &model.TaskSnapshot{Title: "Deploy"},
		Timestamp: now,
	}))
	assert.Contains(t, buf.String(), "You have been assigned a new task: Deploy")
}
