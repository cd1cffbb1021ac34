package model

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Priority is the urgency level of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Status is the progress state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Priorities lists every valid priority in display order.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	for _, v := range Priorities {
		if p == v {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// UserRef is the embedded user reference carried by a task.
type UserRef struct {
	ID   string `json:"_id"`
	Name string `json:"name,omitempty"`
}

// UnmarshalJSON accepts either an embedded {_id,name} object or a bare id
// string, since unpopulated references arrive as plain ids.
func (r *UserRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &r.ID)
	}
	type plain UserRef
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = UserRef(p)
	return nil
}

// Task is a work item owned by the backend. The client only ever holds a
// cached copy.
type Task struct {
	// ID is the server-assigned identifier.
	ID string `json:"_id"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	// DueDate is nil when the task has no deadline.
	DueDate *time.Time `json:"dueDate,omitempty"`

	Priority Priority `json:"priority"`
	Status   Status   `json:"status"`

	// AssignedTo is nil for unassigned tasks.
	AssignedTo *UserRef `json:"assignedTo,omitempty"`

	// CreatedBy references the user who created the task.
	CreatedBy *UserRef `json:"createdBy,omitempty"`
}

// UnmarshalJSON decodes a task, reading dueDate leniently so one odd date
// never fails a whole list.
func (t *Task) UnmarshalJSON(data []byte) error {
	type plain Task
	aux := struct {
		*plain
		DueDate json.RawMessage `json:"dueDate"`
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t.DueDate = ParseDueDate(aux.DueDate)
	return nil
}

// dueDateLayouts are tried in order for string due dates.
var dueDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	DateLayout,
}

// ParseDueDate reads a wire due date: an RFC 3339 timestamp, a bare
// YYYY-MM-DD day (UTC midnight), or epoch milliseconds. Empty strings, null
// and anything unparseable yield nil.
func ParseDueDate(raw json.RawMessage) *time.Time {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		for _, layout := range dueDateLayouts {
			if d, err := time.Parse(layout, s); err == nil {
				return &d
			}
		}
		return nil
	}

	var ms float64
	if err := json.Unmarshal(raw, &ms); err == nil {
		d := time.UnixMilli(int64(ms)).UTC()
		return &d
	}
	return nil
}

// AssigneeID returns the assignee's id or "" when unassigned.
func (t Task) AssigneeID() string {
	if t.AssignedTo == nil {
		return ""
	}
	return t.AssignedTo.ID
}

// CreatorID returns the creator's id or "".
func (t Task) CreatorID() string {
	if t.CreatedBy == nil {
		return ""
	}
	return t.CreatedBy.ID
}

// IsOverdue reports whether the task is past its due date and not completed.
func (t Task) IsOverdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && t.Status != StatusCompleted
}

// DueDay returns the due date formatted as YYYY-MM-DD in UTC, or "".
func (t Task) DueDay() string {
	if t.DueDate == nil {
		return ""
	}
	return t.DueDate.UTC().Format(DateLayout)
}

// DateLayout is the calendar-day format used for due dates on input and
// in filters.
const DateLayout = "2006-01-02"

// TaskDraft holds the fields submitted when creating a task.
type TaskDraft struct {
	Title       string
	Description string
	DueDate     *time.Time
	Priority    Priority
	Status      Status

	// AssignedTo is only honored for admins. Empty means unassigned.
	AssignedTo string
}

// TaskPatch holds optional field updates. Nil fields are left untouched.
// An AssignedTo pointing at "" clears the assignee.
type TaskPatch struct {
	Title       *string
	Description *string
	DueDate     *time.Time
	Priority    *Priority
	Status      *Status
	AssignedTo  *string
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.DueDate == nil &&
		p.Priority == nil && p.Status == nil && p.AssignedTo == nil
}
