package model

import "time"

// TaskSnapshot is the partial task embedded in a notification at the time
// it was emitted. It may be stale relative to the cached task.
type TaskSnapshot struct {
	ID          string `json:"_id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// NotificationEvent is a task-assignment notification pushed by the backend.
// It only lives in memory for the lifetime of the inbox.
type NotificationEvent struct {
	// ID is a client-local identifier.
	ID string `json:"id"`

	// Message is the human-readable notification text.
	Message string `json:"message"`

	// Task is nil when the payload carried no task.
	Task *TaskSnapshot `json:"task,omitempty"`

	// Timestamp is the server emission time, or ReceivedAt when the
	// payload had none.
	Timestamp time.Time `json:"timestamp"`

	// ReceivedAt is when the client decoded the event.
	ReceivedAt time.Time `json:"received_at"`
}
