package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nhle/taskflow/internal/model"
)

// ErrMalformedPayload marks a task:assigned payload that fails validation.
var ErrMalformedPayload = errors.New("malformed task:assigned payload")

// decodeAssigned validates a task:assigned payload. Only a non-object
// payload is rejected. A message that is not a string is kept as its raw
// JSON text, a missing or malformed task is treated as absent, and a
// missing timestamp falls back to receivedAt.
func decodeAssigned(raw json.RawMessage, receivedAt time.Time) (model.NotificationEvent, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return model.NotificationEvent{}, fmt.Errorf("%w: not an object", ErrMalformedPayload)
	}

	ev := model.NotificationEvent{
		Timestamp:  receivedAt,
		ReceivedAt: receivedAt,
	}

	if msg, ok := fields["message"]; ok && !isNull(msg) {
		if err := json.Unmarshal(msg, &ev.Message); err != nil {
			ev.Message = string(bytes.TrimSpace(msg))
			log.Printf("events: task:assigned message is not a string: %s", ev.Message)
		}
	}

	if task, ok := fields["task"]; ok {
		ev.Task = decodeSnapshot(task)
	}

	if ts, ok := fields["timestamp"]; ok {
		if t, ok := decodeTimestamp(ts); ok {
			ev.Timestamp = t
		}
	}

	return ev, nil
}

// decodeSnapshot reads the embedded task, keeping only string fields.
func decodeSnapshot(raw json.RawMessage) *model.TaskSnapshot {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil
	}

	var snap model.TaskSnapshot
	_ = json.Unmarshal(fields["_id"], &snap.ID)
	_ = json.Unmarshal(fields["title"], &snap.Title)
	_ = json.Unmarshal(fields["description"], &snap.Description)
	return &snap
}

// decodeTimestamp accepts an RFC 3339 string or epoch milliseconds.
func decodeTimestamp(raw json.RawMessage) (time.Time, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		t, err := time.Parse(time.RFC3339Nano, s)
		return t, err == nil
	}

	var ms float64
	if err := json.Unmarshal(raw, &ms); err == nil && ms > 0 {
		return time.UnixMilli(int64(ms)), true
	}
	return time.Time{}, false
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
