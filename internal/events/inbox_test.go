package events

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/taskflow/internal/model"
)

func TestInbox_NewestFirstAndUnread(t *testing.T) {
	in := NewInbox(10)

	in.Push(model.NotificationEvent{ID: "1"})
	in.Push(model.NotificationEvent{ID: "2"})

	items := in.Items()
	assert.Equal(t, "2", items[0].ID)
	assert.Equal(t, "1", items[1].ID)
	assert.Equal(t, 2, in.Unread())
	assert.Equal(t, "2", in.UnreadBadge())

	in.MarkRead()
	assert.Zero(t, in.Unread())
	assert.Equal(t, "", in.UnreadBadge())
	assert.Len(t, in.Items(), 2)

	in.Clear()
	assert.Empty(t, in.Items())
	assert.Zero(t, in.Len())
}

func TestInbox_EvictsOldest(t *testing.T) {
	in := NewInbox(3)
	for i := 1; i <= 5; i++ {
		in.Push(model.NotificationEvent{ID: fmt.Sprint(i)})
	}

	var ids []string
	for _, ev := range in.Items() {
		ids = append(ids, ev.ID)
	}
	assert.Equal(t, []string{"5", "4", "3"}, ids)
	assert.Equal(t, 5, in.Unread())
	assert.Equal(t, 3, in.Capacity())
}

func TestInbox_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultInboxCapacity, NewInbox(0).Capacity())
}

func TestInbox_BadgeCapsAt99(t *testing.T) {
	in := NewInbox(5)
	for i := 0; i < 100; i++ {
		in.Push(model.NotificationEvent{})
	}
	assert.Equal(t, "99+", in.UnreadBadge())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("no tty") }

func TestBellAlerter(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, (&BellAlerter{W: &buf}).Alert())
	assert.Equal(t, "\a", buf.String())

	assert.Error(t, (&BellAlerter{W: failingWriter{}}).Alert())
	assert.NoError(t, NopAlerter{}.Alert())
}
