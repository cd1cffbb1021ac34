package events

import (
	"strconv"
	"sync"

	"github.com/nhle/taskflow/internal/model"
)

// DefaultInboxCapacity is the number of notifications kept in memory.
const DefaultInboxCapacity = 50

// Inbox is a bounded, newest-first notification list with an unread
// counter. When full, the oldest entry is evicted.
type Inbox struct {
	mu     sync.RWMutex
	buf    []model.NotificationEvent
	next   int // slot for the next push
	size   int
	unread int
}

// NewInbox creates an inbox holding at most capacity events.
func NewInbox(capacity int) *Inbox {
	if capacity <= 0 {
		capacity = DefaultInboxCapacity
	}
	return &Inbox{buf: make([]model.NotificationEvent, capacity)}
}

// Push records ev as the newest notification and counts it as unread.
func (in *Inbox) Push(ev model.NotificationEvent) {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.buf[in.next] = ev
	in.next = (in.next + 1) % len(in.buf)
	if in.size < len(in.buf) {
		in.size++
	}
	in.unread++
}

// Items returns a newest-first snapshot.
func (in *Inbox) Items() []model.NotificationEvent {
	in.mu.RLock()
	defer in.mu.RUnlock()

	out := make([]model.NotificationEvent, 0, in.size)
	for i := 1; i <= in.size; i++ {
		idx := (in.next - i + len(in.buf)) % len(in.buf)
		out = append(out, in.buf[idx])
	}
	return out
}

// Len returns the number of stored notifications.
func (in *Inbox) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.size
}

// Capacity returns the maximum number of stored notifications.
func (in *Inbox) Capacity() int {
	return len(in.buf)
}

// Unread returns the number of notifications received since the last
// MarkRead or Clear.
func (in *Inbox) Unread() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.unread
}

// MarkRead resets the unread counter and keeps the list.
func (in *Inbox) MarkRead() {
	in.mu.Lock()
	in.unread = 0
	in.mu.Unlock()
}

// Clear empties the list and resets the unread counter.
func (in *Inbox) Clear() {
	in.mu.Lock()
	defer in.mu.Unlock()

	for i := range in.buf {
		in.buf[i] = model.NotificationEvent{}
	}
	in.next, in.size, in.unread = 0, 0, 0
}

// UnreadBadge renders the unread counter for a badge: "" when zero and
// "99+" above 99.
func (in *Inbox) UnreadBadge() string {
	n := in.Unread()
	switch {
	case n == 0:
		return ""
	case n > 99:
		return "99+"
	default:
		return strconv.Itoa(n)
	}
}
