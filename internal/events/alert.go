package events

import (
	"io"
	"sync"
)

// Alerter produces a best-effort audible alert for a new notification.
// Errors are logged by the caller and never surfaced.
type Alerter interface {
	Alert() error
}

// BellAlerter rings the terminal bell by writing BEL to W.
type BellAlerter struct {
	mu sync.Mutex
	W  io.Writer
}

// Alert writes a single BEL character.
func (b *BellAlerter) Alert() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := io.WriteString(b.W, "\a")
	return err
}

// NopAlerter is a silent Alerter.
type NopAlerter struct{}

// Alert does nothing.
func (NopAlerter) Alert() error { return nil }
