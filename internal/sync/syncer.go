// Package sync coordinates background refreshes of the task cache: once on
// start, on every trigger from the event stream, and on a fallback poll.
package sync

import (
	"context"
	"log"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskflow/internal/api"
	"github.com/nhle/taskflow/internal/model"
)

// SyncState represents the current state of the refresh loop.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncRunning:
		return "syncing"
	case SyncError:
		return "error"
	default:
		return "idle"
	}
}

// Reason says what caused a refresh.
type Reason int

const (
	ReasonInitial Reason = iota
	ReasonPoll
	ReasonEvent
	ReasonManual
)

func (r Reason) String() string {
	switch r {
	case ReasonInitial:
		return "initial"
	case ReasonPoll:
		return "poll"
	case ReasonEvent:
		return "event"
	default:
		return "manual"
	}
}

// SyncStatus holds the state of the most recent refresh.
type SyncStatus struct {
	State    SyncState
	LastSync time.Time
	Error    error
}

// ResultMsg is a tea.Msg sent when a refresh completes.
type ResultMsg struct {
	Tasks   []model.Task
	Trigger Reason
	Err     error

	// AuthExpired is set when the backend rejected the session.
	AuthExpired bool

	// NewTaskCount counts ids that were not cached before the refresh.
	NewTaskCount int
}

// Refresher is the task cache being kept fresh.
type Refresher interface {
	Tasks() []model.Task
	Refresh(ctx context.Context) ([]model.Task, error)
}

// fetchTimeout is the maximum time allowed for a single refresh.
const fetchTimeout = 30 * time.Second

// Syncer owns one goroutine that serializes refreshes.
type Syncer struct {
	repo     Refresher
	interval time.Duration

	resultCh  chan ResultMsg
	triggerCh chan Reason
	stopCh    chan struct{}
	doneCh    chan struct{}

	mu      gosync.Mutex
	status  SyncStatus
	running bool
	stopped bool
}

// New creates a syncer. interval is the fallback poll period; 0 disables
// polling.
func New(repo Refresher, interval time.Duration) *Syncer {
	return &Syncer{
		repo:      repo,
		interval:  interval,
		resultCh:  make(chan ResultMsg, 16),
		triggerCh: make(chan Reason, 1),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start launches the refresh loop and returns a tea.Cmd delivering the
// first ResultMsg. Later calls are no-ops returning nil.
func (s *Syncer) Start() tea.Cmd {
	s.mu.Lock()
	if s.running || s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	go s.loop()
	return s.WaitForResult()
}

// Stop halts the loop and waits for an in-flight refresh to finish.
// It is safe to call more than once.
func (s *Syncer) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	wasRunning := s.running
	close(s.stopCh)
	s.mu.Unlock()

	if wasRunning {
		<-s.doneCh
	}
}

// Trigger requests a refresh without blocking. Bursts coalesce into one
// pending refresh.
func (s *Syncer) Trigger(reason Reason) {
	select {
	case s.triggerCh <- reason:
	default:
	}
}

// Results exposes the result channel for callers outside Bubble Tea.
func (s *Syncer) Results() <-chan ResultMsg {
	return s.resultCh
}

// Status returns the state of the most recent refresh.
func (s *Syncer) Status() SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// WaitForResult returns a tea.Cmd that waits for the next refresh result.
// Call it again after handling each ResultMsg to keep listening.
func (s *Syncer) WaitForResult() tea.Cmd {
	return func() tea.Msg {
		select {
		case result := <-s.resultCh:
			return result
		case <-s.stopCh:
			return nil
		}
	}
}

func (s *Syncer) loop() {
	defer close(s.doneCh)

	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	s.refresh(ReasonInitial)

	for {
		select {
		case <-s.stopCh:
			return
		case <-tick:
			s.refresh(ReasonPoll)
		case reason := <-s.triggerCh:
			s.refresh(reason)
		}
	}
}

// refresh performs one refresh and publishes the result.
func (s *Syncer) refresh(reason Reason) {
	s.setStatus(SyncRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	before := make(map[string]bool)
	for _, t := range s.repo.Tasks() {
		before[t.ID] = true
	}

	tasks, err := s.repo.Refresh(ctx)
	if s.isStopped() {
		return
	}
	if err != nil {
		log.Printf("sync: %s refresh failed: %v", reason, err)
		s.setStatus(SyncError, err)
		s.sendResult(ResultMsg{
			Trigger:     reason,
			Err:         err,
			AuthExpired: api.IsAuthError(err),
		})
		return
	}

	// Everything is new on the first load.
	newCount := 0
	if len(before) > 0 {
		for _, t := range tasks {
			if !before[t.ID] {
				newCount++
			}
		}
	}

	s.setStatus(SyncIdle, nil)
	s.sendResult(ResultMsg{
		Tasks:        tasks,
		Trigger:      reason,
		NewTaskCount: newCount,
	})
}

func (s *Syncer) isStopped() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

func (s *Syncer) setStatus(state SyncState, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.State = state
	s.status.Error = err
	if state == SyncIdle {
		s.status.LastSync = time.Now()
	}
}

// sendResult publishes msg without blocking; results are dropped when
// nobody is reading.
func (s *Syncer) sendResult(msg ResultMsg) {
	select {
	case s.resultCh <- msg:
	default:
	}
}
