package sync_test

import (
	"context"
	"errors"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskflow/internal/api"
	"github.com/nhle/taskflow/internal/model"
	appsync "github.com/nhle/taskflow/internal/sync"
)

type fakeRepo struct {
	mu    gosync.Mutex
	tasks []model.Task
	next  []model.Task
	err   error
	calls atomic.Int32
	block chan struct{}
}

func (r *fakeRepo) Tasks() []model.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Task(nil), r.tasks...)
}

func (r *fakeRepo) Refresh(ctx context.Context) ([]model.Task, error) {
	r.calls.Add(1)
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.tasks = append([]model.Task(nil), r.next...)
	return append([]model.Task(nil), r.tasks...), nil
}

func (r *fakeRepo) set(next []model.Task, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next = next
	r.err = err
}

func next(t *testing.T, s *appsync.Syncer) appsync.ResultMsg {
	t.Helper()
	select {
	case msg := <-s.Results():
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for refresh result")
		return appsync.ResultMsg{}
	}
}

func TestSyncer_InitialRefresh(t *testing.T) {
	repo := &fakeRepo{next: []model.Task{{ID: "t1", Title: "Write report"}}}
	s := appsync.New(repo, 0)
	t.Cleanup(s.Stop)

	cmd := s.Start()
	require.NotNil(t, cmd)

	msg, ok := cmd().(appsync.ResultMsg)
	require.True(t, ok)
	assert.NoError(t, msg.Err)
	assert.Equal(t, appsync.ReasonInitial, msg.Trigger)
	require.Len(t, msg.Tasks, 1)
	assert.Equal(t, "t1", msg.Tasks[0].ID)
	assert.Zero(t, msg.NewTaskCount)

	status := s.Status()
	assert.Equal(t, appsync.SyncIdle, status.State)
	assert.False(t, status.LastSync.IsZero())
}

func TestSyncer_StartTwiceIsNoop(t *testing.T) {
	repo := &fakeRepo{}
	s := appsync.New(repo, 0)
	t.Cleanup(s.Stop)

	require.NotNil(t, s.Start())
	assert.Nil(t, s.Start())

	next(t, s)
	assert.Equal(t, int32(1), repo.calls.Load())
}

func TestSyncer_TriggerCountsNewTasks(t *testing.T) {
	repo := &fakeRepo{next: []model.Task{{ID: "t1"}}}
	s := appsync.New(repo, 0)
	t.Cleanup(s.Stop)
	s.Start()
	next(t, s)

	repo.set([]model.Task{{ID: "t2"}, {ID: "t1"}}, nil)
	s.Trigger(appsync.ReasonEvent)

	msg := next(t, s)
	assert.Equal(t, appsync.ReasonEvent, msg.Trigger)
	assert.Equal(t, 1, msg.NewTaskCount)
	assert.Len(t, msg.Tasks, 2)
}

func TestSyncer_TriggersCoalesce(t *testing.T) {
	repo := &fakeRepo{block: make(chan struct{})}
	s := appsync.New(repo, 0)
	t.Cleanup(s.Stop)
	s.Start()

	// The initial refresh is parked; a burst of triggers collapses into one.
	require.Eventually(t, func() bool { return repo.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	for range 5 {
		s.Trigger(appsync.ReasonEvent)
	}
	close(repo.block)

	next(t, s)
	next(t, s)
	select {
	case msg := <-s.Results():
		t.Fatalf("unexpected extra refresh: %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, int32(2), repo.calls.Load())
}

func TestSyncer_ErrorKeepsRunning(t *testing.T) {
	repo := &fakeRepo{}
	repo.set(nil, &api.AuthError{Message: "session expired"})
	s := appsync.New(repo, 0)
	t.Cleanup(s.Stop)
	s.Start()

	msg := next(t, s)
	require.Error(t, msg.Err)
	assert.True(t, msg.AuthExpired)
	assert.Equal(t, appsync.SyncError, s.Status().State)

	repo.set(nil, errors.New("boom"))
	s.Trigger(appsync.ReasonManual)
	msg = next(t, s)
	assert.False(t, msg.AuthExpired)

	repo.set([]model.Task{{ID: "t1"}}, nil)
	s.Trigger(appsync.ReasonManual)
	msg = next(t, s)
	assert.NoError(t, msg.Err)
	assert.Equal(t, appsync.SyncIdle, s.Status().State)
}

func TestSyncer_Polls(t *testing.T) {
	repo := &fakeRepo{}
	s := appsync.New(repo, 20*time.Millisecond)
	t.Cleanup(s.Stop)
	s.Start()

	next(t, s)
	msg := next(t, s)
	assert.Equal(t, appsync.ReasonPoll, msg.Trigger)
}

func TestSyncer_StopIsIdempotent(t *testing.T) {
	repo := &fakeRepo{block: make(chan struct{})}
	s := appsync.New(repo, 0)
	s.Start()
	require.Eventually(t, func() bool { return repo.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	// Stop cancels the in-flight refresh rather than waiting on it.
	s.Stop()
	s.Stop()

	assert.Nil(t, s.WaitForResult()())
	assert.Nil(t, s.Start())
}

func TestSyncer_StopBeforeStart(t *testing.T) {
	s := appsync.New(&fakeRepo{}, 0)
	s.Stop()
	assert.Nil(t, s.Start())
}

func TestSyncState_String(t *testing.T) {
	assert.Equal(t, "idle", appsync.SyncIdle.String())
	assert.Equal(t, "syncing", appsync.SyncRunning.String())
	assert.Equal(t, "error", appsync.SyncError.String())
	assert.Equal(t, "event", appsync.ReasonEvent.String())
}
