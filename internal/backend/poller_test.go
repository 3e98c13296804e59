package backend

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedSource struct {
	n       atomic.Int32
	answers []TaskStatus
	errs    []error
}

func (s *scriptedSource) TaskStatus(_ context.Context, _ string) (TaskStatus, error) {
	i := int(s.n.Add(1)) - 1
	if i >= len(s.answers) {
		i = len(s.answers) - 1
	}
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return s.answers[i], err
}

func TestPollerStopsOnTerminalStatus(t *testing.T) {
	src := &scriptedSource{answers: []TaskStatus{
		{TaskID: "t1", Status: StatePending},
		{TaskID: "t1", Status: StateProcessing},
		{TaskID: "t1", Status: StateCompleted, QuoteID: "q-7"},
	}}
	p := NewPoller(slog.Default(), src, 5*time.Millisecond)

	done := make(chan TaskStatus, 1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	p.Watch(ctx, "t1", func(st TaskStatus) { done <- st })

	select {
	case st := <-done:
		assert.Equal(t, StateCompleted, st.Status)
		assert.Equal(t, "q-7", st.QuoteID)
	default:
		t.Fatal("terminal status was not delivered")
	}
	// После терминального статуса опросы прекращаются.
	calls := src.n.Load()
	time.Sleep(25 * time.Millisecond)
	assert.Equal(t, calls, src.n.Load())
}

func TestPollerDeliversTaskFailure(t *testing.T) {
	src := &scriptedSource{answers: []TaskStatus{
		{TaskID: "t2", Status: StateFailed, Error: "pricing failed"},
	}}
	p := NewPoller(slog.Default(), src, 5*time.Millisecond)

	var got TaskStatus
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p.Watch(ctx, "t2", func(st TaskStatus) { got = st })

	require.Equal(t, StateFailed, got.Status)
	assert.Equal(t, "pricing failed", got.Error)
}

func TestPollerStopsOnContextCancel(t *testing.T) {
	src := &scriptedSource{answers: []TaskStatus{
		{TaskID: "t3", Status: StateProcessing},
	}}
	p := NewPoller(slog.Default(), src, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		p.Watch(ctx, "t3", func(TaskStatus) { t.Error("unexpected terminal callback") })
		close(stopped)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop on cancel")
	}
}

func TestPollerKeepsGoingOnTransientErrors(t *testing.T) {
	src := &scriptedSource{
		answers: []TaskStatus{
			{},
			{TaskID: "t4", Status: StateCompleted, QuoteID: "q-1"},
		},
		errs: []error{errors.New("temporary")},
	}
	p := NewPoller(slog.Default(), src, 5*time.Millisecond)

	var got TaskStatus
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p.Watch(ctx, "t4", func(st TaskStatus) { got = st })

	assert.Equal(t, StateCompleted, got.Status)
	assert.GreaterOrEqual(t, src.n.Load(), int32(2))
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StatePending.Terminal())
	assert.False(t, StateProcessing.Terminal())
}
