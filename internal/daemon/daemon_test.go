package daemon

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rbright/hark/internal/capture"
	"github.com/rbright/hark/internal/fsm"
	"github.com/rbright/hark/internal/ipc"
	"github.com/rbright/hark/internal/listener"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	utterances chan string
	closed     chan struct{}
	closeOnce  sync.Once

	mu       sync.Mutex
	state    fsm.State
	health   capture.Health
	pauseErr error

	pauses  atomic.Int32
	resumes atomic.Int32
	closes  atomic.Int32
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		utterances: make(chan string, 16),
		closed:     make(chan struct{}),
		state:      fsm.StateIdle,
		health:     capture.HealthOK,
	}
}

func (s *fakeSession) Run(ctx context.Context) iter.Seq[string] {
	return func(yield func(string) bool) {
		s.setState(fsm.StateListening)
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.closed:
				return
			case text := <-s.utterances:
				if !yield(text) {
					return
				}
			}
		}
	}
}

func (s *fakeSession) setState(state fsm.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != fsm.StateClosed {
		s.state = state
	}
}

func (s *fakeSession) Pause() error {
	s.pauses.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pauseErr != nil {
		return s.pauseErr
	}
	s.state = fsm.StatePaused
	return nil
}

func (s *fakeSession) Resume() error {
	s.resumes.Add(1)
	s.setState(fsm.StateListening)
	return nil
}

func (s *fakeSession) Close() error {
	s.closes.Add(1)
	s.closeOnce.Do(func() { close(s.closed) })
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = fsm.StateClosed
	s.health = capture.HealthDegraded
	return nil
}

func (s *fakeSession) Healthcheck() capture.Health {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.health
}

func (s *fakeSession) Status() capture.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return capture.Status{State: s.state, Health: s.health, Failures: 2, DroppedFrames: 5}
}

func TestStartStopStatuses(t *testing.T) {
	session := newFakeSession()
	d := New(session)
	t.Cleanup(func() { _ = d.Close(context.Background()) })

	require.False(t, d.Health())
	require.Equal(t, listener.StatusSuccess, d.StartListening())
	require.Equal(t, listener.StatusAlreadyRunning, d.StartListening())
	require.True(t, d.Health())

	require.Equal(t, listener.StatusStopped, d.StopListening())
	require.False(t, d.Health())
	require.Equal(t, listener.StatusSuccess, d.StartListening())
	require.Equal(t, uint64(2), d.Status().Executions)
}

func TestUtterancesReachBridgeThenCallback(t *testing.T) {
	session := newFakeSession()

	var mu sync.Mutex
	var seen []string
	d := New(session, WithCallback(func(text string) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, text)
	}))
	t.Cleanup(func() { _ = d.Close(context.Background()) })

	require.Equal(t, listener.StatusSuccess, d.StartListening())
	session.utterances <- "turn left"
	session.utterances <- "then right"

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, 2*time.Second, 5*time.Millisecond)

	require.Equal(t, 2, d.Status().Pending)
	require.Equal(t, "turn left then right", d.DrainAll())
	require.Empty(t, d.DrainAll())
}

func TestHealthRequiresHealthySession(t *testing.T) {
	session := newFakeSession()
	d := New(session)
	t.Cleanup(func() { _ = d.Close(context.Background()) })

	d.StartListening()
	require.True(t, d.Health())

	session.mu.Lock()
	session.health = capture.HealthDegraded
	session.mu.Unlock()
	require.False(t, d.Health())
}

func TestHandleCommands(t *testing.T) {
	session := newFakeSession()
	d := New(session)
	t.Cleanup(func() { _ = d.Close(context.Background()) })
	ctx := context.Background()

	resp := d.Handle(ctx, ipc.Request{Command: ipc.CommandStart})
	require.True(t, resp.OK)
	require.Equal(t, "success", resp.Status)

	resp = d.Handle(ctx, ipc.Request{Command: ipc.CommandStart})
	require.True(t, resp.OK)
	require.Equal(t, "already_running", resp.Status)

	resp = d.Handle(ctx, ipc.Request{Command: ipc.CommandHealth})
	require.True(t, resp.OK)
	require.Equal(t, "OK", resp.Health)

	resp = d.Handle(ctx, ipc.Request{Command: ipc.CommandPush, Text: "  hello  "})
	require.True(t, resp.OK)
	require.Equal(t, "received", resp.Status)

	resp = d.Handle(ctx, ipc.Request{Command: ipc.CommandPush, Text: "   "})
	require.True(t, resp.OK)
	require.Equal(t, "received", resp.Status)
	require.Empty(t, resp.Error)

	resp = d.Handle(ctx, ipc.Request{Command: ipc.CommandDrain})
	require.True(t, resp.OK)
	require.Equal(t, "hello", resp.Text)

	resp = d.Handle(ctx, ipc.Request{Command: ipc.CommandPause})
	require.True(t, resp.OK)
	require.Equal(t, "paused", resp.State)

	resp = d.Handle(ctx, ipc.Request{Command: ipc.CommandResume})
	require.True(t, resp.OK)
	require.Equal(t, "listening", resp.State)

	resp = d.Handle(ctx, ipc.Request{Command: ipc.CommandStatus})
	require.True(t, resp.OK)
	require.Equal(t, "OK", resp.Health)
	require.Contains(t, resp.Message, "listening=true")
	require.Contains(t, resp.Message, "failures=2")

	resp = d.Handle(ctx, ipc.Request{Command: ipc.CommandStop})
	require.True(t, resp.OK)
	require.Equal(t, "stopped", resp.Status)

	resp = d.Handle(ctx, ipc.Request{Command: "toggle"})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "unknown command")
}

func TestHandlePauseErrorIsReported(t *testing.T) {
	session := newFakeSession()
	session.pauseErr = errors.New(`invalid transition "idle" --pause-->`)
	d := New(session)

	resp := d.Handle(context.Background(), ipc.Request{Command: ipc.CommandPause})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "invalid transition")
	require.Equal(t, "idle", resp.State)
}

type recordingCloser struct {
	name  string
	order *[]string
}

func (c recordingCloser) Close() error {
	*c.order = append(*c.order, c.name)
	return nil
}

func TestCloseIsIdempotentAndReleasesInReverseOrder(t *testing.T) {
	session := newFakeSession()
	var order []string
	d := New(session,
		WithCloser(recordingCloser{name: "recognizer", order: &order}),
		WithCloser(recordingCloser{name: "bus", order: &order}),
	)
	d.StartListening()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
	require.NoError(t, d.Close(ctx))

	require.Equal(t, []string{"bus", "recognizer"}, order)
	require.Equal(t, int32(1), session.closes.Load())
	require.False(t, d.listener.Running())
	require.Equal(t, "closed", d.Status().State)
	require.True(t, strings.HasPrefix(d.Handle(ctx, ipc.Request{Command: ipc.CommandStatus}).Message, "state=closed"))
}
