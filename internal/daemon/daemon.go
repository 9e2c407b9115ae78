// Package daemon composes the capture session, listener controller and
// message bridge into the surface served over IPC, HTTP and gRPC.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/rbright/hark/internal/bridge"
	"github.com/rbright/hark/internal/capture"
	"github.com/rbright/hark/internal/ipc"
	"github.com/rbright/hark/internal/listener"
	"github.com/rbright/hark/internal/observe"
)

// Session is the capture surface the daemon drives.
type Session interface {
	listener.Runner
	Pause() error
	Resume() error
	Close() error
	Healthcheck() capture.Health
	Status() capture.Status
}

// Status is a point-in-time view of the whole daemon.
type Status struct {
	State         string `json:"state"`
	Health        string `json:"health"`
	Listening     bool   `json:"listening"`
	Executions    uint64 `json:"executions"`
	Pending       int    `json:"pending"`
	Failures      int64  `json:"failures"`
	DroppedFrames int64  `json:"dropped_frames"`
	LastError     string `json:"last_error,omitempty"`
}

// Daemon is safe for concurrent use by every transport.
type Daemon struct {
	session  Session
	listener *listener.Controller
	bridge   *bridge.Bridge
	callback func(string)
	logger   *slog.Logger
	metrics  *observe.Metrics

	closers   []io.Closer
	closeOnce sync.Once
	closeErr  error
}

// Option configures a Daemon.
type Option func(*Daemon)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Daemon) { d.logger = logger }
}

func WithMetrics(metrics *observe.Metrics) Option {
	return func(d *Daemon) { d.metrics = metrics }
}

// WithCallback receives every utterance after it reaches the bridge.
func WithCallback(callback func(string)) Option {
	return func(d *Daemon) { d.callback = callback }
}

// WithCloser registers a resource released by Close after the session ends.
func WithCloser(c io.Closer) Option {
	return func(d *Daemon) { d.closers = append(d.closers, c) }
}

// New wires session to a fresh controller and bridge.
func New(session Session, opts ...Option) *Daemon {
	d := &Daemon{session: session, bridge: bridge.New()}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if d.metrics == nil {
		d.metrics = observe.DefaultMetrics()
	}
	d.listener = listener.New(d.logger, d.metrics)
	return d
}

// StartListening starts the background execution.
func (d *Daemon) StartListening() listener.Status {
	return d.listener.Start(d.session, d.bridge, d.callback)
}

// StopListening cancels the background execution without waiting for it.
func (d *Daemon) StopListening() listener.Status {
	return d.listener.Stop()
}

func (d *Daemon) Pause() error {
	return d.session.Pause()
}

func (d *Daemon) Resume() error {
	return d.session.Resume()
}

// Health is true only when capture is healthy and an execution is running.
func (d *Daemon) Health() bool {
	return d.session.Healthcheck() == capture.HealthOK && d.listener.Running()
}

// Push queues text as if it had been recognized.
func (d *Daemon) Push(text string) bool {
	if !d.bridge.Push(text) {
		return false
	}
	d.metrics.BridgePushes.Add(context.Background(), 1)
	return true
}

// DrainAll returns and clears every queued utterance joined by spaces.
func (d *Daemon) DrainAll() string {
	text := d.bridge.DrainAll()
	d.metrics.BridgeDrains.Add(context.Background(), 1)
	return text
}

func (d *Daemon) Status() Status {
	st := d.session.Status()
	return Status{
		State:         string(st.State),
		Health:        string(st.Health),
		Listening:     d.listener.Running(),
		Executions:    d.listener.Executions(),
		Pending:       d.bridge.Len(),
		Failures:      st.Failures,
		DroppedFrames: st.DroppedFrames,
		LastError:     st.LastError,
	}
}

// Close stops listening, closes the session and waits for the execution to
// exit before releasing registered resources. It is idempotent.
func (d *Daemon) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		d.listener.Stop()
		errs := []error{d.session.Close()}
		if err := d.listener.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("wait for listener: %w", err))
		}
		for i := len(d.closers) - 1; i >= 0; i-- {
			errs = append(errs, d.closers[i].Close())
		}
		d.closeErr = errors.Join(errs...)
		d.logger.Info("daemon closed")
	})
	return d.closeErr
}

// Handle serves one IPC request.
func (d *Daemon) Handle(_ context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		st := d.Status()
		return ipc.Response{OK: true, State: st.State, Health: st.Health, Message: formatStatus(st)}
	case ipc.CommandStart:
		return d.respond(string(d.StartListening()), nil)
	case ipc.CommandStop:
		return d.respond(string(d.StopListening()), nil)
	case ipc.CommandPause:
		return d.respond("paused", d.Pause())
	case ipc.CommandResume:
		return d.respond("resumed", d.Resume())
	case ipc.CommandHealth:
		resp := d.respond("", nil)
		resp.Health = healthText(d.Health())
		return resp
	case ipc.CommandDrain:
		resp := d.respond("", nil)
		resp.Text = d.DrainAll()
		return resp
	case ipc.CommandPush:
		// Blank text is accepted and dropped.
		d.Push(req.Text)
		return d.respond("received", nil)
	default:
		return ipc.Response{OK: false, State: d.state(), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

func (d *Daemon) respond(status string, err error) ipc.Response {
	if err != nil {
		return ipc.Response{OK: false, State: d.state(), Error: err.Error()}
	}
	return ipc.Response{OK: true, State: d.state(), Status: status}
}

func (d *Daemon) state() string {
	return string(d.session.Status().State)
}

func healthText(ok bool) string {
	if ok {
		return "OK"
	}
	return "NOT OK"
}

func formatStatus(st Status) string {
	msg := fmt.Sprintf("state=%s health=%s listening=%t pending=%d failures=%d dropped=%d",
		st.State, st.Health, st.Listening, st.Pending, st.Failures, st.DroppedFrames)
	if st.LastError != "" {
		msg += " last_error=" + st.LastError
	}
	return msg
}
