// Package listener owns the single background execution that drains a
// capture session into the message bridge.
package listener

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"

	"github.com/rbright/hark/internal/observe"
)

// Status is the soft outcome of a start or stop request.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusAlreadyRunning Status = "already_running"
	StatusStopped        Status = "stopped"
)

// Runner produces utterances until ctx ends.
type Runner interface {
	Run(ctx context.Context) iter.Seq[string]
}

// Sink receives every utterance before the callback does.
type Sink interface {
	Push(text string) bool
}

type execution struct {
	id     uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// Controller guarantees at most one running execution.
type Controller struct {
	logger  *slog.Logger
	metrics *observe.Metrics

	mu      sync.Mutex
	current *execution
	last    *execution
	seq     uint64
}

// New returns an idle controller. A nil logger discards logs and nil metrics
// use the global instruments.
func New(logger *slog.Logger, metrics *observe.Metrics) *Controller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Controller{logger: logger, metrics: metrics}
}

// Start spawns one execution ranging over session. Every utterance is
// pushed to sink and then passed to callback when it is non-nil. A second
// Start before Stop is a no-op reporting StatusAlreadyRunning.
func (c *Controller) Start(session Runner, sink Sink, callback func(string)) Status {
	c.mu.Lock()
	if c.current != nil {
		c.mu.Unlock()
		c.logger.Info("listener already running")
		return StatusAlreadyRunning
	}

	prev := c.last
	ctx, cancel := context.WithCancel(context.Background())
	c.seq++
	exec := &execution{id: c.seq, cancel: cancel, done: make(chan struct{})}
	c.current = exec
	c.last = exec
	c.mu.Unlock()

	// A stopped execution may still be finishing its last decode cycle.
	if prev != nil {
		<-prev.done
	}

	go c.loop(ctx, exec, session, sink, callback)
	c.logger.Info("listener started", "execution", exec.id)
	return StatusSuccess
}

// Stop asks the running execution to exit at its next loop boundary. It does
// not wait; stopping an idle controller also reports StatusStopped.
func (c *Controller) Stop() Status {
	c.mu.Lock()
	exec := c.current
	c.current = nil
	c.mu.Unlock()

	if exec != nil {
		exec.cancel()
		c.logger.Info("listener stop requested", "execution", exec.id)
	}
	return StatusStopped
}

// Running reports whether an execution is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// Executions reports how many executions have been started.
func (c *Controller) Executions() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Wait blocks until the most recent execution exits or ctx ends.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	exec := c.last
	c.mu.Unlock()
	if exec == nil {
		return nil
	}

	select {
	case <-exec.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) loop(ctx context.Context, exec *execution, session Runner, sink Sink, callback func(string)) {
	defer close(exec.done)
	defer func() {
		c.mu.Lock()
		if c.current == exec {
			c.current = nil
		}
		c.mu.Unlock()
		exec.cancel()
		c.logger.Info("listener exited", "execution", exec.id)
	}()

	c.metrics.Listening.Add(ctx, 1)
	defer c.metrics.Listening.Add(context.Background(), -1)

	for text := range session.Run(ctx) {
		if ctx.Err() != nil {
			return
		}
		if sink.Push(text) {
			c.metrics.Utterances.Add(ctx, 1)
			c.metrics.BridgePushes.Add(ctx, 1)
		}
		c.invoke(callback, text)
	}
}

// invoke runs the callback; a panic is logged and does not stop the loop.
func (c *Controller) invoke(callback func(string), text string) {
	if callback == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("listener callback panicked", "panic", fmt.Sprint(r))
		}
	}()
	callback(text)
}
