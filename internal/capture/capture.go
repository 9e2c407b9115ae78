// Package capture runs the restartable microphone decode loop.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbright/hark/internal/audio"
	"github.com/rbright/hark/internal/fsm"
	"github.com/rbright/hark/internal/observe"
	"github.com/rbright/hark/internal/recognizer"
)

// Health is the externally visible failure signal of a Session.
type Health string

const (
	HealthOK       Health = "OK"
	HealthDegraded Health = "Degraded"
)

// ErrFrameTimeout reports a device that produced no frame within Config.FrameTimeout.
var ErrFrameTimeout = errors.New("audio frame timeout")

// errStaleStream marks a stream opened across a pause or close boundary.
var errStaleStream = errors.New("stale capture stream")

// Config controls stream format, buffering and restart policy.
type Config struct {
	SampleRate int
	BlockSize  int
	Device     string

	// QueueFrames bounds buffered frames; the oldest frame is dropped when full.
	QueueFrames int
	// FrameTimeout is the longest wait for one frame before the device is
	// treated as failed. Zero disables the timeout.
	FrameTimeout time.Duration
	// Backoff is the fixed delay before reopening after a failure.
	Backoff time.Duration
}

// DefaultConfig returns the capture defaults.
func DefaultConfig() Config {
	return Config{
		SampleRate:   16000,
		BlockSize:    4000,
		Device:       "default",
		QueueFrames:  64,
		FrameTimeout: 5 * time.Second,
		Backoff:      time.Second,
	}
}

// Status is a point-in-time view of a Session.
type Status struct {
	State         fsm.State
	Health        Health
	Failures      int64
	DroppedFrames int64
	LastError     string
}

type queuedFrame struct {
	frame audio.Frame
	gen   uint64
}

// Session composes an audio source and a recognizer adapter into one
// continuous decode loop. Control methods may be called from any goroutine;
// Run must have a single consumer at a time.
type Session struct {
	cfg     Config
	source  audio.Source
	adapter recognizer.Adapter
	logger  *slog.Logger
	metrics *observe.Metrics

	mu       sync.Mutex
	state    fsm.State
	health   Health
	changed  chan struct{}
	stream   audio.Stream
	lastErr  error
	failures int64

	// generation advances on every pause, resume, failure and close, and
	// when Run returns. Frames and decode results from an older generation
	// are discarded.
	generation atomic.Uint64
	flushedGen uint64

	queue   chan queuedFrame
	dropped atomic.Int64
	running atomic.Bool
}

// Option configures a Session.
type Option func(*Session)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

func WithMetrics(metrics *observe.Metrics) Option {
	return func(s *Session) { s.metrics = metrics }
}

// New returns an idle session. Zero config fields take their defaults.
func New(cfg Config, source audio.Source, adapter recognizer.Adapter, opts ...Option) *Session {
	defaults := DefaultConfig()
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = defaults.SampleRate
	}
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = defaults.BlockSize
	}
	if cfg.QueueFrames <= 0 {
		cfg.QueueFrames = defaults.QueueFrames
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaults.Backoff
	}

	s := &Session{
		cfg:     cfg,
		source:  source,
		adapter: adapter,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: observe.DefaultMetrics(),
		state:   fsm.StateIdle,
		health:  HealthOK,
		changed: make(chan struct{}),
		queue:   make(chan queuedFrame, cfg.QueueFrames),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state snapshot.
func (s *Session) State() fsm.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Healthcheck returns the current health. It has no side effects.
func (s *Session) Healthcheck() Health {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.health
}

// Status returns state, health and failure counters.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		State:         s.state,
		Health:        s.health,
		Failures:      s.failures,
		DroppedFrames: s.dropped.Load(),
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// Pause stops capturing and releases the device. Pausing a paused session is a no-op.
func (s *Session) Pause() error {
	s.mu.Lock()
	if s.state == fsm.StatePaused {
		s.mu.Unlock()
		return nil
	}
	if err := s.transitionLocked(fsm.EventPause); err != nil {
		s.mu.Unlock()
		return err
	}
	stream := s.detachStreamLocked()
	s.mu.Unlock()

	closeStream(stream)
	s.dropFrames(context.Background(), "pause", s.drainQueue())
	s.logger.Info("capture paused")
	return nil
}

// Resume continues capturing. Frames and partial decode state from before
// the pause are discarded before the next frame is decoded.
func (s *Session) Resume() error {
	s.mu.Lock()
	if s.state == fsm.StateListening {
		s.mu.Unlock()
		return nil
	}
	if err := s.transitionLocked(fsm.EventResume); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.dropFrames(context.Background(), "resume", s.drainQueue())
	s.logger.Info("capture resumed")
	return nil
}

// Close terminates the session. It is idempotent; a running Run ends at its
// next loop boundary.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == fsm.StateClosed {
		s.mu.Unlock()
		return nil
	}
	if err := s.transitionLocked(fsm.EventClose); err != nil {
		s.mu.Unlock()
		return err
	}
	s.health = HealthDegraded
	stream := s.detachStreamLocked()
	s.mu.Unlock()

	closeStream(stream)
	s.dropFrames(context.Background(), "close", s.drainQueue())
	s.logger.Info("capture closed")
	return nil
}

// Run returns the sequence of finalized, trimmed, non-empty utterances.
// Capture and decode failures never end the sequence: they degrade health
// and restart the stream after the fixed backoff. The sequence ends when ctx
// is done, the session is closed, or the consumer stops iterating.
func (s *Session) Run(ctx context.Context) iter.Seq[string] {
	return func(yield func(string) bool) {
		if !s.running.CompareAndSwap(false, true) {
			s.logger.Warn("capture run already active; ignoring second consumer")
			return
		}
		defer s.running.Store(false)

		if !s.enter() {
			return
		}
		defer s.leave()

		for {
			if ctx.Err() != nil {
				return
			}

			state, changed := s.snapshot()
			switch state {
			case fsm.StateClosed:
				return
			case fsm.StatePaused:
				s.releaseStream()
				select {
				case <-ctx.Done():
					return
				case <-changed:
				}
				continue
			case fsm.StateErrored:
				if !s.backoff(ctx, changed) {
					return
				}
				continue
			}

			gen := s.generation.Load()
			if gen != s.flushedGen {
				s.discardPending(ctx, gen)
			}

			stream, err := s.ensureStream(ctx, gen)
			if err != nil {
				if errors.Is(err, errStaleStream) || ctx.Err() != nil {
					continue
				}
				s.fail(ctx, "open", err)
				continue
			}

			var timeout <-chan time.Time
			var timer *time.Timer
			if s.cfg.FrameTimeout > 0 {
				timer = time.NewTimer(s.cfg.FrameTimeout)
				timeout = timer.C
			}

			var (
				item   queuedFrame
				gotOne bool
			)
			select {
			case <-ctx.Done():
			case <-changed:
			case <-stream.Done():
				err := stream.Err()
				if err == nil {
					err = errors.New("audio stream ended")
				}
				s.fail(ctx, "stream", err)
			case <-timeout:
				s.fail(ctx, "timeout", fmt.Errorf("%w after %s", ErrFrameTimeout, s.cfg.FrameTimeout))
			case item = <-s.queue:
				gotOne = true
			}
			if timer != nil {
				timer.Stop()
			}
			if !gotOne {
				continue
			}
			if item.gen != gen {
				s.dropFrames(ctx, "stale", 1)
				continue
			}

			result, err := s.adapter.Accept(ctx, item.frame)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.fail(ctx, "decode", err)
				continue
			}
			if !result.Finalized() {
				continue
			}
			if s.generation.Load() != gen {
				s.logger.Info("discarding utterance decoded across a generation boundary", "chars", len(result.Text))
				continue
			}
			if !yield(strings.TrimSpace(result.Text)) {
				return
			}
		}
	}
}

// enter moves an idle session to listening and reports whether Run may proceed.
func (s *Session) enter() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case fsm.StateClosed:
		return false
	case fsm.StateIdle:
		if err := s.transitionLocked(fsm.EventStart); err != nil {
			s.logger.Error("start capture", "error", err)
			return false
		}
		s.logger.Info("capture listening",
			"device", s.cfg.Device,
			"sample_rate", s.cfg.SampleRate,
			"block_size", s.cfg.BlockSize,
		)
	}
	return true
}

func (s *Session) snapshot() (fsm.State, <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.changed
}

// transitionLocked applies event and wakes waiters. Callers hold s.mu.
func (s *Session) transitionLocked(event fsm.Event) error {
	next, err := fsm.Transition(s.state, event)
	if err != nil {
		return err
	}
	s.state = next
	switch event {
	case fsm.EventPause, fsm.EventResume, fsm.EventClose, fsm.EventFail:
		s.generation.Add(1)
	}
	close(s.changed)
	s.changed = make(chan struct{})
	return nil
}

func (s *Session) ensureStream(ctx context.Context, gen uint64) (audio.Stream, error) {
	s.mu.Lock()
	if s.stream != nil {
		stream := s.stream
		s.mu.Unlock()
		return stream, nil
	}
	s.mu.Unlock()

	stream, err := s.source.Open(ctx, audio.StreamConfig{
		SampleRate: s.cfg.SampleRate,
		BlockSize:  s.cfg.BlockSize,
		Device:     s.cfg.Device,
	}, s.enqueuer(ctx, gen))
	if err != nil {
		return nil, fmt.Errorf("open audio source: %w", err)
	}

	s.mu.Lock()
	if s.state != fsm.StateListening || s.generation.Load() != gen {
		s.mu.Unlock()
		closeStream(stream)
		return nil, errStaleStream
	}
	s.stream = stream
	s.mu.Unlock()
	return stream, nil
}

// enqueuer returns the push callback for a stream opened in generation gen.
func (s *Session) enqueuer(ctx context.Context, gen uint64) func(audio.Frame) {
	return func(frame audio.Frame) {
		if s.generation.Load() != gen {
			s.dropFrames(ctx, "stale", 1)
			return
		}
		item := queuedFrame{frame: frame, gen: gen}
		for {
			select {
			case s.queue <- item:
				return
			default:
			}
			select {
			case <-s.queue:
				s.dropFrames(ctx, "queue_full", 1)
			default:
			}
		}
	}
}

func (s *Session) drainQueue() int {
	n := 0
	for {
		select {
		case <-s.queue:
			n++
		default:
			return n
		}
	}
}

func (s *Session) dropFrames(ctx context.Context, reason string, n int) {
	if n <= 0 {
		return
	}
	s.dropped.Add(int64(n))
	s.metrics.RecordDropped(ctx, reason, n)
}

// discardPending drops buffered frames and flushes partial decode state
// left behind by an earlier generation, such as a paused or failed stream
// or a Run that has since returned.
func (s *Session) discardPending(ctx context.Context, gen uint64) {
	s.flushedGen = gen
	s.dropFrames(ctx, "boundary", s.drainQueue())

	result, err := s.adapter.Flush(ctx)
	if err != nil {
		s.logger.Warn("flush recognizer", "error", err)
		return
	}
	if text := strings.TrimSpace(result.Text); text != "" {
		s.logger.Info("skipped partial utterance from previous generation", "chars", len(text))
	}
}

// fail records a capture or decode failure and schedules a restart.
// Cancellation is not a failure.
func (s *Session) fail(ctx context.Context, stage string, err error) {
	if ctx.Err() != nil {
		return
	}
	s.mu.Lock()
	s.health = HealthDegraded
	s.failures++
	s.lastErr = err
	if s.state == fsm.StateListening {
		if terr := s.transitionLocked(fsm.EventFail); terr != nil {
			s.logger.Error("capture state transition", "error", terr)
		}
	}
	stream := s.detachStreamLocked()
	s.mu.Unlock()

	closeStream(stream)
	s.metrics.RecordFailure(ctx, stage)
	s.logger.Error("capture failed; restarting after backoff",
		"stage", stage,
		"error", err.Error(),
		"backoff_ms", s.cfg.Backoff.Milliseconds(),
	)
}

// backoff waits the fixed restart delay and recovers to listening. It
// returns false when ctx ends first.
func (s *Session) backoff(ctx context.Context, changed <-chan struct{}) bool {
	timer := time.NewTimer(s.cfg.Backoff)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-changed:
		return true
	case <-timer.C:
	}

	s.mu.Lock()
	recovered := false
	if s.state == fsm.StateErrored {
		recovered = s.transitionLocked(fsm.EventRecover) == nil
	}
	s.mu.Unlock()

	if recovered {
		s.metrics.CaptureRestarts.Add(ctx, 1)
		s.logger.Info("capture restarting")
	}
	return true
}

// leave ends a Run. Advancing the generation makes the next Run discard
// frames and recognizer state this one left behind.
func (s *Session) leave() {
	s.generation.Add(1)
	s.releaseStream()
}

func (s *Session) releaseStream() {
	s.mu.Lock()
	stream := s.detachStreamLocked()
	s.mu.Unlock()
	closeStream(stream)
}

func (s *Session) detachStreamLocked() audio.Stream {
	stream := s.stream
	s.stream = nil
	return stream
}

func closeStream(stream audio.Stream) {
	if stream != nil {
		_ = stream.Close()
	}
}
