// Package bus publishes recognized utterances to NATS.
package bus

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

const connectTimeout = 2 * time.Second

// Transcript is the payload published for each utterance.
type Transcript struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// Config selects the NATS server and subject.
type Config struct {
	URL     string
	Subject string
	Source  string
}

// Publisher owns one NATS connection.
type Publisher struct {
	conn    *nats.Conn
	subject string
	source  string
	logger  *slog.Logger
	now     func() time.Time
}

// Connect dials NATS. Reconnects are handled by the client library.
func Connect(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("no NATS url configured")
	}
	if strings.TrimSpace(cfg.Subject) == "" {
		return nil, errors.New("no NATS subject configured")
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name("hark"),
		nats.Timeout(connectTimeout),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err.Error())
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	logger.Info("connected to NATS", "url", conn.ConnectedUrl(), "subject", cfg.Subject)
	return &Publisher{
		conn:    conn,
		subject: cfg.Subject,
		source:  cfg.Source,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Publish sends one transcript.
func (p *Publisher) Publish(text string) error {
	data, err := json.Marshal(Transcript{Text: text, Timestamp: p.now().UTC(), Source: p.source})
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	return nil
}

// Callback adapts Publish to a listener callback. Failures are logged.
func (p *Publisher) Callback() func(string) {
	return func(text string) {
		if err := p.Publish(text); err != nil {
			p.logger.Error("transcript publish failed", "error", err.Error())
		}
	}
}

// Healthy reports whether the connection is currently established.
func (p *Publisher) Healthy() bool {
	return p != nil && p.conn != nil && p.conn.Status() == nats.CONNECTED
}

// Close flushes pending publishes and closes the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

// Ping connects, round-trips a flush, and disconnects.
func Ping(url string, timeout time.Duration) error {
	conn, err := nats.Connect(url, nats.Name("hark-doctor"), nats.Timeout(timeout), nats.NoReconnect())
	if err != nil {
		return fmt.Errorf("connect to nats: %w", err)
	}
	defer conn.Close()

	if err := conn.FlushTimeout(timeout); err != nil {
		return fmt.Errorf("flush nats: %w", err)
	}
	return nil
}
