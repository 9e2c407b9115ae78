// Package httpapi serves the listener surface over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rbright/hark/internal/daemon"
	"github.com/rbright/hark/internal/listener"
)

const (
	maxBodyBytes      = 64 << 10
	readHeaderTimeout = 5 * time.Second
	rootMessage       = "hark speech-to-text API"
)

// Core is the daemon surface the HTTP routes call.
type Core interface {
	StartListening() listener.Status
	StopListening() listener.Status
	Pause() error
	Resume() error
	Health() bool
	Push(text string) bool
	DrainAll() string
	Status() daemon.Status
}

// Options configures the HTTP surface.
type Options struct {
	// DocRoot serves / and /static/. Empty disables file serving.
	DocRoot string
	// Metrics serves /metrics when non-nil.
	Metrics  http.Handler
	Checkers []Checker
	Logger   *slog.Logger
}

// Handler builds the route table for core.
func Handler(core Core, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	a := &api{core: core, docRoot: opts.DocRoot, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", a.root)
	if opts.DocRoot != "" {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(opts.DocRoot))))
	}
	mux.HandleFunc("GET /health", a.health)
	mux.HandleFunc("GET /api/stt/latest", a.latest)
	mux.HandleFunc("POST /api/stt/text", a.pushText)
	mux.HandleFunc("POST /api/stt/start", a.start)
	mux.HandleFunc("POST /api/stt/stop", a.stop)
	mux.HandleFunc("POST /api/stt/pause", a.control(core.Pause, "paused"))
	mux.HandleFunc("POST /api/stt/resume", a.control(core.Resume, "resumed"))
	mux.HandleFunc("GET /api/stt/status", a.status)

	NewProbes(opts.Checkers...).Register(mux)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}
	return mux
}

// Serve runs an http.Server on listener until ctx ends, then shuts it down.
func Serve(ctx context.Context, listener net.Listener, handler http.Handler) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(listener) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		<-errCh
		return nil
	}
}

type api struct {
	core    Core
	docRoot string
	logger  *slog.Logger
}

func (a *api) root(w http.ResponseWriter, r *http.Request) {
	if a.docRoot != "" {
		index := filepath.Join(a.docRoot, "index.html")
		if info, err := os.Stat(index); err == nil && !info.IsDir() {
			http.ServeFile(w, r, index)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": rootMessage})
}

func (a *api) health(w http.ResponseWriter, _ *http.Request) {
	service := "NOT OK"
	if a.core.Health() {
		service = "OK"
	}
	writeJSON(w, http.StatusOK, map[string]string{"server_status": "ok", "service": service})
}

func (a *api) latest(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"text": a.core.DrainAll()})
}

type textRequest struct {
	Text *string `json:"text"`
}

func (a *api) pushText(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
		return
	}
	if req.Text == nil {
		writeError(w, http.StatusBadRequest, "missing field: text")
		return
	}

	// Blank text is accepted and dropped.
	text := strings.TrimSpace(*req.Text)
	if a.core.Push(text) {
		a.logger.Debug("text pushed over http", "chars", len(text))
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "received", "text": text})
}

func (a *api) start(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": string(a.core.StartListening())})
}

func (a *api) stop(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": string(a.core.StopListening())})
}

func (a *api) control(fn func() error, status string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if err := fn(); err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": status})
	}
}

func (a *api) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.core.Status())
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
