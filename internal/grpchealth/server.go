// Package grpchealth exposes listener health over the standard
// grpc.health.v1 service and queries it from the CLI.
package grpchealth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Service is the health service name reported for the listener.
const Service = "hark.listener"

// Server publishes a probe's result on a fixed interval.
type Server struct {
	grpc     *grpc.Server
	health   *health.Server
	probe    func() bool
	interval time.Duration
	logger   *slog.Logger
}

// NewServer registers the health service. probe is polled every interval.
func NewServer(probe func() bool, interval time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}

	hs := health.NewServer()
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	s := &Server{grpc: gs, health: hs, probe: probe, interval: interval, logger: logger}
	s.refresh()
	return s
}

// Serve runs until ctx ends, then stops gracefully.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.grpc.Serve(listener) }()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case err := <-errCh:
			if errors.Is(err, grpc.ErrServerStopped) {
				return nil
			}
			return fmt.Errorf("grpc health server: %w", err)
		case <-ticker.C:
			s.refresh()
		case <-ctx.Done():
			s.health.Shutdown()
			s.grpc.GracefulStop()
			<-errCh
			return nil
		}
	}
}

func (s *Server) refresh() {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if s.probe() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(Service, status)
	s.health.SetServingStatus("", status)
}
