package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rbright/hark/internal/capture"
	"github.com/rbright/hark/internal/config"
	"github.com/rbright/hark/internal/daemon"
	"github.com/rbright/hark/internal/grpchealth"
	"github.com/rbright/hark/internal/httpapi"
	"github.com/rbright/hark/internal/ipc"
	"github.com/rbright/hark/internal/observe"
	"github.com/rbright/hark/internal/recognizer"
	"github.com/rbright/hark/internal/version"
)

const (
	acquireProbeTimeout = 180 * time.Millisecond
	acquireRetries      = 8
	shutdownTimeout     = 5 * time.Second
)

// commandServe owns the runtime socket and runs every transport until ctx
// ends or one of them fails.
func (r Runner) commandServe(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.ResolveSocketPath(cfg.Server.SocketPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	ipcListener, err := ipc.Acquire(ctx, socketPath, ipc.AcquireOptions{
		ProbeTimeout: acquireProbeTimeout,
		Retries:      acquireRetries,
		Logger:       logger.With("component", "ipc"),
	})
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintf(r.Stderr, "error: hark daemon already running on %s\n", socketPath)
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = ipcListener.Close()
		_ = os.Remove(socketPath)
	}()

	provider, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    version.Name,
		ServiceVersion: version.Version,
		TraceExporter:  cfg.Telemetry.TraceExporter,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   cfg.Telemetry.OTLPInsecure,
	}, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: init telemetry: %v\n", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err.Error())
		}
	}()

	d, err := daemon.Build(ctx, cfg, logger, provider.Metrics)
	if err != nil {
		if recognizer.IsInitFailure(err) {
			logger.Error("recognizer init failed", "error", err.Error())
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := d.Close(closeCtx); err != nil {
			logger.Warn("daemon close failed", "error", err.Error())
		}
	}()

	httpListener, grpcListener, err := bindTransports(cfg.Server)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	if cfg.Capture.Autostart {
		logger.Info("autostart listener", "status", d.StartListening())
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return ipc.Serve(groupCtx, ipcListener, d) })

	if httpListener != nil {
		handler := httpapi.Handler(d, httpapi.Options{
			DocRoot:  cfg.Server.DocRoot,
			Metrics:  provider.Handler,
			Checkers: daemonCheckers(d),
			Logger:   logger.With("component", "http"),
		})
		group.Go(func() error { return httpapi.Serve(groupCtx, httpListener, handler) })
	}

	if grpcListener != nil {
		interval := time.Duration(cfg.Server.HealthIntervalMS) * time.Millisecond
		hs := grpchealth.NewServer(d.Health, interval, logger.With("component", "grpc_health"))
		group.Go(func() error { return hs.Serve(groupCtx, grpcListener) })
	}

	logger.Info("daemon serving",
		"socket", socketPath,
		"http", addrString(httpListener),
		"grpc", addrString(grpcListener),
	)

	if err := group.Wait(); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	logger.Info("daemon stopped")
	return 0
}

// bindTransports binds the optional HTTP and gRPC listeners up front so a
// taken port fails startup rather than a running daemon.
func bindTransports(cfg config.ServerConfig) (net.Listener, net.Listener, error) {
	var httpListener, grpcListener net.Listener
	if cfg.HTTPPort > 0 {
		addr := net.JoinHostPort(cfg.HTTPHost, strconv.Itoa(cfg.HTTPPort))
		l, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, nil, fmt.Errorf("listen http %s: %w", addr, err)
		}
		httpListener = l
	}
	if cfg.GRPCAddr != "" {
		l, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			if httpListener != nil {
				_ = httpListener.Close()
			}
			return nil, nil, fmt.Errorf("listen grpc %s: %w", cfg.GRPCAddr, err)
		}
		grpcListener = l
	}
	return httpListener, grpcListener, nil
}

func daemonCheckers(d *daemon.Daemon) []httpapi.Checker {
	return []httpapi.Checker{
		{Name: "capture", Check: func(context.Context) error {
			if st := d.Status(); st.Health != string(capture.HealthOK) {
				return fmt.Errorf("capture health %s", st.Health)
			}
			return nil
		}},
		{Name: "listener", Check: func(context.Context) error {
			if !d.Status().Listening {
				return errors.New("listener not running")
			}
			return nil
		}},
	}
}

func addrString(l net.Listener) string {
	if l == nil {
		return ""
	}
	return l.Addr().String()
}
