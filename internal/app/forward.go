package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rbright/hark/internal/cli"
	"github.com/rbright/hark/internal/config"
	"github.com/rbright/hark/internal/grpchealth"
	"github.com/rbright/hark/internal/ipc"
)

const (
	forwardTimeout = 220 * time.Millisecond
	healthTimeout  = 2 * time.Second
)

var errNoDaemon = errors.New("no active hark daemon")

func ipcRequest(parsed cli.Parsed) ipc.Request {
	return ipc.Request{Command: string(parsed.Command), Text: parsed.Text}
}

func (r Runner) commandStatus(ctx context.Context, cfg config.Config) int {
	socketPath, err := ipc.ResolveSocketPath(cfg.Server.SocketPath)
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: ipc.CommandStatus})
	if !handled {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	switch {
	case resp.Message != "":
		fmt.Fprintln(r.Stdout, resp.Message)
	case resp.State != "":
		fmt.Fprintln(r.Stdout, resp.State)
	default:
		fmt.Fprintln(r.Stdout, "idle")
	}
	return 0
}

// commandHealth asks the gRPC health service when one is configured and
// falls back to the IPC health command otherwise.
func (r Runner) commandHealth(ctx context.Context, cfg config.Config) int {
	if cfg.Server.GRPCAddr == "" {
		resp, code := r.forward(ctx, cfg, ipc.Request{Command: ipc.CommandHealth})
		if code != 0 {
			return code
		}
		fmt.Fprintln(r.Stdout, resp.Health)
		if resp.Health != "OK" {
			return 1
		}
		return 0
	}

	resp, err := grpchealth.Check(ctx, cfg.Server.GRPCAddr, healthTimeout)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	rendered, err := grpchealth.Render(resp)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintln(r.Stdout, rendered)
	if !grpchealth.Serving(resp) {
		return 1
	}
	return 0
}

func (r Runner) commandDrain(ctx context.Context, cfg config.Config) int {
	resp, code := r.forward(ctx, cfg, ipc.Request{Command: ipc.CommandDrain})
	if code != 0 {
		return code
	}
	if resp.Text != "" {
		fmt.Fprintln(r.Stdout, resp.Text)
	}
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, cfg config.Config, req ipc.Request) int {
	resp, code := r.forward(ctx, cfg, req)
	if code != 0 {
		return code
	}
	if resp.Status != "" {
		fmt.Fprintln(r.Stdout, resp.Status)
	}
	return 0
}

func (r Runner) forward(ctx context.Context, cfg config.Config, req ipc.Request) (ipc.Response, int) {
	socketPath, err := ipc.ResolveSocketPath(cfg.Server.SocketPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return ipc.Response{}, 1
	}

	resp, handled, err := tryForward(ctx, socketPath, req)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: %v\n", errNoDaemon)
		return ipc.Response{}, 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return ipc.Response{}, 1
	}
	return resp, 0
}

// tryForward reports handled=false when nothing is serving the socket.
func tryForward(ctx context.Context, socketPath string, req ipc.Request) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, req, forwardTimeout)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if ipc.IsUnavailable(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", req.Command, err)
}
