// Package doctor runs runtime readiness diagnostics for config, recognizer, audio, and NATS.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/rbright/hark/internal/audio"
	"github.com/rbright/hark/internal/bus"
	"github.com/rbright/hark/internal/config"
	"github.com/rbright/hark/internal/recognizer"
)

const natsPingTimeout = 2 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// selectDevice is swapped in tests.
var selectDevice = audio.SelectDevice

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded) Report {
	cfg := loaded.Config
	checks := []Check{checkConfig(loaded)}

	checks = append(checks, checkEnv("XDG_RUNTIME_DIR", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "control socket directory available", "XDG_RUNTIME_DIR is empty; hark cannot create its socket"))

	checks = append(checks, checkRecognizerResource(cfg.Recognizer))
	if strings.EqualFold(cfg.Recognizer.Backend, recognizer.BackendExec) {
		checks = append(checks, checkCommand(cfg.Recognizer.Command, "recognizer.command"))
	}

	checks = append(checks, checkAudio(ctx, cfg.Audio))

	if cfg.Bus.Enable {
		checks = append(checks, checkNATS(cfg.Bus.URL))
	}

	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	message := fmt.Sprintf("loaded %q", loaded.Path)
	if !loaded.Exists {
		message = fmt.Sprintf("using defaults (%q not found)", loaded.Path)
	}
	if n := len(loaded.Warnings); n > 0 {
		parts := make([]string, 0, n)
		for _, w := range loaded.Warnings {
			parts = append(parts, w.Message)
		}
		message += "; warnings: " + strings.Join(parts, "; ")
	}
	return Check{Name: "config", Pass: true, Message: message}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkRecognizerResource verifies the backend's model or credentials exist
// without loading them.
func checkRecognizerResource(cfg config.RecognizerConfig) Check {
	const name = "recognizer.resource"

	switch strings.ToLower(cfg.Backend) {
	case recognizer.BackendWhisper:
		if !recognizer.WhisperAvailable {
			return Check{Name: name, Pass: false, Message: "binary built without the whisper tag"}
		}
		return checkModel(name, cfg.ModelPath, true)
	case recognizer.BackendExec:
		return checkModel(name, cfg.ModelPath, false)
	case recognizer.BackendYandex:
		switch {
		case cfg.Yandex.APIKey != "":
			return Check{Name: name, Pass: true, Message: "yandex api key configured"}
		case cfg.Yandex.IAMToken != "":
			return Check{Name: name, Pass: true, Message: fmt.Sprintf("yandex iam token configured for folder %q", cfg.Yandex.FolderID)}
		default:
			return Check{Name: name, Pass: false, Message: recognizer.ErrCredentialsMissing.Error()}
		}
	case recognizer.BackendMock:
		return Check{Name: name, Pass: true, Message: "mock backend needs no resources"}
	default:
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("%v: %q", recognizer.ErrUnknownBackend, cfg.Backend)}
	}
}

func checkModel(name, path string, required bool) Check {
	if strings.TrimSpace(path) == "" {
		if required {
			return Check{Name: name, Pass: false, Message: "model_path is empty"}
		}
		return Check{Name: name, Pass: true, Message: "no model configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("%v: %s", recognizer.ErrModelNotFound, path)}
	}
	if info.IsDir() {
		return Check{Name: name, Pass: true, Message: fmt.Sprintf("model directory %s", path)}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("model %s (%d bytes)", path, info.Size())}
}

// checkCommand validates that a shell-style command names a runnable binary.
func checkCommand(raw string, name string) Check {
	argv, err := shellwords.Parse(raw)
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("invalid command: %v", err)}
	}
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkAudio runs live device selection for pulse, or reports whether the
// PortAudio backend was compiled in.
func checkAudio(ctx context.Context, cfg config.AudioConfig) Check {
	const name = "audio.device"

	if strings.EqualFold(cfg.Backend, "portaudio") {
		if !audio.PortAudioAvailable {
			return Check{Name: name, Pass: false, Message: "binary built without the portaudio tag"}
		}
		return Check{Name: name, Pass: true, Message: fmt.Sprintf("portaudio device %q", cfg.Input)}
	}

	selection, err := selectDevice(ctx, cfg.Input, cfg.Fallback)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: name, Pass: true, Message: message}
}

func checkNATS(url string) Check {
	if err := bus.Ping(url, natsPingTimeout); err != nil {
		return Check{Name: "bus.nats", Pass: false, Message: err.Error()}
	}
	return Check{Name: "bus.nats", Pass: true, Message: fmt.Sprintf("reachable at %s", url)}
}
