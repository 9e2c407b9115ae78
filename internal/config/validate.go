package config

import (
	"fmt"
	"strings"

	"github.com/mattn/go-shellwords"
)

var (
	audioBackends      = []string{"pulse", "portaudio"}
	recognizerBackends = []string{"exec", "whisper", "yandex", "mock"}
	logLevels          = []string{"debug", "info", "warn", "error"}
	traceExporters     = []string{"none", "stdout", "otlp"}
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if err := oneOf("audio.backend", cfg.Audio.Backend, audioBackends); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Audio.Input) == "" {
		return nil, fmt.Errorf("audio.input must not be empty")
	}

	c := cfg.Capture
	if c.SampleRate <= 0 {
		return nil, fmt.Errorf("capture.sample_rate must be > 0")
	}
	if c.BlockSize <= 0 {
		return nil, fmt.Errorf("capture.block_size must be > 0")
	}
	if c.QueueFrames <= 0 {
		return nil, fmt.Errorf("capture.queue_frames must be > 0")
	}
	if c.FrameTimeoutMS < 0 {
		return nil, fmt.Errorf("capture.frame_timeout_ms must be >= 0")
	}
	if c.BackoffMS <= 0 {
		return nil, fmt.Errorf("capture.backoff_ms must be > 0")
	}
	if c.FrameTimeoutMS == 0 {
		warnings = append(warnings, Warning{Message: "capture.frame_timeout_ms=0 disables stalled-device detection"})
	}

	r := cfg.Recognizer
	if err := oneOf("recognizer.backend", r.Backend, recognizerBackends); err != nil {
		return nil, err
	}
	if strings.TrimSpace(r.Language) == "" {
		return nil, fmt.Errorf("recognizer.language must not be empty")
	}
	if r.SilenceMS <= 0 {
		return nil, fmt.Errorf("recognizer.silence_ms must be > 0")
	}
	if r.MaxUtteranceMS < r.SilenceMS {
		return nil, fmt.Errorf("recognizer.max_utterance_ms must be >= recognizer.silence_ms")
	}
	if r.RMSThreshold < 0 {
		return nil, fmt.Errorf("recognizer.rms_threshold must be >= 0")
	}

	switch strings.ToLower(r.Backend) {
	case "exec":
		argv, err := shellwords.Parse(r.Command)
		if err != nil {
			return nil, fmt.Errorf("invalid recognizer.command: %w", err)
		}
		if len(argv) == 0 {
			return nil, fmt.Errorf("recognizer.command must not be empty when recognizer.backend=exec")
		}
		if !strings.Contains(r.Command, "{input}") {
			warnings = append(warnings, Warning{Message: "recognizer.command has no {input} placeholder; the WAV path is appended"})
		}
		if strings.Contains(r.Command, "{model}") && strings.TrimSpace(r.ModelPath) == "" {
			warnings = append(warnings, Warning{Message: "recognizer.command uses {model} but recognizer.model_path is empty"})
		}
	case "whisper":
		if strings.TrimSpace(r.ModelPath) == "" {
			return nil, fmt.Errorf("recognizer.model_path must not be empty when recognizer.backend=whisper")
		}
	case "yandex":
		if strings.TrimSpace(r.Yandex.Endpoint) == "" {
			return nil, fmt.Errorf("recognizer.yandex.endpoint must not be empty")
		}
		if r.Yandex.APIKey == "" && r.Yandex.IAMToken == "" {
			warnings = append(warnings, Warning{Message: "recognizer.yandex has neither api_key nor iam_token; startup will fail"})
		}
		if r.Yandex.IAMToken != "" && r.Yandex.FolderID == "" {
			return nil, fmt.Errorf("recognizer.yandex.folder_id is required with iam_token")
		}
	}

	s := cfg.Server
	if s.HTTPPort < 0 || s.HTTPPort > 65535 {
		return nil, fmt.Errorf("server.http_port must be within 0..65535")
	}
	if s.HTTPPort > 0 && strings.TrimSpace(s.HTTPHost) == "" {
		return nil, fmt.Errorf("server.http_host must not be empty when server.http_port is set")
	}
	if s.HealthIntervalMS <= 0 {
		return nil, fmt.Errorf("server.health_interval_ms must be > 0")
	}

	if cfg.Bus.Enable {
		if strings.TrimSpace(cfg.Bus.URL) == "" {
			return nil, fmt.Errorf("bus.url must not be empty when bus.enable=true")
		}
		if strings.TrimSpace(cfg.Bus.Subject) == "" {
			return nil, fmt.Errorf("bus.subject must not be empty when bus.enable=true")
		}
	}

	if err := oneOf("telemetry.trace_exporter", cfg.Telemetry.TraceExporter, traceExporters); err != nil {
		return nil, err
	}
	if strings.EqualFold(cfg.Telemetry.TraceExporter, "otlp") && strings.TrimSpace(cfg.Telemetry.OTLPEndpoint) == "" {
		return nil, fmt.Errorf("telemetry.otlp_endpoint must not be empty when telemetry.trace_exporter=otlp")
	}

	if err := oneOf("log.level", cfg.Log.Level, logLevels); err != nil {
		return nil, err
	}

	return warnings, nil
}

func oneOf(key, value string, allowed []string) error {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return fmt.Errorf("%s must not be empty", key)
	}
	for _, candidate := range allowed {
		if value == candidate {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of: %s", key, strings.Join(allowed, ", "))
}
