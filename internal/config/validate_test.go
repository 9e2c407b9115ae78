package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	warnings, err := Validate(Default())
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Message, "{model}")
}

func TestValidateRejectsInvalidFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "unknown audio backend", mutate: func(c *Config) { c.Audio.Backend = "alsa" }, wantErr: "audio.backend"},
		{name: "empty audio input", mutate: func(c *Config) { c.Audio.Input = " " }, wantErr: "audio.input"},
		{name: "zero sample rate", mutate: func(c *Config) { c.Capture.SampleRate = 0 }, wantErr: "capture.sample_rate"},
		{name: "zero block size", mutate: func(c *Config) { c.Capture.BlockSize = 0 }, wantErr: "capture.block_size"},
		{name: "zero queue", mutate: func(c *Config) { c.Capture.QueueFrames = 0 }, wantErr: "capture.queue_frames"},
		{name: "negative frame timeout", mutate: func(c *Config) { c.Capture.FrameTimeoutMS = -1 }, wantErr: "capture.frame_timeout_ms"},
		{name: "zero backoff", mutate: func(c *Config) { c.Capture.BackoffMS = 0 }, wantErr: "capture.backoff_ms"},
		{name: "empty language", mutate: func(c *Config) { c.Recognizer.Language = "" }, wantErr: "recognizer.language"},
		{name: "max utterance below silence", mutate: func(c *Config) { c.Recognizer.MaxUtteranceMS = 100 }, wantErr: "max_utterance_ms"},
		{name: "empty exec command", mutate: func(c *Config) { c.Recognizer.Command = "  " }, wantErr: "recognizer.command must not be empty"},
		{name: "unbalanced exec command", mutate: func(c *Config) { c.Recognizer.Command = "whisper 'oops" }, wantErr: "invalid recognizer.command"},
		{name: "whisper without model", mutate: func(c *Config) { c.Recognizer.Backend = "whisper" }, wantErr: "recognizer.model_path"},
		{name: "yandex iam without folder", mutate: func(c *Config) {
			c.Recognizer.Backend = "yandex"
			c.Recognizer.Yandex.IAMToken = "t"
		}, wantErr: "folder_id"},
		{name: "port out of range", mutate: func(c *Config) { c.Server.HTTPPort = 70000 }, wantErr: "server.http_port"},
		{name: "zero health interval", mutate: func(c *Config) { c.Server.HealthIntervalMS = 0 }, wantErr: "health_interval_ms"},
		{name: "bus without subject", mutate: func(c *Config) {
			c.Bus.Enable = true
			c.Bus.Subject = ""
		}, wantErr: "bus.subject"},
		{name: "unknown exporter", mutate: func(c *Config) { c.Telemetry.TraceExporter = "jaeger" }, wantErr: "telemetry.trace_exporter"},
		{name: "otlp without endpoint", mutate: func(c *Config) {
			c.Telemetry.TraceExporter = "otlp"
			c.Telemetry.OTLPEndpoint = ""
		}, wantErr: "otlp_endpoint"},
		{name: "unknown log level", mutate: func(c *Config) { c.Log.Level = "trace" }, wantErr: "log.level"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)

			_, err := Validate(cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidateWarnings(t *testing.T) {
	cfg := Default()
	cfg.Recognizer.ModelPath = "/models/base.bin"
	cfg.Recognizer.Command = "transcribe --model {model}"
	cfg.Capture.FrameTimeoutMS = 0

	warnings, err := Validate(cfg)
	require.NoError(t, err)
	require.Len(t, warnings, 2)
	require.Contains(t, warnings[0].Message, "frame_timeout_ms=0")
	require.Contains(t, warnings[1].Message, "{input}")

	cfg = Default()
	cfg.Recognizer.Backend = "yandex"
	warnings, err = Validate(cfg)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Message, "neither api_key nor iam_token")
}
