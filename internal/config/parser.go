package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the on-disk layout. Every field is optional so a file
// only overrides the keys it names.
type fileConfig struct {
	Audio      *fileAudio      `json:"audio" yaml:"audio"`
	Capture    *fileCapture    `json:"capture" yaml:"capture"`
	Recognizer *fileRecognizer `json:"recognizer" yaml:"recognizer"`
	Server     *fileServer     `json:"server" yaml:"server"`
	Bus        *fileBus        `json:"bus" yaml:"bus"`
	Telemetry  *fileTelemetry  `json:"telemetry" yaml:"telemetry"`
	Log        *fileLog        `json:"log" yaml:"log"`
}

type fileAudio struct {
	Backend  *string `json:"backend" yaml:"backend"`
	Input    *string `json:"input" yaml:"input"`
	Fallback *string `json:"fallback" yaml:"fallback"`
}

type fileCapture struct {
	SampleRate     *int  `json:"sample_rate" yaml:"sample_rate"`
	BlockSize      *int  `json:"block_size" yaml:"block_size"`
	QueueFrames    *int  `json:"queue_frames" yaml:"queue_frames"`
	FrameTimeoutMS *int  `json:"frame_timeout_ms" yaml:"frame_timeout_ms"`
	BackoffMS      *int  `json:"backoff_ms" yaml:"backoff_ms"`
	Autostart      *bool `json:"autostart" yaml:"autostart"`
}

type fileRecognizer struct {
	Backend        *string     `json:"backend" yaml:"backend"`
	Language       *string     `json:"language" yaml:"language"`
	ModelPath      *string     `json:"model_path" yaml:"model_path"`
	Command        *string     `json:"command" yaml:"command"`
	SilenceMS      *int        `json:"silence_ms" yaml:"silence_ms"`
	MaxUtteranceMS *int        `json:"max_utterance_ms" yaml:"max_utterance_ms"`
	RMSThreshold   *float64    `json:"rms_threshold" yaml:"rms_threshold"`
	Capitalize     *bool       `json:"capitalize" yaml:"capitalize"`
	Yandex         *fileYandex `json:"yandex" yaml:"yandex"`
}

type fileYandex struct {
	Endpoint *string `json:"endpoint" yaml:"endpoint"`
	APIKey   *string `json:"api_key" yaml:"api_key"`
	IAMToken *string `json:"iam_token" yaml:"iam_token"`
	FolderID *string `json:"folder_id" yaml:"folder_id"`
}

type fileServer struct {
	SocketPath       *string `json:"socket_path" yaml:"socket_path"`
	HTTPHost         *string `json:"http_host" yaml:"http_host"`
	HTTPPort         *int    `json:"http_port" yaml:"http_port"`
	DocRoot          *string `json:"doc_root" yaml:"doc_root"`
	GRPCAddr         *string `json:"grpc_addr" yaml:"grpc_addr"`
	HealthIntervalMS *int    `json:"health_interval_ms" yaml:"health_interval_ms"`
}

type fileBus struct {
	Enable  *bool   `json:"enable" yaml:"enable"`
	URL     *string `json:"url" yaml:"url"`
	Subject *string `json:"subject" yaml:"subject"`
	Source  *string `json:"source" yaml:"source"`
}

type fileTelemetry struct {
	TraceExporter *string `json:"trace_exporter" yaml:"trace_exporter"`
	OTLPEndpoint  *string `json:"otlp_endpoint" yaml:"otlp_endpoint"`
	OTLPInsecure  *bool   `json:"otlp_insecure" yaml:"otlp_insecure"`
}

type fileLog struct {
	Level   *string `json:"level" yaml:"level"`
	Console *bool   `json:"console" yaml:"console"`
}

// Parse reads JSONC configuration content over base and validates the result.
func Parse(content string, base Config) (Config, []Warning, error) {
	cfg, err := decodeJSONC(content, base)
	if err != nil {
		return Config{}, nil, err
	}
	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

// ParseYAML reads YAML configuration content over base and validates the result.
func ParseYAML(content string, base Config) (Config, []Warning, error) {
	cfg, err := decodeYAML(content, base)
	if err != nil {
		return Config{}, nil, err
	}
	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func decodeJSONC(content string, base Config) (Config, error) {
	if strings.TrimSpace(content) == "" {
		return base, nil
	}

	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload fileConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, withLocation(normalized, err)
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return Config{}, errors.New("multiple JSON values are not allowed")
	}

	cfg := base
	payload.applyTo(&cfg)
	return cfg, nil
}

func decodeYAML(content string, base Config) (Config, error) {
	if strings.TrimSpace(content) == "" {
		return base, nil
	}

	decoder := yaml.NewDecoder(bytes.NewReader([]byte(content)))
	decoder.KnownFields(true)

	var payload fileConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, fmt.Errorf("decode yaml: %w", err)
	}

	cfg := base
	payload.applyTo(&cfg)
	return cfg, nil
}

func (payload fileConfig) applyTo(cfg *Config) {
	if a := payload.Audio; a != nil {
		setString(&cfg.Audio.Backend, a.Backend)
		setString(&cfg.Audio.Input, a.Input)
		setString(&cfg.Audio.Fallback, a.Fallback)
	}

	if c := payload.Capture; c != nil {
		set(&cfg.Capture.SampleRate, c.SampleRate)
		set(&cfg.Capture.BlockSize, c.BlockSize)
		set(&cfg.Capture.QueueFrames, c.QueueFrames)
		set(&cfg.Capture.FrameTimeoutMS, c.FrameTimeoutMS)
		set(&cfg.Capture.BackoffMS, c.BackoffMS)
		set(&cfg.Capture.Autostart, c.Autostart)
	}

	if r := payload.Recognizer; r != nil {
		setString(&cfg.Recognizer.Backend, r.Backend)
		setString(&cfg.Recognizer.Language, r.Language)
		setString(&cfg.Recognizer.ModelPath, r.ModelPath)
		setString(&cfg.Recognizer.Command, r.Command)
		set(&cfg.Recognizer.SilenceMS, r.SilenceMS)
		set(&cfg.Recognizer.MaxUtteranceMS, r.MaxUtteranceMS)
		set(&cfg.Recognizer.RMSThreshold, r.RMSThreshold)
		set(&cfg.Recognizer.Capitalize, r.Capitalize)
		if y := r.Yandex; y != nil {
			setString(&cfg.Recognizer.Yandex.Endpoint, y.Endpoint)
			setString(&cfg.Recognizer.Yandex.APIKey, y.APIKey)
			setString(&cfg.Recognizer.Yandex.IAMToken, y.IAMToken)
			setString(&cfg.Recognizer.Yandex.FolderID, y.FolderID)
		}
	}

	if s := payload.Server; s != nil {
		setString(&cfg.Server.SocketPath, s.SocketPath)
		setString(&cfg.Server.HTTPHost, s.HTTPHost)
		set(&cfg.Server.HTTPPort, s.HTTPPort)
		setString(&cfg.Server.DocRoot, s.DocRoot)
		setString(&cfg.Server.GRPCAddr, s.GRPCAddr)
		set(&cfg.Server.HealthIntervalMS, s.HealthIntervalMS)
	}

	if b := payload.Bus; b != nil {
		set(&cfg.Bus.Enable, b.Enable)
		setString(&cfg.Bus.URL, b.URL)
		setString(&cfg.Bus.Subject, b.Subject)
		setString(&cfg.Bus.Source, b.Source)
	}

	if t := payload.Telemetry; t != nil {
		setString(&cfg.Telemetry.TraceExporter, t.TraceExporter)
		setString(&cfg.Telemetry.OTLPEndpoint, t.OTLPEndpoint)
		set(&cfg.Telemetry.OTLPInsecure, t.OTLPInsecure)
	}

	if l := payload.Log; l != nil {
		setString(&cfg.Log.Level, l.Level)
		set(&cfg.Log.Console, l.Console)
	}
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}
