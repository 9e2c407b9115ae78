// Package config resolves, parses, validates, and defaults hark configuration.
package config

// Config is the fully materialized runtime configuration used by hark.
type Config struct {
	Audio      AudioConfig
	Capture    CaptureConfig
	Recognizer RecognizerConfig
	Server     ServerConfig
	Bus        BusConfig
	Telemetry  TelemetryConfig
	Log        LogConfig
}

// AudioConfig selects the capture backend and the input device.
type AudioConfig struct {
	Backend  string
	Input    string
	Fallback string
}

// CaptureConfig controls the capture session loop.
type CaptureConfig struct {
	SampleRate     int
	BlockSize      int
	QueueFrames    int
	FrameTimeoutMS int
	BackoffMS      int
	Autostart      bool
}

// RecognizerConfig selects and configures the recognizer backend.
type RecognizerConfig struct {
	Backend        string
	Language       string
	ModelPath      string
	Command        string
	SilenceMS      int
	MaxUtteranceMS int
	RMSThreshold   float64
	Capitalize     bool
	Yandex         YandexConfig
}

// YandexConfig holds SpeechKit endpoint and credentials.
type YandexConfig struct {
	Endpoint string
	APIKey   string
	IAMToken string
	FolderID string
}

// ServerConfig controls the daemon's listening surfaces.
type ServerConfig struct {
	SocketPath       string
	HTTPHost         string
	HTTPPort         int
	DocRoot          string
	GRPCAddr         string
	HealthIntervalMS int
}

// BusConfig controls transcript publishing to NATS.
type BusConfig struct {
	Enable  bool
	URL     string
	Subject string
	Source  string
}

// TelemetryConfig selects the trace exporter.
type TelemetryConfig struct {
	TraceExporter string
	OTLPEndpoint  string
	OTLPInsecure  bool
}

// LogConfig controls runtime logging.
type LogConfig struct {
	Level   string
	Console bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
