package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Audio: AudioConfig{
			Backend:  "pulse",
			Input:    "default",
			Fallback: "default",
		},
		Capture: CaptureConfig{
			SampleRate:     16000,
			BlockSize:      4000,
			QueueFrames:    64,
			FrameTimeoutMS: 5000,
			BackoffMS:      1000,
			Autostart:      true,
		},
		Recognizer: RecognizerConfig{
			Backend:        "exec",
			Language:       "en",
			Command:        "whisper-cli -m {model} -l {language} -nt -np -f {input}",
			SilenceMS:      600,
			MaxUtteranceMS: 15000,
			RMSThreshold:   300,
			Yandex: YandexConfig{
				Endpoint: "stt.api.cloud.yandex.net:443",
			},
		},
		Server: ServerConfig{
			HTTPHost:         "127.0.0.1",
			HTTPPort:         5000,
			GRPCAddr:         "127.0.0.1:5001",
			HealthIntervalMS: 2000,
		},
		Bus: BusConfig{
			Enable:  false,
			URL:     "nats://127.0.0.1:4222",
			Subject: "stt.text.final",
			Source:  "hark",
		},
		Telemetry: TelemetryConfig{
			TraceExporter: "none",
			OTLPEndpoint:  "127.0.0.1:4317",
			OTLPInsecure:  true,
		},
		Log: LogConfig{
			Level:   "info",
			Console: false,
		},
	}
}
