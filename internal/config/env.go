package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// envOverride binds one HARK_* variable to a config field.
type envOverride struct {
	key   string
	apply func(*Config, string) error
}

var envOverrides = []envOverride{
	{key: "HARK_AUDIO_DEVICE", apply: func(c *Config, v string) error { c.Audio.Input = v; return nil }},
	{key: "HARK_MODEL_PATH", apply: func(c *Config, v string) error { c.Recognizer.ModelPath = v; return nil }},
	{key: "HARK_HTTP_HOST", apply: func(c *Config, v string) error { c.Server.HTTPHost = v; return nil }},
	{key: "HARK_HTTP_PORT", apply: func(c *Config, v string) error {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HARK_HTTP_PORT=%q is not an integer", v)
		}
		c.Server.HTTPPort = port
		return nil
	}},
	{key: "HARK_LOG_LEVEL", apply: func(c *Config, v string) error { c.Log.Level = v; return nil }},
	{key: "HARK_DOC_ROOT", apply: func(c *Config, v string) error { c.Server.DocRoot = v; return nil }},
	{key: "HARK_NATS_URL", apply: func(c *Config, v string) error {
		c.Bus.URL = v
		c.Bus.Enable = true
		return nil
	}},
	{key: "HARK_RECOGNIZER", apply: func(c *Config, v string) error { c.Recognizer.Backend = v; return nil }},
}

// applyEnv overlays HARK_* variables found by lookup. Empty values are ignored.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	for _, override := range envOverrides {
		value, ok := lookup(override.key)
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if err := override.apply(cfg, value); err != nil {
			return err
		}
	}
	return nil
}

// loadDotEnv loads .env files next to the config file and in the working
// directory. Variables already present in the environment are kept.
func loadDotEnv(configPath string) ([]string, error) {
	candidates := []string{filepath.Join(filepath.Dir(configPath), ".env")}
	if cwd, err := os.Getwd(); err == nil {
		local := filepath.Join(cwd, ".env")
		if local != candidates[0] {
			candidates = append(candidates, local)
		}
	}

	loaded := make([]string, 0, len(candidates))
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return loaded, fmt.Errorf("stat %q: %w", path, err)
		}
		if err := godotenv.Load(path); err != nil {
			return loaded, fmt.Errorf("load env file %q: %w", path, err)
		}
		loaded = append(loaded, path)
	}
	return loaded, nil
}
