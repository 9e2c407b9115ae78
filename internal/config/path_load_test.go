package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePathPrecedence(t *testing.T) {
	explicit := "/tmp/custom.jsonc"
	resolved, err := ResolvePath(explicit)
	require.NoError(t, err)
	require.Equal(t, explicit, resolved)

	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(xdg, "hark", "config.jsonc"), resolved)

	yamlPath := filepath.Join(xdg, "hark", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(yamlPath), 0o700))
	require.NoError(t, os.WriteFile(yamlPath, []byte("log:\n  level: warn\n"), 0o600))
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, yamlPath, resolved)

	t.Setenv("XDG_CONFIG_HOME", "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".config", "hark", "config.jsonc"), resolved)
}

func TestLoadMissingConfigUsesDefaultsWithWarning(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "missing.jsonc")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, path, loaded.Path)
	require.False(t, loaded.Exists)
	require.Equal(t, Default(), loaded.Config)
	require.NotEmpty(t, loaded.Warnings)
	require.Contains(t, loaded.Warnings[0].Message, "not found")
}

func TestLoadExistingJSONC(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "config.jsonc")
	contents := `
{
  // local development
  "recognizer": {"backend": "mock"},
  "server": {"http_port": 5050},
}
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, loaded.Exists)
	require.Equal(t, "mock", loaded.Config.Recognizer.Backend)
	require.Equal(t, 5050, loaded.Config.Server.HTTPPort)
}

func TestLoadSelectsYAMLByExtension(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "hark.yml")
	require.NoError(t, os.WriteFile(path, []byte("recognizer:\n  backend: mock\nlog:\n  level: error\n"), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "mock", loaded.Config.Recognizer.Backend)
	require.Equal(t, "error", loaded.Config.Log.Level)
}

func TestLoadAppliesDotEnvWithoutOverridingEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "config.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{"recognizer": {"backend": "exec"}}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("HARK_RECOGNIZER=mock\nHARK_HTTP_PORT=6000\n"), 0o600))

	t.Setenv("HARK_HTTP_PORT", "7000")
	t.Setenv("HARK_RECOGNIZER", "")
	require.NoError(t, os.Unsetenv("HARK_RECOGNIZER"))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, ".env")}, loaded.EnvFiles)
	require.Equal(t, "mock", loaded.Config.Recognizer.Backend)
	require.Equal(t, 7000, loaded.Config.Server.HTTPPort)
}

func TestLoadParseErrorIncludesPath(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "broken.jsonc")
	require.NoError(t, os.WriteFile(path, []byte("{ not-json }"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse config")
	require.Contains(t, err.Error(), path)
}

func TestLoadRejectsInvalidEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HARK_HTTP_PORT", "eighty")

	_, err := Load(filepath.Join(t.TempDir(), "config.jsonc"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "HARK_HTTP_PORT")
}
