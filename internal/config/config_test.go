package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3000", cfg.Dispatch.BaseURL)
	assert.Equal(t, "http://localhost:8000", cfg.Session.BaseURL)
	assert.Equal(t, 10*time.Minute, cfg.RequestTimeout)
	assert.Equal(t, "ffmpeg", cfg.Audio.FFmpegPath)
	assert.True(t, cfg.Audio.Transcode)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NotEmpty(t, cfg.Log.File)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notebook-runner.yaml")
	content := `
dispatch:
  base_url: http://dispatch.internal:3000
session:
  base_url: https://session.internal
request_timeout: 30s
audio:
  transcode: false
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "http://dispatch.internal:3000", cfg.Dispatch.BaseURL)
	assert.Equal(t, "https://session.internal", cfg.Session.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.False(t, cfg.Audio.Transcode)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "ffmpeg", cfg.Audio.FFmpegPath)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notebook-runner.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session:\n  base_url: http://from-file:8000\n"), 0o644))
	t.Setenv("NOTEBOOK_RUNNER_SESSION_BASE_URL", "http://from-env:9000")
	t.Setenv("NOTEBOOK_RUNNER_REQUEST_TIMEOUT", "0")

	cfg, err := load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "http://from-env:9000", cfg.Session.BaseURL)
	assert.Equal(t, time.Duration(0), cfg.RequestTimeout)
}

func TestEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("NOTEBOOK_RUNNER_LOG_LEVEL=warn\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("NOTEBOOK_RUNNER_LOG_LEVEL") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Dispatch:       EndpointConfig{BaseURL: "http://localhost:3000"},
			Session:        EndpointConfig{BaseURL: "http://localhost:8000"},
			RequestTimeout: time.Minute,
			Audio:          AudioConfig{FFmpegPath: "ffmpeg"},
			Log:            LogConfig{Level: "info"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, true},
		{"negative timeout", func(c *Config) { c.RequestTimeout = -time.Second }, false},
		{"relative dispatch url", func(c *Config) { c.Dispatch.BaseURL = "localhost:3000" }, false},
		{"ftp session url", func(c *Config) { c.Session.BaseURL = "ftp://host" }, false},
		{"bad level", func(c *Config) { c.Log.Level = "trace" }, false},
		{"no ffmpeg", func(c *Config) { c.Audio.FFmpegPath = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestDefaultLogPathUsesStateHome(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/var/state")
	assert.Equal(t, "/var/state/notebook-runner/notebook-runner.log", DefaultLogPath())
}
