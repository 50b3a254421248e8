// Package config loads front-end settings from an optional config file, a
// .env file and NOTEBOOK_RUNNER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/AdityaGoyal-512/notebook-runner/internal/audio"
)

// EnvPrefix prefixes every environment override, e.g.
// NOTEBOOK_RUNNER_SESSION_BASE_URL.
const EnvPrefix = "NOTEBOOK_RUNNER"

// Config is the resolved configuration.
type Config struct {
	Dispatch       EndpointConfig `mapstructure:"dispatch"`
	Session        EndpointConfig `mapstructure:"session"`
	RequestTimeout time.Duration  `mapstructure:"request_timeout"`
	Audio          AudioConfig    `mapstructure:"audio"`
	Log            LogConfig      `mapstructure:"log"`
}

// EndpointConfig locates one backend.
type EndpointConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// AudioConfig controls capture, conversion and playback.
type AudioConfig struct {
	FFmpegPath  string `mapstructure:"ffmpeg_path"`
	InputFormat string `mapstructure:"input_format"`
	InputDevice string `mapstructure:"input_device"`
	Transcode   bool   `mapstructure:"transcode"`
	Player      string `mapstructure:"player"`
}

// LogConfig controls the log file.
type LogConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// Load reads configuration. An explicit path must exist; otherwise
// notebook-runner.yaml is looked up in the working directory and the user
// config directory, and a missing file is not an error.
func Load(path string) (*Config, error) {
	loadEnvFile()
	return load(viper.New(), path)
}

func load(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("notebook-runner")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "notebook-runner"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dispatch.base_url", "http://localhost:3000")
	v.SetDefault("session.base_url", "http://localhost:8000")
	v.SetDefault("request_timeout", 10*time.Minute)
	v.SetDefault("audio.ffmpeg_path", "ffmpeg")
	v.SetDefault("audio.input_format", audio.DefaultInputFormat())
	v.SetDefault("audio.input_device", audio.DefaultInputDevice())
	v.SetDefault("audio.transcode", true)
	v.SetDefault("audio.player", audio.DefaultPlayerCommand)
	v.SetDefault("log.file", DefaultLogPath())
	v.SetDefault("log.level", "info")
}

// loadEnvFile loads .env from the working directory when present. Variables
// already set in the environment win.
func loadEnvFile() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
}

// DefaultLogPath returns the log file location under the user's state
// directory.
func DefaultLogPath() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "notebook-runner", "notebook-runner.log")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", "notebook-runner", "notebook-runner.log")
	}
	return filepath.Join(os.TempDir(), "notebook-runner.log")
}

// Validate checks the resolved values.
func (c *Config) Validate() error {
	if err := validateBaseURL("dispatch.base_url", c.Dispatch.BaseURL); err != nil {
		return err
	}
	if err := validateBaseURL("session.base_url", c.Session.BaseURL); err != nil {
		return err
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must not be negative, got %s", c.RequestTimeout)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	if c.Audio.FFmpegPath == "" {
		return errors.New("audio.ffmpeg_path is required")
	}
	return nil
}

func validateBaseURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) url, got %q", key, raw)
	}
	return nil
}
