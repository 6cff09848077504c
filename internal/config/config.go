package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/raphaelgruber/splunkgo/internal/splunkd"
	"github.com/raphaelgruber/splunkgo/internal/surrealkv"
)

// KV store backends.
const (
	BackendSplunk  = "splunk"
	BackendSurreal = "surreal"
)

// Config holds all configuration values.
type Config struct {
	Splunk splunkd.Config `yaml:"splunk"`

	// KVBackend selects the collection registry: "splunk" or "surreal".
	KVBackend string           `yaml:"kv_backend"`
	Surreal   surrealkv.Config `yaml:"surreal"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`
	Level    string     `yaml:"log_level"`

	// Result decoding
	ScratchDir      string `yaml:"scratch_dir"`
	ScratchInMemory bool   `yaml:"scratch_in_memory"`

	// PollInterval paces completion checks while waiting for a job.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Splunk:    splunkd.DefaultConfig(),
		KVBackend: BackendSplunk,
		Surreal: surrealkv.Config{
			URL:       "ws://localhost:8000/rpc",
			Namespace: "splunk",
			Database:  "kvstore",
			Username:  "root",
			Password:  "root",
			AuthLevel: "root",
		},
		LogFile:      "/tmp/splunkgo.log",
		LogLevel:     slog.LevelInfo,
		Level:        "INFO",
		PollInterval: time.Second,
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// SPLUNK_CONFIG (if set), then SPLUNK_* and SURREALDB_* environment
// variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("SPLUNK_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	cfg.LogLevel = parseLogLevel(cfg.Level)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var errs []error

	envString(&c.Splunk.Host, "SPLUNK_HOST")
	errs = append(errs, envInt(&c.Splunk.Port, "SPLUNK_PORT"))
	envString(&c.Splunk.Scheme, "SPLUNK_SCHEME")
	errs = append(errs, envBool(&c.Splunk.Verify, "SPLUNK_VERIFY"))
	envString(&c.Splunk.Owner, "SPLUNK_OWNER")
	envString(&c.Splunk.App, "SPLUNK_APP")
	envString(&c.Splunk.Sharing, "SPLUNK_SHARING")
	envString(&c.Splunk.Token, "SPLUNK_TOKEN")
	envString(&c.Splunk.SessionKey, "SPLUNK_SESSION_KEY")
	envString(&c.Splunk.Username, "SPLUNK_USERNAME")
	envString(&c.Splunk.Password, "SPLUNK_PASSWORD")
	errs = append(errs, envInt(&c.Splunk.Retries, "SPLUNK_RETRIES"))
	errs = append(errs, envDuration(&c.Splunk.RetryDelay, "SPLUNK_RETRY_DELAY"))
	errs = append(errs, envDuration(&c.Splunk.Timeout, "SPLUNK_TIMEOUT"))

	envString(&c.KVBackend, "SPLUNK_KV_BACKEND")
	envString(&c.Surreal.URL, "SURREALDB_URL")
	envString(&c.Surreal.Namespace, "SURREALDB_NAMESPACE")
	envString(&c.Surreal.Database, "SURREALDB_DATABASE")
	envString(&c.Surreal.Username, "SURREALDB_USER")
	envString(&c.Surreal.Password, "SURREALDB_PASS")
	envString(&c.Surreal.AuthLevel, "SURREALDB_AUTH_LEVEL")

	envString(&c.LogFile, "SPLUNK_LOG_FILE")
	envString(&c.Level, "SPLUNK_LOG_LEVEL")
	envString(&c.ScratchDir, "SPLUNK_SCRATCH_DIR")
	errs = append(errs, envBool(&c.ScratchInMemory, "SPLUNK_SCRATCH_IN_MEMORY"))
	errs = append(errs, envDuration(&c.PollInterval, "SPLUNK_POLL_INTERVAL"))

	return errors.Join(errs...)
}

// Validate checks settings that do not depend on the chosen command.
// Splunk credentials are validated when connecting.
func (c Config) Validate() error {
	if c.KVBackend != BackendSplunk && c.KVBackend != BackendSurreal {
		return fmt.Errorf("invalid kv_backend %q (expected %s or %s)", c.KVBackend, BackendSplunk, BackendSurreal)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	return nil
}

func envString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func envInt(dst *int, key string) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envBool(dst *bool, key string) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func envDuration(dst *time.Duration, key string) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
