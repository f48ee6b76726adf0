// Package config loads gophsync settings: defaults, then an optional YAML
// file, then an optional .env file, then GOPHSYNC_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/iudanet/gophsync/internal/client/coordinator"
	"github.com/iudanet/gophsync/internal/client/monitor"
	"github.com/iudanet/gophsync/internal/client/polling"
	"github.com/iudanet/gophsync/internal/client/queue"
	"github.com/iudanet/gophsync/internal/server"
)

// EnvPrefix prefix of environment overrides
const EnvPrefix = "GOPHSYNC_"

// ServerConfig адрес сервера и параметры транспорта
type ServerConfig struct {
	URL         string        `yaml:"url"`
	RealtimeURL string        `yaml:"realtime_url"`
	Token       string        `yaml:"token"`
	Timeout     time.Duration `yaml:"timeout"`
}

// StorageConfig DSN основного и запасного хранилища очереди
type StorageConfig struct {
	DSN         string `yaml:"dsn"`
	FallbackDSN string `yaml:"fallback_dsn"`
}

// LoggingConfig параметры логирования
type LoggingConfig struct {
	Level string `yaml:"level"`
	// Format auto, text или json. auto выбирает text для терминала
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Config полная конфигурация клиента синхронизации
type Config struct {
	Server      ServerConfig       `yaml:"server"`
	Storage     StorageConfig      `yaml:"storage"`
	Logging     LoggingConfig      `yaml:"logging"`
	Queue       queue.Config       `yaml:"queue"`
	Monitor     monitor.Config     `yaml:"monitor"`
	Polling     polling.Config     `yaml:"polling"`
	Coordinator coordinator.Config `yaml:"coordinator"`
	// Serve используется только командой serve
	Serve server.Config `yaml:"serve"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL:     "http://localhost:8080",
			Timeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			DSN:         "bolt://gophsync.db",
			FallbackDSN: "file://gophsync.json",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "auto",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Queue:       queue.DefaultConfig(),
		Monitor:     monitor.DefaultConfig(),
		Polling:     polling.DefaultConfig(),
		Coordinator: coordinator.DefaultConfig(),
		Serve:       server.DefaultConfig(),
	}
}

// Load builds the configuration. path and envFile are optional: an empty
// path skips the YAML file, an empty envFile looks for .env and ignores it
// when absent.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := loadDotEnv(envFile); err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// loadDotEnv loads KEY=VALUE pairs without overriding variables already set
func loadDotEnv(envFile string) error {
	explicit := envFile != ""
	if !explicit {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

// applyEnv overrides settings from GOPHSYNC_* variables
func (c *Config) applyEnv(lookup lookupFunc) error {
	var errs []error

	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	str("SERVER_URL", &c.Server.URL)
	str("REALTIME_URL", &c.Server.RealtimeURL)
	str("TOKEN", &c.Server.Token)
	dur("REQUEST_TIMEOUT", &c.Server.Timeout)

	str("STORAGE_DSN", &c.Storage.DSN)
	str("STORAGE_FALLBACK_DSN", &c.Storage.FallbackDSN)

	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	str("LOG_FILE", &c.Logging.File)

	var policy, jitter string
	str("QUEUE_DEDUP_POLICY", &policy)
	if policy != "" {
		c.Queue.DedupPolicy = queue.DedupPolicy(policy)
	}
	str("QUEUE_JITTER", &jitter)
	if jitter != "" {
		c.Queue.Jitter = queue.JitterMode(jitter)
	}
	num("QUEUE_MAX_RETRIES", &c.Queue.DefaultMaxRetries)
	dur("QUEUE_BASE_DELAY", &c.Queue.BaseDelay)
	dur("QUEUE_MAX_DELAY", &c.Queue.MaxDelay)

	dur("HEARTBEAT_INTERVAL", &c.Monitor.HeartbeatInterval)
	dur("QUALITY_INTERVAL", &c.Monitor.QualityInterval)
	num("MAX_RECONNECT_ATTEMPTS", &c.Monitor.MaxReconnectAttempts)

	num("POLL_MAX_ERRORS", &c.Polling.MaxConsecutiveErrors)
	num("POLL_CONCURRENCY", &c.Polling.Concurrency)

	dur("TICK_BASE", &c.Coordinator.BaseTick)
	dur("TICK_MAX", &c.Coordinator.MaxTick)
	num("SLOWDOWN_THRESHOLD", &c.Coordinator.SlowdownThreshold)
	num("CRITICAL_THRESHOLD", &c.Coordinator.CriticalThreshold)

	str("SERVE_ADDR", &c.Serve.Addr)
	str("SERVE_DSN", &c.Serve.DSN)
	str("SERVE_TOKEN", &c.Serve.Token)
	num("SERVE_RATE_LIMIT", &c.Serve.RateLimit)

	var entities string
	str("REALTIME_ENTITIES", &entities)
	if entities != "" {
		c.Coordinator.Entities = splitList(entities)
	}

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks every section
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return errors.New("server url is required")
	}
	if !strings.HasPrefix(c.Server.URL, "http://") && !strings.HasPrefix(c.Server.URL, "https://") {
		return fmt.Errorf("server url %q must start with http:// or https://", c.Server.URL)
	}
	if c.Server.Timeout <= 0 {
		return errors.New("server timeout must be positive")
	}
	if c.Storage.DSN == "" {
		return errors.New("storage dsn is required")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "auto", "text", "json":
	default:
		return fmt.Errorf("unsupported log format %q", c.Logging.Format)
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}

	if err := c.Queue.Validate(); err != nil {
		return fmt.Errorf("queue: %w", err)
	}
	if err := c.Monitor.Validate(); err != nil {
		return fmt.Errorf("monitor: %w", err)
	}
	if err := c.Polling.Validate(); err != nil {
		return fmt.Errorf("polling: %w", err)
	}
	if err := c.Coordinator.Validate(); err != nil {
		return fmt.Errorf("coordinator: %w", err)
	}
	if err := c.Serve.Validate(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// ParseLevel converts debug/info/warn/error into a slog level.
// An empty string means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported log level %q", s)
	}
}
