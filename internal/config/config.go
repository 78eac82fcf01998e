package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/binlog/internal/foundation/errors"
)

// CurrentVersion is the configuration format version this build reads.
const CurrentVersion = "1"

// DefaultPath is where the CLI looks for configuration when -c is omitted.
const DefaultPath = "binlog.yaml"

// Config is the root of the binlog configuration file.
type Config struct {
	Version        string        `yaml:"version"`
	Durable        DurableConfig `yaml:"durable"`
	Stream         StreamConfig  `yaml:"stream"`
	Daemon         DaemonConfig  `yaml:"daemon"`
	Logging        LoggingConfig `yaml:"logging"`
	DefaultBackend Backend       `yaml:"default_backend"`
}

// DurableConfig configures the SQLite store.
type DurableConfig struct {
	Path             string      `yaml:"path"`
	Compression      Compression `yaml:"compression"`
	CompressionLevel int         `yaml:"compression_level"`
	BusyTimeout      Duration    `yaml:"busy_timeout,omitempty"`
}

// StreamConfig configures the NATS JetStream store.
type StreamConfig struct {
	URL             string      `yaml:"url"`
	StreamName      string      `yaml:"stream_name"`
	SubjectPrefix   string      `yaml:"subject_prefix"`
	Capacity        int64       `yaml:"capacity"` // 0 = unlimited
	Storage         StorageKind `yaml:"storage"`
	ReplayFromStart bool        `yaml:"replay_from_start"`
	MaxAge          Duration    `yaml:"max_age,omitempty"`
	BufferSize      int         `yaml:"buffer_size,omitempty"`
	PublishTimeout  Duration    `yaml:"publish_timeout,omitempty"`
	Compression     Compression `yaml:"compression,omitempty"`
}

// DaemonConfig configures `binlog daemon`.
type DaemonConfig struct {
	Archive        []string        `yaml:"archive"` // names mirrored from stream into durable
	Retention      RetentionConfig `yaml:"retention"`
	MetricsAddr    string          `yaml:"metrics_addr"`
	MaxConnections int             `yaml:"max_connections"`
	Retry          RetryConfig     `yaml:"retry"`
}

// RetentionConfig drives the periodic durable-store cleanup.
type RetentionConfig struct {
	MaxAgeMicros int64    `yaml:"max_age_micros"` // 0 disables
	Interval     Duration `yaml:"interval"`
}

// RetryConfig configures backoff for archiver writes.
type RetryConfig struct {
	Mode       RetryBackoffMode `yaml:"mode"`
	Initial    Duration         `yaml:"initial"`
	Max        Duration         `yaml:"max"`
	MaxRetries int              `yaml:"max_retries"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// Load reads, normalizes, defaults and validates the file at configPath.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewError(errors.CategoryNotFound, "configuration file not found").
				WithContext("path", configPath).
				Build()
		}
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").
			WithContext("path", configPath).
			Build()
	}
	return Parse(data)
}

// Parse builds a validated Config from YAML. Environment references
// (${VAR}) are expanded before decoding.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to decode config").Build()
	}

	if cfg.Version != CurrentVersion {
		return nil, errors.ConfigError(fmt.Sprintf("unsupported configuration version %q (expected %s)", cfg.Version, CurrentVersion)).
			WithContext("version", cfg.Version).
			Build()
	}

	// Normalization pass (case-fold enumerations, early coercions)
	res, err := NormalizeConfig(&cfg)
	if err != nil {
		return nil, err
	}
	for _, w := range res.Warnings {
		slog.Warn("config normalization", "warning", w)
	}

	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a fully defaulted configuration, as if loaded from a file
// containing only the version.
func Default() *Config {
	cfg := &Config{Version: CurrentVersion}
	_ = applyDefaults(cfg)
	return cfg
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ValidationError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).
			Build()
	}

	example := Default()
	example.Daemon.Archive = []string{"orders"}
	example.Stream.Capacity = 10000

	data, err := yaml.Marshal(example)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal example config").Build()
	}
	header := []byte("# binlog configuration\n# Values may reference environment variables as ${VAR}; .env and .env.local are loaded first.\n")
	if err := os.WriteFile(configPath, append(header, data...), 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "failed to write config file").
			WithContext("path", configPath).
			Build()
	}
	return nil
}
