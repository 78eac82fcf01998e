package config

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/binlog/internal/foundation/errors"
)

// ValidateConfig checks a defaulted configuration for impossible values.
func ValidateConfig(cfg *Config) error {
	return newConfigurationValidator(cfg).validate()
}

type configurationValidator struct {
	config *Config
}

func newConfigurationValidator(config *Config) *configurationValidator {
	return &configurationValidator{config: config}
}

func (cv *configurationValidator) validate() error {
	for _, check := range []func() error{
		cv.validateDurable,
		cv.validateStream,
		cv.validateRetention,
		cv.validateArchive,
		cv.validateRetry,
		cv.validateServer,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func invalid(field string, format string, args ...any) error {
	return errors.ValidationError(fmt.Sprintf(format, args...)).
		WithContext("field", field).
		Build()
}

func (cv *configurationValidator) validateDurable() error {
	d := cv.config.Durable
	if strings.TrimSpace(d.Path) == "" {
		return invalid("durable.path", "durable.path must not be empty")
	}
	if d.CompressionLevel < 1 || d.CompressionLevel > 22 {
		return invalid("durable.compression_level", "durable.compression_level must be between 1 and 22, got %d", d.CompressionLevel)
	}
	if d.BusyTimeout < 0 {
		return invalid("durable.busy_timeout", "durable.busy_timeout cannot be negative")
	}
	return nil
}

func (cv *configurationValidator) validateStream() error {
	s := cv.config.Stream
	if !strings.Contains(s.URL, "://") {
		return invalid("stream.url", "stream.url must be a nats URL, got %q", s.URL)
	}
	if strings.ContainsAny(s.StreamName, ". *>") {
		return invalid("stream.stream_name", "stream.stream_name %q must not contain '.', '*', '>' or spaces", s.StreamName)
	}
	for _, tok := range strings.Split(s.SubjectPrefix, ".") {
		if tok == "" || strings.ContainsAny(tok, "*> ") {
			return invalid("stream.subject_prefix", "stream.subject_prefix %q is not a valid subject", s.SubjectPrefix)
		}
	}
	if s.Capacity < 0 {
		return invalid("stream.capacity", "stream.capacity cannot be negative")
	}
	if s.BufferSize < 1 {
		return invalid("stream.buffer_size", "stream.buffer_size must be positive")
	}
	if s.MaxAge < 0 || s.PublishTimeout < 0 {
		return invalid("stream", "stream durations cannot be negative")
	}
	return nil
}

func (cv *configurationValidator) validateRetention() error {
	r := cv.config.Daemon.Retention
	if r.MaxAgeMicros < 0 {
		return invalid("daemon.retention.max_age_micros", "daemon.retention.max_age_micros cannot be negative")
	}
	if r.Interval <= 0 {
		return invalid("daemon.retention.interval", "daemon.retention.interval must be positive")
	}
	return nil
}

func (cv *configurationValidator) validateArchive() error {
	seen := make(map[string]struct{}, len(cv.config.Daemon.Archive))
	for _, name := range cv.config.Daemon.Archive {
		if _, dup := seen[name]; dup {
			return invalid("daemon.archive", "daemon.archive lists %q twice", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

func (cv *configurationValidator) validateRetry() error {
	r := cv.config.Daemon.Retry
	if r.MaxRetries < 0 {
		return invalid("daemon.retry.max_retries", "daemon.retry.max_retries cannot be negative")
	}
	if r.Initial <= 0 || r.Max <= 0 {
		return invalid("daemon.retry", "daemon.retry delays must be positive")
	}
	if r.Initial > r.Max {
		return invalid("daemon.retry.initial", "daemon.retry.initial (%s) exceeds daemon.retry.max (%s)", r.Initial.Std(), r.Max.Std())
	}
	return nil
}

func (cv *configurationValidator) validateServer() error {
	d := cv.config.Daemon
	if d.MaxConnections < 1 {
		return invalid("daemon.max_connections", "daemon.max_connections must be positive")
	}
	if d.MetricsAddr != "off" && !strings.Contains(d.MetricsAddr, ":") {
		return invalid("daemon.metrics_addr", "daemon.metrics_addr %q must be host:port or \"off\"", d.MetricsAddr)
	}
	return nil
}
