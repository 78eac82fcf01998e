package config

import (
	"log/slog"

	"git.home.luguber.info/inful/binlog/internal/foundation/normalization"
)

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var logLevelNormalizer = normalization.NewNormalizer("logging.level", map[string]LogLevel{
	"debug":   LogLevelDebug,
	"info":    LogLevelInfo,
	"warn":    LogLevelWarn,
	"warning": LogLevelWarn,
	"error":   LogLevelError,
}, LogLevelInfo)

// NormalizeLogLevel maps raw onto a LogLevel, defaulting to info.
func NormalizeLogLevel(raw string) LogLevel {
	return logLevelNormalizer.Normalize(raw)
}

// SlogLevel maps the level onto slog; unknown levels read as info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

var logFormatNormalizer = normalization.NewNormalizer("logging.format", map[string]LogFormat{
	"json": LogFormatJSON,
	"text": LogFormatText,
}, LogFormatText)

// NormalizeLogFormat maps raw onto a LogFormat, defaulting to text.
func NormalizeLogFormat(raw string) LogFormat {
	return logFormatNormalizer.Normalize(raw)
}

// Backend selects which store a command talks to.
type Backend string

const (
	BackendDurable Backend = "durable"
	BackendStream  Backend = "stream"
	BackendMemory  Backend = "memory"
)

var backendNormalizer = normalization.NewNormalizer("backend", map[string]Backend{
	"durable": BackendDurable,
	"sqlite":  BackendDurable,
	"stream":  BackendStream,
	"nats":    BackendStream,
	"memory":  BackendMemory,
}, BackendDurable)

// ParseBackend maps raw onto a Backend; blank means durable.
func ParseBackend(raw string) (Backend, error) {
	return backendNormalizer.Parse(raw)
}

// Compression selects the payload codec.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
)

var compressionNormalizer = normalization.NewNormalizer("compression", map[string]Compression{
	"none": CompressionNone,
	"raw":  CompressionNone,
	"zstd": CompressionZstd,
}, CompressionNone)

// StorageKind selects JetStream stream storage.
type StorageKind string

const (
	StorageFile   StorageKind = "file"
	StorageMemory StorageKind = "memory"
)

var storageNormalizer = normalization.NewNormalizer("stream.storage", map[string]StorageKind{
	"file":   StorageFile,
	"memory": StorageMemory,
}, StorageFile)

// RetryBackoffMode enumerates supported backoff strategies for retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

var retryBackoffNormalizer = normalization.NewNormalizer("daemon.retry.mode", map[string]RetryBackoffMode{
	"fixed":       RetryBackoffFixed,
	"linear":      RetryBackoffLinear,
	"exponential": RetryBackoffExponential,
}, RetryBackoffLinear)

// NormalizeRetryBackoff converts user input (case-insensitive) into a typed
// mode, defaulting to linear.
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	return retryBackoffNormalizer.Normalize(raw)
}
