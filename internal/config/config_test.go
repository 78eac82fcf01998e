package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/binlog/internal/foundation/errors"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("version: \"1\"\n"))
	require.NoError(t, err)

	assert.Equal(t, "./binlog.db", cfg.Durable.Path)
	assert.Equal(t, CompressionZstd, cfg.Durable.Compression)
	assert.Equal(t, 1, cfg.Durable.CompressionLevel)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.Stream.URL)
	assert.Equal(t, "BINLOG", cfg.Stream.StreamName)
	assert.Equal(t, "binlog.v0", cfg.Stream.SubjectPrefix)
	assert.Equal(t, StorageFile, cfg.Stream.Storage)
	assert.Equal(t, CompressionNone, cfg.Stream.Compression)
	assert.Equal(t, time.Hour, cfg.Daemon.Retention.Interval.Std())
	assert.Equal(t, "127.0.0.1:9090", cfg.Daemon.MetricsAddr)
	assert.Equal(t, 16, cfg.Daemon.MaxConnections)
	assert.Equal(t, RetryBackoffExponential, cfg.Daemon.Retry.Mode)
	assert.Equal(t, 3, cfg.Daemon.Retry.MaxRetries)
	assert.Equal(t, LogLevelInfo, cfg.Logging.Level)
	assert.Equal(t, LogFormatText, cfg.Logging.Format)
	assert.Equal(t, BackendDurable, cfg.DefaultBackend)
}

func TestParseFullDocument(t *testing.T) {
	doc := `
version: "1"
default_backend: NATS
durable:
  path: /var/lib/binlog/log.db
  compression: none
  compression_level: 3
stream:
  url: nats://nats:4222
  stream_name: EVENTS
  subject_prefix: events.v1
  capacity: 500
  storage: Memory
  max_age: 24h
  replay_from_start: true
daemon:
  archive: [orders, payments]
  retention:
    max_age_micros: 86400000000
    interval: 15m
  metrics_addr: ":9100"
  retry:
    mode: fixed
    initial: 200ms
    max: 2s
    max_retries: 5
logging:
  level: DEBUG
  format: json
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, BackendStream, cfg.DefaultBackend)
	assert.Equal(t, CompressionNone, cfg.Durable.Compression)
	assert.Equal(t, int64(500), cfg.Stream.Capacity)
	assert.Equal(t, StorageMemory, cfg.Stream.Storage)
	assert.Equal(t, 24*time.Hour, cfg.Stream.MaxAge.Std())
	assert.True(t, cfg.Stream.ReplayFromStart)
	assert.Equal(t, []string{"orders", "payments"}, cfg.Daemon.Archive)
	assert.Equal(t, int64(86400000000), cfg.Daemon.Retention.MaxAgeMicros)
	assert.Equal(t, 15*time.Minute, cfg.Daemon.Retention.Interval.Std())
	assert.Equal(t, RetryBackoffFixed, cfg.Daemon.Retry.Mode)
	assert.Equal(t, 200*time.Millisecond, cfg.Daemon.Retry.Initial.Std())
	assert.Equal(t, LogLevelDebug, cfg.Logging.Level)
	assert.Equal(t, LogFormatJSON, cfg.Logging.Format)
}

func TestParseExpandsEnvironment(t *testing.T) {
	t.Setenv("BINLOG_TEST_URL", "nats://broker:4222")
	cfg, err := Parse([]byte("version: \"1\"\nstream:\n  url: ${BINLOG_TEST_URL}\n"))
	require.NoError(t, err)
	assert.Equal(t, "nats://broker:4222", cfg.Stream.URL)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		category errors.ErrorCategory
	}{
		{"missing version", "durable:\n  path: x.db\n", errors.CategoryConfig},
		{"future version", "version: \"2\"\n", errors.CategoryConfig},
		{"unknown field", "version: \"1\"\nbogus: true\n", errors.CategoryConfig},
		{"unknown backend", "version: \"1\"\ndefault_backend: redis\n", errors.CategoryValidation},
		{"unknown storage", "version: \"1\"\nstream:\n  storage: tape\n", errors.CategoryValidation},
		{"bad duration", "version: \"1\"\nstream:\n  max_age: soon\n", errors.CategoryConfig},
		{"negative capacity", "version: \"1\"\nstream:\n  capacity: -1\n", errors.CategoryValidation},
		{"wildcard prefix", "version: \"1\"\nstream:\n  subject_prefix: a.*\n", errors.CategoryValidation},
		{"dotted stream", "version: \"1\"\nstream:\n  stream_name: a.b\n", errors.CategoryValidation},
		{"level out of range", "version: \"1\"\ndurable:\n  compression_level: 30\n", errors.CategoryValidation},
		{"duplicate archive", "version: \"1\"\ndaemon:\n  archive: [a, a]\n", errors.CategoryValidation},
		{"initial over max", "version: \"1\"\ndaemon:\n  retry:\n    initial: 1m\n    max: 1s\n", errors.CategoryValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Equal(t, tt.category, errors.GetCategory(err), err.Error())
		})
	}
}

func TestNormalizeWarnsOnRewrite(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{Level: "Warning"}}
	res, err := NormalizeConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, LogLevelWarn, cfg.Logging.Level)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "logging.level")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.CategoryNotFound, errors.GetCategory(err))
}

func TestInitRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultPath)
	require.NoError(t, Init(path, false))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, cfg.Daemon.Archive)
	assert.Equal(t, int64(10000), cfg.Stream.Capacity)

	err = Init(path, false)
	require.Error(t, err)
	assert.Equal(t, errors.CategoryValidation, errors.GetCategory(err))
	require.NoError(t, Init(path, true))
}

func TestDefaultAppliersCoverEveryDomain(t *testing.T) {
	var domains []string
	for _, a := range defaultAppliers() {
		domains = append(domains, a.Domain())
	}
	assert.Equal(t, []string{"durable", "stream", "daemon", "logging"}, domains)
}

func TestLogLevelSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, LogLevelDebug.SlogLevel())
	assert.Equal(t, slog.LevelWarn, NormalizeLogLevel("WARNING").SlogLevel())
	assert.Equal(t, slog.LevelError, LogLevelError.SlogLevel())
	assert.Equal(t, slog.LevelInfo, LogLevel("").SlogLevel())
}

func TestLoadReadsDotEnvWithoutOverriding(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("BINLOG_TEST_PREFIX", "from.process")
	t.Cleanup(func() { _ = os.Unsetenv("BINLOG_TEST_STREAM") })

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("BINLOG_TEST_STREAM=FROMDOTENV\nBINLOG_TEST_PREFIX=from.dotenv\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultPath), []byte(`version: "1"
stream:
  stream_name: ${BINLOG_TEST_STREAM}
  subject_prefix: ${BINLOG_TEST_PREFIX}
`), 0o600))

	cfg, err := Load(DefaultPath)
	require.NoError(t, err)
	assert.Equal(t, "FROMDOTENV", cfg.Stream.StreamName)
	assert.Equal(t, "from.process", cfg.Stream.SubjectPrefix)
}
