package config

import "time"

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

func defaultAppliers() []DefaultApplier {
	return []DefaultApplier{
		&DurableDefaultApplier{},
		&StreamDefaultApplier{},
		&DaemonDefaultApplier{},
		&LoggingDefaultApplier{},
	}
}

func applyDefaults(cfg *Config) error {
	for _, applier := range defaultAppliers() {
		if err := applier.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	if cfg.DefaultBackend == "" {
		cfg.DefaultBackend = BackendDurable
	}
	return nil
}

// DurableDefaultApplier handles the SQLite store.
type DurableDefaultApplier struct{}

func (d *DurableDefaultApplier) Domain() string { return "durable" }

func (d *DurableDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Durable.Path == "" {
		cfg.Durable.Path = "./binlog.db"
	}
	if cfg.Durable.Compression == "" {
		cfg.Durable.Compression = CompressionZstd
	}
	if cfg.Durable.CompressionLevel == 0 {
		cfg.Durable.CompressionLevel = 1
	}
	if cfg.Durable.BusyTimeout == 0 {
		cfg.Durable.BusyTimeout = Duration(5 * time.Second)
	}
	return nil
}

// StreamDefaultApplier handles the NATS store.
type StreamDefaultApplier struct{}

func (s *StreamDefaultApplier) Domain() string { return "stream" }

func (s *StreamDefaultApplier) ApplyDefaults(cfg *Config) error {
	st := &cfg.Stream
	if st.URL == "" {
		st.URL = "nats://127.0.0.1:4222"
	}
	if st.StreamName == "" {
		st.StreamName = "BINLOG"
	}
	if st.SubjectPrefix == "" {
		st.SubjectPrefix = "binlog.v0"
	}
	if st.Storage == "" {
		st.Storage = StorageFile
	}
	if st.BufferSize == 0 {
		st.BufferSize = 64
	}
	if st.PublishTimeout == 0 {
		st.PublishTimeout = Duration(5 * time.Second)
	}
	if st.Compression == "" {
		st.Compression = CompressionNone
	}
	return nil
}

// DaemonDefaultApplier handles the archiver, retention and metrics server.
type DaemonDefaultApplier struct{}

func (d *DaemonDefaultApplier) Domain() string { return "daemon" }

func (d *DaemonDefaultApplier) ApplyDefaults(cfg *Config) error {
	dm := &cfg.Daemon
	if dm.Retention.Interval == 0 {
		dm.Retention.Interval = Duration(time.Hour)
	}
	if dm.MetricsAddr == "" {
		dm.MetricsAddr = "127.0.0.1:9090"
	}
	if dm.MaxConnections == 0 {
		dm.MaxConnections = 16
	}
	if dm.Retry.Mode == "" {
		dm.Retry.Mode = RetryBackoffExponential
	}
	if dm.Retry.Initial == 0 {
		dm.Retry.Initial = Duration(time.Second)
	}
	if dm.Retry.Max == 0 {
		dm.Retry.Max = Duration(30 * time.Second)
	}
	if dm.Retry.MaxRetries == 0 {
		dm.Retry.MaxRetries = 3
	}
	return nil
}

// LoggingDefaultApplier handles slog settings.
type LoggingDefaultApplier struct{}

func (l *LoggingDefaultApplier) Domain() string { return "logging" }

func (l *LoggingDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	}
	return nil
}
