// Package backend opens the store selected by configuration.
package backend

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/binlog/internal/config"
	"git.home.luguber.info/inful/binlog/internal/foundation/errors"
	"git.home.luguber.info/inful/binlog/internal/logfields"
	"git.home.luguber.info/inful/binlog/internal/metrics"
	"git.home.luguber.info/inful/binlog/pkg/binlog"
	"git.home.luguber.info/inful/binlog/pkg/binlog/memstore"
	"git.home.luguber.info/inful/binlog/pkg/binlog/natsstore"
	"git.home.luguber.info/inful/binlog/pkg/binlog/sqlitestore"
)

// Deps carries the ambient collaborators handed to every store.
type Deps struct {
	Logger   *slog.Logger
	Recorder metrics.Recorder
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// Open returns the store for kind. An empty kind selects cfg.DefaultBackend.
func Open(ctx context.Context, cfg *config.Config, kind config.Backend, deps Deps) (binlog.Store, error) {
	if kind == "" {
		kind = cfg.DefaultBackend
	}
	deps.logger().Debug("Opening backend", slog.String("backend", string(kind)))

	switch kind {
	case config.BackendDurable:
		return OpenDurable(cfg.Durable, deps)
	case config.BackendStream:
		return OpenStream(ctx, cfg.Stream, cfg.Durable.CompressionLevel, deps)
	case config.BackendMemory:
		return memstore.New(
			memstore.WithLogger(deps.logger()),
			memstore.WithRecorder(metrics.OrNoop(deps.Recorder)),
		), nil
	default:
		return nil, errors.ValidationError("unknown backend").
			WithContext("backend", string(kind)).
			Build()
	}
}

// OpenDurable opens the SQLite store described by c.
func OpenDurable(c config.DurableConfig, deps Deps) (*sqlitestore.Store, error) {
	codec, err := codecFor(c.Compression, c.CompressionLevel)
	if err != nil {
		return nil, err
	}
	opts := []sqlitestore.Option{
		sqlitestore.WithCodec(codec),
		sqlitestore.WithLogger(deps.logger()),
		sqlitestore.WithRecorder(metrics.OrNoop(deps.Recorder)),
	}
	if c.BusyTimeout > 0 {
		opts = append(opts, sqlitestore.WithBusyTimeout(c.BusyTimeout.Std()))
	}
	return sqlitestore.Open(c.Path, opts...)
}

// OpenStream connects to the NATS store described by c.
func OpenStream(ctx context.Context, c config.StreamConfig, level int, deps Deps) (*natsstore.Store, error) {
	codec, err := codecFor(c.Compression, level)
	if err != nil {
		return nil, err
	}
	storage := jetstream.FileStorage
	if c.Storage == config.StorageMemory {
		storage = jetstream.MemoryStorage
	}
	opts := []natsstore.Option{
		natsstore.WithStreamName(c.StreamName),
		natsstore.WithSubjectPrefix(c.SubjectPrefix),
		natsstore.WithCapacity(c.Capacity),
		natsstore.WithStorage(storage),
		natsstore.WithReplayFromStart(c.ReplayFromStart),
		natsstore.WithMaxAge(c.MaxAge.Std()),
		natsstore.WithBufferSize(c.BufferSize),
		natsstore.WithPublishTimeout(c.PublishTimeout.Std()),
		natsstore.WithCodec(codec),
		natsstore.WithLogger(deps.logger()),
		natsstore.WithRecorder(metrics.OrNoop(deps.Recorder)),
	}
	st, err := natsstore.Open(ctx, c.URL, opts...)
	if err != nil {
		deps.logger().Error("Stream store unavailable", logfields.URL(c.URL), logfields.Error(err))
		return nil, err
	}
	return st, nil
}

func codecFor(c config.Compression, level int) (binlog.Codec, error) {
	if c == config.CompressionZstd {
		return binlog.CodecByName(binlog.CodecZstd, level)
	}
	return binlog.CodecByName(binlog.CodecRaw, 0)
}
