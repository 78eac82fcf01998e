package daemon

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"sync/atomic"

	"git.home.luguber.info/inful/binlog/internal/foundation/errors"
	"git.home.luguber.info/inful/binlog/internal/logfields"
	"git.home.luguber.info/inful/binlog/internal/metrics"
	"git.home.luguber.info/inful/binlog/internal/retry"
	"git.home.luguber.info/inful/binlog/pkg/binlog"
)

// ArchiverState describes where an archiver is in its lifecycle.
type ArchiverState int32

const (
	ArchiverStarting ArchiverState = iota
	ArchiverRunning
	ArchiverStopped
	ArchiverFailed
)

func (s ArchiverState) String() string {
	switch s {
	case ArchiverStarting:
		return "starting"
	case ArchiverRunning:
		return "running"
	case ArchiverStopped:
		return "stopped"
	case ArchiverFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Archiver mirrors every entry published under one name on a
// subscribeable store into a second store.
type Archiver struct {
	name     string
	source   binlog.SubscribeableStore
	sink     binlog.Store
	policy   retry.Policy
	recorder metrics.Recorder
	logger   *slog.Logger

	state    atomic.Int32
	archived atomic.Int64
	lastErr  atomic.Pointer[error]
}

// NewArchiver wires an archiver for name. It does nothing until Run.
func NewArchiver(name string, source binlog.SubscribeableStore, sink binlog.Store, policy retry.Policy, recorder metrics.Recorder, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		name:     name,
		source:   source,
		sink:     sink,
		policy:   policy,
		recorder: metrics.OrNoop(recorder),
		logger:   logger.With(logfields.Name(name), logfields.Job("archive")),
	}
}

// Subscribe opens the live subscription. Entries pushed after it returns
// are guaranteed to reach Run.
func (a *Archiver) Subscribe(ctx context.Context) (binlog.Subscription, error) {
	sub, err := a.source.Subscribe(ctx, a.name)
	if err != nil {
		a.fail(err)
		return nil, err
	}
	return sub, nil
}

// Run copies entries from sub into the sink until ctx ends or the
// subscription fails. It always closes sub.
func (a *Archiver) Run(ctx context.Context, sub binlog.Subscription) error {
	defer func() { _ = sub.Close() }()
	a.state.Store(int32(ArchiverRunning))
	a.logger.Info("Archiver started")

	for {
		e, ok, err := sub.Next(ctx, binlog.NoTimeout)
		switch {
		case err != nil && ctx.Err() != nil:
			a.state.Store(int32(ArchiverStopped))
			a.logger.Info("Archiver stopped", logfields.Count(a.archived.Load()))
			return nil
		case stdErrors.Is(err, binlog.ErrEncoding):
			// One undecodable message; the subscription keeps delivering.
			a.recorder.IncArchived(a.name, false)
			a.logger.Warn("Skipping undecodable entry", logfields.Error(err))
			continue
		case err != nil:
			a.fail(err)
			return err
		case !ok:
			continue
		}

		err = a.policy.Do(ctx, "archive "+a.name, func(ctx context.Context) error {
			return a.sink.Push(ctx, e)
		}, transient)
		a.recorder.IncArchived(a.name, err == nil)
		if err != nil {
			if ctx.Err() != nil {
				a.state.Store(int32(ArchiverStopped))
				return nil
			}
			a.logger.Error("Dropping entry after failed archive",
				logfields.Timestamp(e.Timestamp),
				logfields.Error(err))
			continue
		}
		a.archived.Add(1)
	}
}

func (a *Archiver) fail(err error) {
	a.lastErr.Store(&err)
	a.state.Store(int32(ArchiverFailed))
	a.logger.Error("Archiver failed", logfields.Error(err))
}

// Name returns the archived entry name.
func (a *Archiver) Name() string { return a.name }

// State reports the current lifecycle state.
func (a *Archiver) State() ArchiverState { return ArchiverState(a.state.Load()) }

// Archived counts entries copied so far.
func (a *Archiver) Archived() int64 { return a.archived.Load() }

// Err returns the error that failed the archiver, if any.
func (a *Archiver) Err() error {
	if p := a.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

// transient reports whether a sink error is worth retrying. Unclassified
// errors get the benefit of the doubt; failed statements are retried since
// SQLite reports lock contention that way.
func transient(err error) bool {
	if !errors.IsClassified(err) {
		return true
	}
	return errors.CanRetry(err) || stdErrors.Is(err, binlog.ErrQuery)
}
