package daemon

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/binlog/internal/logfields"
	"git.home.luguber.info/inful/binlog/internal/metrics"
	"git.home.luguber.info/inful/binlog/pkg/binlog"
)

// Retention deletes entries older than a fixed age from a rangeable store.
type Retention struct {
	store        binlog.RangeableStore
	maxAgeMicros int64
	now          func() time.Time
	recorder     metrics.Recorder
	logger       *slog.Logger
}

// NewRetention builds a retention pass; maxAgeMicros <= 0 disables it.
func NewRetention(store binlog.RangeableStore, maxAgeMicros int64, recorder metrics.Recorder, logger *slog.Logger) *Retention {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retention{
		store:        store,
		maxAgeMicros: maxAgeMicros,
		now:          time.Now,
		recorder:     metrics.OrNoop(recorder),
		logger:       logger.With(logfields.Job("retention")),
	}
}

// Enabled reports whether the pass would delete anything.
func (r *Retention) Enabled() bool { return r.maxAgeMicros > 0 }

// Cutoff is the exclusive upper timestamp of entries removed by the next run.
func (r *Retention) Cutoff() int64 {
	return r.now().UnixMicro() - r.maxAgeMicros
}

// Run removes every entry with a timestamp before Cutoff.
func (r *Retention) Run(ctx context.Context) (int64, error) {
	if !r.Enabled() {
		return 0, nil
	}
	cutoff := r.Cutoff()
	start := time.Now()

	rng, err := r.store.Range(binlog.Unbounded(), binlog.Excluded(cutoff), binlog.AnyName)
	if err != nil {
		return 0, err
	}
	removed, err := rng.Remove(ctx)
	if err != nil {
		r.logger.Error("Retention pass failed", logfields.Timestamp(cutoff), logfields.Error(err))
		return 0, err
	}
	r.recorder.IncRetentionRun(removed)
	r.logger.Info("Retention pass complete",
		logfields.Timestamp(cutoff),
		logfields.Count(removed),
		logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))
	return removed, nil
}
