package sqlitestore

import (
	"context"
	"iter"
	"time"

	"git.home.luguber.info/inful/binlog/internal/foundation/errors"
	"git.home.luguber.info/inful/binlog/internal/logfields"
	"git.home.luguber.info/inful/binlog/internal/metrics"
	"git.home.luguber.info/inful/binlog/pkg/binlog"
)

type rangeHandle struct {
	store *Store
	query binlog.Query
}

// cursor is the (ts, id) of the last row of the previous page.
type cursor struct {
	ts int64
	id int64
}

func (r *rangeHandle) Count(ctx context.Context) (n int64, err error) {
	start := time.Now()
	defer func() { r.store.recorder.ObserveQuery(metrics.StoreSQLite, metrics.OpCount, time.Since(start), err == nil) }()

	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, binlog.ErrClosed
	}

	where, args := predicate(r.query)
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM log WHERE "+where, args...).Scan(&n); err != nil {
		return 0, errors.Wrap(binlog.ErrQuery, err, "op", metrics.OpCount, "query", r.query.String())
	}
	return n, nil
}

func (r *rangeHandle) Remove(ctx context.Context) (n int64, err error) {
	start := time.Now()
	defer func() { r.store.recorder.ObserveQuery(metrics.StoreSQLite, metrics.OpRemove, time.Since(start), err == nil) }()

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, binlog.ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(binlog.ErrQuery, err, "op", metrics.OpRemove)
	}
	defer func() { _ = tx.Rollback() }()

	where, args := predicate(r.query)
	res, err := tx.ExecContext(ctx, "DELETE FROM log WHERE "+where, args...)
	if err != nil {
		return 0, errors.Wrap(binlog.ErrQuery, err, "op", metrics.OpRemove, "query", r.query.String())
	}
	n, err = res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(binlog.ErrQuery, err, "op", metrics.OpRemove)
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(binlog.ErrQuery, err, "op", metrics.OpRemove)
	}

	s.recorder.AddRemoved(metrics.StoreSQLite, n)
	s.logger.Debug("Removed entries",
		logfields.Store(metrics.StoreSQLite),
		logfields.Query(r.query.String()),
		logfields.Count(n))
	return n, nil
}

func (r *rangeHandle) Iter(ctx context.Context) iter.Seq2[binlog.Entry, error] {
	return func(yield func(binlog.Entry, error) bool) {
		start := time.Now()
		ok := true
		defer func() { r.store.recorder.ObserveQuery(metrics.StoreSQLite, metrics.OpIter, time.Since(start), ok) }()

		highWater, err := r.store.highWater(ctx)
		if err != nil {
			ok = false
			yield(binlog.Entry{}, err)
			return
		}
		if highWater == 0 {
			return
		}

		var after *cursor
		for {
			page, err := r.store.page(ctx, r.query, highWater, after)
			if err != nil {
				ok = false
				yield(binlog.Entry{}, err)
				return
			}
			for _, row := range page {
				if !yield(row.entry, nil) {
					return
				}
			}
			if len(page) < r.store.pageSize {
				return
			}
			last := page[len(page)-1]
			after = &cursor{ts: last.entry.Timestamp, id: last.id}
		}
	}
}

type pageRow struct {
	id    int64
	entry binlog.Entry
}

// highWater returns the largest row id at the moment of the call. Ids are
// never reused, so rows above it were pushed later.
func (s *Store) highWater(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, binlog.ErrClosed
	}

	var maxID int64
	if err := s.db.QueryRowContext(ctx, "SELECT coalesce(max(id), 0) FROM log").Scan(&maxID); err != nil {
		return 0, errors.Wrap(binlog.ErrQuery, err, "op", metrics.OpIter)
	}
	return maxID, nil
}

// page reads the next page of rows after the cursor, fully materialized so
// that no statement stays open while the caller consumes it.
func (s *Store) page(ctx context.Context, q binlog.Query, highWater int64, after *cursor) ([]pageRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, binlog.ErrClosed
	}

	where, args := predicate(q)
	where += " AND id <= ?"
	args = append(args, highWater)
	if after != nil {
		where += " AND (ts > ? OR (ts = ? AND id > ?))"
		args = append(args, after.ts, after.ts, after.id)
	}
	args = append(args, s.pageSize)

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, ts, name, codec, value FROM log WHERE "+where+" ORDER BY ts, id LIMIT ?", args...)
	if err != nil {
		return nil, errors.Wrap(binlog.ErrQuery, err, "op", metrics.OpIter, "query", q.String())
	}
	defer rows.Close()

	page := make([]pageRow, 0, s.pageSize)
	for rows.Next() {
		id, e, err := s.scanEntry(rows)
		if err != nil {
			if errors.IsClassified(err) {
				return nil, err
			}
			return nil, errors.Wrap(binlog.ErrQuery, err, "op", metrics.OpIter)
		}
		page = append(page, pageRow{id: id, entry: e})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(binlog.ErrQuery, err, "op", metrics.OpIter)
	}
	return page, nil
}
