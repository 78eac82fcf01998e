package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	"git.home.luguber.info/inful/binlog/internal/foundation/errors"
	"git.home.luguber.info/inful/binlog/pkg/binlog"
)

const schemaVersion = "1"

const schema = `
CREATE TABLE IF NOT EXISTS log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts INTEGER NOT NULL,
	name TEXT NOT NULL,
	codec TEXT NOT NULL,
	value BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_log_name_ts ON log(name, ts);
CREATE INDEX IF NOT EXISTS idx_log_ts ON log(ts);
CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

func (s *Store) initialize(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO meta (key, value) VALUES ('schema_version', ?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	var version string
	if err := tx.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = 'schema_version'").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return errors.Wrap(binlog.ErrQuery, fmt.Errorf("unsupported schema version %q", version),
			"want", schemaVersion)
	}
	return tx.Commit()
}

// predicate renders q as a SQL condition over the log table. It always
// returns a condition so callers can append further clauses with AND.
func predicate(q binlog.Query) (string, []any) {
	clause := "1=1"
	var args []any

	if ts, ok := q.Start.Timestamp(); ok {
		if q.Start.Kind() == binlog.BoundExcluded {
			clause += " AND ts > ?"
		} else {
			clause += " AND ts >= ?"
		}
		args = append(args, ts)
	}
	if ts, ok := q.End.Timestamp(); ok {
		if q.End.Kind() == binlog.BoundExcluded {
			clause += " AND ts < ?"
		} else {
			clause += " AND ts <= ?"
		}
		args = append(args, ts)
	}
	if name, ok := q.Name.Name(); ok {
		clause += " AND name = ?"
		args = append(args, name)
	}
	return clause, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanEntry reads one (id, ts, name, codec, value) row.
func (s *Store) scanEntry(row rowScanner) (int64, binlog.Entry, error) {
	var (
		id        int64
		e         binlog.Entry
		codecName string
		blob      []byte
	)
	if err := row.Scan(&id, &e.Timestamp, &e.Name, &codecName, &blob); err != nil {
		return 0, binlog.Entry{}, err
	}
	codec, ok := s.codecs[codecName]
	if !ok {
		return 0, binlog.Entry{}, errors.Wrap(binlog.ErrEncoding,
			fmt.Errorf("row %d written with unknown codec %q", id, codecName), "id", id)
	}
	value, err := codec.Decode(blob)
	if err != nil {
		return 0, binlog.Entry{}, err
	}
	e.Value = value
	return id, e, nil
}

var _ rowScanner = (*sql.Row)(nil)
