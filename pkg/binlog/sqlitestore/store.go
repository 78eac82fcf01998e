package sqlitestore

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/binlog/internal/foundation/errors"
	"git.home.luguber.info/inful/binlog/internal/logfields"
	"git.home.luguber.info/inful/binlog/internal/metrics"
	"git.home.luguber.info/inful/binlog/pkg/binlog"
)

const (
	// MemoryPath opens a private in-memory database.
	MemoryPath = ":memory:"

	// DefaultPageSize is the number of rows fetched per iteration page.
	DefaultPageSize = 1000

	// DefaultBusyTimeout is how long a connection waits on a locked database.
	DefaultBusyTimeout = 5 * time.Second
)

// Store is a durable binlog.RangeableStore backed by SQLite.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool

	path        string
	codec       binlog.Codec
	codecs      map[string]binlog.Codec
	pageSize    int
	busyTimeout time.Duration
	logger      *slog.Logger
	recorder    metrics.Recorder
}

var _ binlog.RangeableStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithCodec sets the codec used for new rows. Rows written with another
// built-in codec stay readable.
func WithCodec(c binlog.Codec) Option {
	return func(s *Store) {
		if c != nil {
			s.codec = c
		}
	}
}

// WithPageSize overrides the iteration page size.
func WithPageSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithBusyTimeout overrides the SQLite busy timeout.
func WithBusyTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.busyTimeout = d
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Store) {
		s.recorder = metrics.OrNoop(r)
	}
}

// Open opens or creates the database at path. Use MemoryPath for a private
// in-memory database.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:        path,
		codec:       binlog.RawCodec{},
		pageSize:    DefaultPageSize,
		busyTimeout: DefaultBusyTimeout,
		logger:      slog.Default(),
		recorder:    metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.codecs = map[string]binlog.Codec{
		binlog.CodecRaw:  binlog.RawCodec{},
		binlog.CodecZstd: binlog.NewZstdCodec(0),
	}
	s.codecs[s.codec.Name()] = s.codec

	db, err := sql.Open("sqlite", s.dsn())
	if err != nil {
		return nil, errors.Wrap(binlog.ErrConnection, err, "path", path)
	}
	if path == MemoryPath {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	s.db = db

	ctx, cancel := context.WithTimeout(context.Background(), s.busyTimeout+5*time.Second)
	defer cancel()
	if err := s.initialize(ctx); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		if errors.IsClassified(err) {
			return nil, err
		}
		return nil, errors.Wrap(binlog.ErrConnection, err, "path", path)
	}

	s.logger.Debug("Opened durable store",
		logfields.Store(metrics.StoreSQLite),
		logfields.Path(path),
		logfields.Codec(s.codec.Name()))
	return s, nil
}

func (s *Store) dsn() string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", s.busyTimeout.Milliseconds()))
	if s.path != MemoryPath {
		q.Add("_pragma", "journal_mode(WAL)")
		q.Add("_pragma", "synchronous(NORMAL)")
	}
	q.Add("_pragma", "foreign_keys(OFF)")

	sep := "?"
	if strings.Contains(s.path, "?") {
		sep = "&"
	}
	return s.path + sep + q.Encode()
}

// Path returns the database path the store was opened with.
func (s *Store) Path() string { return s.path }

// Push inserts e in its own transaction.
func (s *Store) Push(ctx context.Context, e binlog.Entry) (err error) {
	start := time.Now()
	defer func() { s.recorder.ObservePush(metrics.StoreSQLite, time.Since(start), err == nil) }()

	blob, err := s.codec.Encode(e.Value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return binlog.ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(binlog.ErrQuery, err, "op", "push")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO log (ts, name, codec, value) VALUES (?, ?, ?, ?)",
		e.Timestamp, e.Name, s.codec.Name(), blob,
	); err != nil {
		return errors.Wrap(binlog.ErrQuery, err, "op", "push", "name", e.Name)
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(binlog.ErrQuery, err, "op", "push", "name", e.Name)
	}
	return nil
}

// Latest returns the entry under name with the highest timestamp, the most
// recently inserted one on ties.
func (s *Store) Latest(ctx context.Context, name string) (e binlog.Entry, ok bool, err error) {
	start := time.Now()
	defer func() { s.recorder.ObserveQuery(metrics.StoreSQLite, metrics.OpLatest, time.Since(start), err == nil) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return binlog.Entry{}, false, binlog.ErrClosed
	}

	row := s.db.QueryRowContext(ctx,
		"SELECT id, ts, name, codec, value FROM log WHERE name = ? ORDER BY ts DESC, id DESC LIMIT 1", name)
	_, e, err = s.scanEntry(row)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		return binlog.Entry{}, false, nil
	case errors.IsClassified(err):
		return binlog.Entry{}, false, err
	case err != nil:
		return binlog.Entry{}, false, errors.Wrap(binlog.ErrQuery, err, "op", "latest", "name", name)
	}
	return e, true, nil
}

// Range returns a lazy handle over entries matching the bounds and name.
func (s *Store) Range(start, end binlog.Bound, name binlog.NameFilter) (binlog.Range, error) {
	q, err := binlog.NewQuery(start, end, name)
	if err != nil {
		return nil, err
	}
	return &rangeHandle{store: s, query: q}, nil
}

// Close closes the database. Subsequent calls return ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return binlog.ErrClosed
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return errors.Wrap(binlog.ErrConnection, err, "path", s.path)
	}
	return nil
}
