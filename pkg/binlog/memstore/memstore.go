// Package memstore implements a process-local binlog store that supports both
// range queries and subscriptions. It is meant for tests and for embedding
// where durability is not required.
package memstore

import (
	"context"
	"iter"
	"log/slog"
	"sort"
	"sync"
	"time"

	"git.home.luguber.info/inful/binlog/internal/logfields"
	"git.home.luguber.info/inful/binlog/internal/metrics"
	"git.home.luguber.info/inful/binlog/pkg/binlog"
)

type record struct {
	seq   uint64
	entry binlog.Entry
}

// Store keeps entries in memory, sorted by timestamp and then insertion
// order. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	closed   bool
	seq      uint64
	records  []record
	perName  map[string]int
	subs     map[string]map[*subscription]struct{}
	capacity int

	logger   *slog.Logger
	recorder metrics.Recorder
}

var (
	_ binlog.RangeableStore     = (*Store)(nil)
	_ binlog.SubscribeableStore = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithCapacity keeps at most n entries per name, dropping the oldest pushed
// first. Zero or negative means unlimited.
func WithCapacity(n int) Option {
	return func(s *Store) { s.capacity = n }
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
	return func(s *Store) { s.recorder = metrics.OrNoop(r) }
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		perName:  make(map[string]int),
		subs:     make(map[string]map[*subscription]struct{}),
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Push stores a copy of e and hands it to every subscriber of e.Name.
func (s *Store) Push(_ context.Context, e binlog.Entry) error {
	start := time.Now()
	e = e.Clone()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.recorder.ObservePush(metrics.StoreMemory, time.Since(start), false)
		return binlog.ErrClosed
	}

	s.seq++
	i := sort.Search(len(s.records), func(i int) bool { return s.records[i].entry.Timestamp > e.Timestamp })
	s.records = append(s.records, record{})
	copy(s.records[i+1:], s.records[i:])
	s.records[i] = record{seq: s.seq, entry: e}
	s.perName[e.Name]++
	if s.capacity > 0 && s.perName[e.Name] > s.capacity {
		s.evictOldest(e.Name)
	}

	for sub := range s.subs[e.Name] {
		sub.deliver(e.Clone())
	}
	s.mu.Unlock()

	s.recorder.ObservePush(metrics.StoreMemory, time.Since(start), true)
	return nil
}

// evictOldest drops the earliest pushed entry under name. Callers hold mu.
func (s *Store) evictOldest(name string) {
	idx := -1
	for i, r := range s.records {
		if r.entry.Name == name && (idx < 0 || r.seq < s.records[idx].seq) {
			idx = i
		}
	}
	if idx < 0 {
		return
	}
	s.records = append(s.records[:idx], s.records[idx+1:]...)
	s.perName[name]--
}

// Latest returns the entry under name with the highest timestamp, the most
// recently pushed one on ties.
func (s *Store) Latest(_ context.Context, name string) (binlog.Entry, bool, error) {
	start := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return binlog.Entry{}, false, binlog.ErrClosed
	}
	defer func() { s.recorder.ObserveQuery(metrics.StoreMemory, metrics.OpLatest, time.Since(start), true) }()

	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].entry.Name == name {
			return s.records[i].entry.Clone(), true, nil
		}
	}
	return binlog.Entry{}, false, nil
}

// Range returns a lazy handle over entries matching the bounds and name.
func (s *Store) Range(start, end binlog.Bound, name binlog.NameFilter) (binlog.Range, error) {
	q, err := binlog.NewQuery(start, end, name)
	if err != nil {
		return nil, err
	}
	return &memRange{store: s, query: q}, nil
}

// Subscribe registers a subscriber for name before returning, so every
// later push under name reaches it.
func (s *Store) Subscribe(_ context.Context, name string) (binlog.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, binlog.ErrClosed
	}

	sub := newSubscription(s, name)
	set, ok := s.subs[name]
	if !ok {
		set = make(map[*subscription]struct{})
		s.subs[name] = set
	}
	set[sub] = struct{}{}
	s.recorder.SetActiveSubscriptions(metrics.StoreMemory, s.activeLocked())
	s.logger.Debug("Subscribed",
		logfields.Store(metrics.StoreMemory),
		logfields.Name(name))
	return sub, nil
}

func (s *Store) detach(sub *subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.subs[sub.name]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(s.subs, sub.name)
		}
	}
	s.recorder.SetActiveSubscriptions(metrics.StoreMemory, s.activeLocked())
}

func (s *Store) activeLocked() int {
	n := 0
	for _, set := range s.subs {
		n += len(set)
	}
	return n
}

// Close drops all entries and closes every live subscription.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return binlog.ErrClosed
	}
	s.closed = true
	var live []*subscription
	for _, set := range s.subs {
		for sub := range set {
			live = append(live, sub)
		}
	}
	s.subs = make(map[string]map[*subscription]struct{})
	s.records = nil
	s.mu.Unlock()

	for _, sub := range live {
		sub.shutdown()
	}
	s.recorder.SetActiveSubscriptions(metrics.StoreMemory, 0)
	return nil
}

type memRange struct {
	store *Store
	query binlog.Query
}

func (r *memRange) Count(context.Context) (int64, error) {
	start := time.Now()
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, binlog.ErrClosed
	}

	var n int64
	for _, rec := range s.records {
		if r.query.Match(rec.entry) {
			n++
		}
	}
	s.recorder.ObserveQuery(metrics.StoreMemory, metrics.OpCount, time.Since(start), true)
	return n, nil
}

func (r *memRange) Remove(context.Context) (int64, error) {
	start := time.Now()
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, binlog.ErrClosed
	}

	kept := s.records[:0]
	var n int64
	for _, rec := range s.records {
		if r.query.Match(rec.entry) {
			s.perName[rec.entry.Name]--
			n++
			continue
		}
		kept = append(kept, rec)
	}
	clear(s.records[len(kept):])
	s.records = kept

	s.recorder.ObserveQuery(metrics.StoreMemory, metrics.OpRemove, time.Since(start), true)
	s.recorder.AddRemoved(metrics.StoreMemory, n)
	return n, nil
}

func (r *memRange) Iter(context.Context) iter.Seq2[binlog.Entry, error] {
	return func(yield func(binlog.Entry, error) bool) {
		start := time.Now()
		s := r.store
		s.mu.RLock()
		if s.closed {
			s.mu.RUnlock()
			yield(binlog.Entry{}, binlog.ErrClosed)
			return
		}
		var snapshot []binlog.Entry
		for _, rec := range s.records {
			if r.query.Match(rec.entry) {
				snapshot = append(snapshot, rec.entry.Clone())
			}
		}
		s.mu.RUnlock()
		s.recorder.ObserveQuery(metrics.StoreMemory, metrics.OpIter, time.Since(start), true)

		for _, e := range snapshot {
			if !yield(e, nil) {
				return
			}
		}
	}
}
