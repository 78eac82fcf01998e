package natsstore

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/binlog/internal/foundation/errors"
	"git.home.luguber.info/inful/binlog/internal/logfields"
	"git.home.luguber.info/inful/binlog/internal/metrics"
	"git.home.luguber.info/inful/binlog/pkg/binlog"
)

// Defaults.
const (
	DefaultStreamName        = "BINLOG"
	DefaultSubjectPrefix     = "binlog.v0"
	DefaultBufferSize        = 64
	DefaultPublishTimeout    = 5 * time.Second
	DefaultInactiveThreshold = 5 * time.Minute

	// Unlimited disables per-name retention limits.
	Unlimited = -1
)

// Store is a binlog.SubscribeableStore on a JetStream stream.
type Store struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	stream jetstream.Stream

	streamName      string
	prefix          string
	capacity        int64
	maxAge          time.Duration
	storage         jetstream.StorageType
	replayFromStart bool
	bufferSize      int
	publishTimeout  time.Duration
	codec           binlog.Codec
	codecs          map[string]binlog.Codec
	connOpts        []nats.Option
	logger          *slog.Logger
	recorder        metrics.Recorder

	mu     sync.Mutex
	closed bool
	subs   map[*subscription]struct{}
}

var _ binlog.SubscribeableStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithCapacity keeps at most n entries per name; older entries are
// discarded. Zero or negative means unlimited.
func WithCapacity(n int64) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		} else {
			s.capacity = Unlimited
		}
	}
}

// WithStreamName sets the JetStream stream name.
func WithStreamName(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.streamName = name
		}
	}
}

// WithSubjectPrefix sets the subject prefix. Names are mapped to
// prefix.<token>.
func WithSubjectPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithMaxAge discards entries older than d. Zero keeps them forever.
func WithMaxAge(d time.Duration) Option {
	return func(s *Store) { s.maxAge = d }
}

// WithStorage selects file or memory storage for the stream.
func WithStorage(st jetstream.StorageType) Option {
	return func(s *Store) { s.storage = st }
}

// WithReplayFromStart makes new subscriptions start at the oldest retained
// entry instead of the next pushed one.
func WithReplayFromStart(v bool) Option {
	return func(s *Store) { s.replayFromStart = v }
}

// WithBufferSize sets how many decoded entries a subscription buffers ahead
// of Next.
func WithBufferSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.bufferSize = n
		}
	}
}

// WithPublishTimeout bounds how long Push waits for the server ack.
func WithPublishTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

// WithCodec sets the codec for new entries. Entries written with another
// built-in codec stay readable.
func WithCodec(c binlog.Codec) Option {
	return func(s *Store) {
		if c != nil {
			s.codec = c
		}
	}
}

// WithConnOptions passes extra options to nats.Connect.
func WithConnOptions(opts ...nats.Option) Option {
	return func(s *Store) { s.connOpts = append(s.connOpts, opts...) }
}

// WithConn adopts an existing connection instead of dialing. The store owns
// it from then on and closes it on Close.
func WithConn(nc *nats.Conn) Option {
	return func(s *Store) { s.nc = nc }
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

// Open connects to url and creates or updates the backing stream.
func Open(ctx context.Context, url string, opts ...Option) (*Store, error) {
	s := &Store{
		streamName:     DefaultStreamName,
		prefix:         DefaultSubjectPrefix,
		capacity:       Unlimited,
		storage:        jetstream.FileStorage,
		bufferSize:     DefaultBufferSize,
		publishTimeout: DefaultPublishTimeout,
		codec:          binlog.RawCodec{},
		logger:         slog.Default(),
		recorder:       metrics.NoopRecorder{},
		subs:           make(map[*subscription]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.codecs = map[string]binlog.Codec{
		binlog.CodecRaw:  binlog.RawCodec{},
		binlog.CodecZstd: binlog.NewZstdCodec(0),
	}
	s.codecs[s.codec.Name()] = s.codec

	if s.nc == nil {
		connOpts := append([]nats.Option{nats.Name("binlog")}, s.connOpts...)
		nc, err := nats.Connect(url, connOpts...)
		if err != nil {
			return nil, errors.Wrap(binlog.ErrConnection, err, "url", logfields.RedactURL(url))
		}
		s.nc = nc
	}

	js, err := jetstream.New(s.nc)
	if err != nil {
		s.nc.Close()
		return nil, errors.Wrap(binlog.ErrConnection, err, "url", logfields.RedactURL(url))
	}
	s.js = js

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:              s.streamName,
		Description:       "binlog entries",
		Subjects:          []string{s.prefix + ".>"},
		Retention:         jetstream.LimitsPolicy,
		Discard:           jetstream.DiscardOld,
		MaxMsgsPerSubject: s.capacity,
		MaxAge:            s.maxAge,
		Storage:           s.storage,
	})
	if err != nil {
		s.nc.Close()
		return nil, errors.Wrap(binlog.ErrConnection, err, "stream", s.streamName)
	}
	s.stream = stream
	s.watchConnection()

	s.logger.Info("Stream store ready",
		logfields.Store(metrics.StoreNATS),
		logfields.URL(s.nc.ConnectedUrlRedacted()),
		logfields.Stream(s.streamName),
		slog.Int64("capacity", s.capacity))
	return s, nil
}

// watchConnection fails every live subscription once the connection is
// closed for good. Reconnects are handled by nats.go and are not reported.
func (s *Store) watchConnection() {
	ch := s.nc.StatusChanged(nats.CLOSED)
	go func() {
		<-ch
		s.connectionClosed()
	}()
}

func (s *Store) connectionClosed() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	live := make([]*subscription, 0, len(s.subs))
	for sub := range s.subs {
		live = append(live, sub)
	}
	s.mu.Unlock()

	s.logger.Error("Stream connection closed",
		logfields.Store(metrics.StoreNATS),
		logfields.Stream(s.streamName),
		slog.Int("subscriptions", len(live)))
	for _, sub := range live {
		sub.lose(s.errConnectionClosed())
	}
}

func (s *Store) errConnectionClosed() error {
	return errors.Wrap(binlog.ErrConnection, nats.ErrConnectionClosed, "stream", s.streamName)
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Push publishes e and waits for the stream to store it.
func (s *Store) Push(ctx context.Context, e binlog.Entry) (err error) {
	start := time.Now()
	defer func() { s.recorder.ObservePush(metrics.StoreNATS, time.Since(start), err == nil) }()

	if s.isClosed() {
		return binlog.ErrClosed
	}
	msg, err := s.encode(e)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()
	if _, err := s.js.PublishMsg(ctx, msg, jetstream.WithExpectStream(s.streamName)); err != nil {
		if s.isClosed() {
			return binlog.ErrClosed
		}
		return errors.Wrap(binlog.ErrConnection, err, "subject", msg.Subject)
	}
	return nil
}

// Latest returns the last entry stored under name.
func (s *Store) Latest(ctx context.Context, name string) (e binlog.Entry, ok bool, err error) {
	start := time.Now()
	defer func() { s.recorder.ObserveQuery(metrics.StoreNATS, metrics.OpLatest, time.Since(start), err == nil) }()

	if s.isClosed() {
		return binlog.Entry{}, false, binlog.ErrClosed
	}

	raw, err := s.stream.GetLastMsgForSubject(ctx, s.subject(name))
	if err != nil {
		if stderrors.Is(err, jetstream.ErrMsgNotFound) {
			return binlog.Entry{}, false, nil
		}
		return binlog.Entry{}, false, errors.Wrap(binlog.ErrConnection, err, "name", name)
	}
	e, err = s.decode(raw.Subject, raw.Header, raw.Data)
	if err != nil {
		return binlog.Entry{}, false, err
	}
	return e, true, nil
}

// Subscribe creates a consumer for name and starts its listener. The
// consumer's start position is fixed when this returns, so every entry
// pushed afterwards is delivered.
func (s *Store) Subscribe(ctx context.Context, name string) (binlog.Subscription, error) {
	if s.isClosed() {
		return nil, binlog.ErrClosed
	}

	sub, err := s.newSubscription(ctx, name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = sub.Close()
		return nil, binlog.ErrClosed
	}
	s.subs[sub] = struct{}{}
	active := len(s.subs)
	s.mu.Unlock()

	s.recorder.SetActiveSubscriptions(metrics.StoreNATS, active)
	s.logger.Debug("Subscribed",
		logfields.Store(metrics.StoreNATS),
		logfields.Name(name),
		logfields.SubscriptionID(sub.id))
	return sub, nil
}

func (s *Store) detach(sub *subscription) {
	s.mu.Lock()
	delete(s.subs, sub)
	active := len(s.subs)
	s.mu.Unlock()
	s.recorder.SetActiveSubscriptions(metrics.StoreNATS, active)
}

// Close closes every live subscription and drains the connection.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return binlog.ErrClosed
	}
	s.closed = true
	live := make([]*subscription, 0, len(s.subs))
	for sub := range s.subs {
		live = append(live, sub)
	}
	s.mu.Unlock()

	for _, sub := range live {
		_ = sub.Close()
	}

	if err := s.nc.Drain(); err != nil {
		s.nc.Close()
		if !stderrors.Is(err, nats.ErrConnectionClosed) {
			return errors.Wrap(binlog.ErrConnection, err)
		}
	}
	return nil
}
