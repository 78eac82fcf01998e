package natsstore

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/binlog/internal/foundation/errors"
	"git.home.luguber.info/inful/binlog/internal/logfields"
	"git.home.luguber.info/inful/binlog/internal/metrics"
	"git.home.luguber.info/inful/binlog/pkg/binlog"
)

type result struct {
	entry    binlog.Entry
	err      error
	terminal bool
}

// subscription owns one ephemeral consumer and the goroutine reading it.
type subscription struct {
	store *Store
	id    string
	name  string
	iter  jetstream.MessagesContext

	results  chan result
	done     chan struct{}
	exited   chan struct{}
	lost     chan struct{}
	once     sync.Once
	lostOnce sync.Once

	mu      sync.Mutex
	closed  bool
	sticky  error
	lostErr error
}

func (s *Store) newSubscription(ctx context.Context, name string) (*subscription, error) {
	id := "binlog-" + uuid.NewString()
	policy := jetstream.DeliverNewPolicy
	if s.replayFromStart {
		policy = jetstream.DeliverAllPolicy
	}

	cons, err := s.stream.CreateConsumer(ctx, jetstream.ConsumerConfig{
		Name:              id,
		FilterSubject:     s.subject(name),
		DeliverPolicy:     policy,
		AckPolicy:         jetstream.AckNonePolicy,
		MemoryStorage:     true,
		InactiveThreshold: DefaultInactiveThreshold,
	})
	if err != nil {
		return nil, errors.Wrap(binlog.ErrConnection, err, "name", name)
	}

	it, err := cons.Messages(jetstream.PullMaxMessages(s.bufferSize))
	if err != nil {
		s.deleteConsumer(id)
		return nil, errors.Wrap(binlog.ErrConnection, err, "name", name)
	}

	sub := &subscription{
		store:   s,
		id:      id,
		name:    name,
		iter:    it,
		results: make(chan result, s.bufferSize),
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
		lost:    make(chan struct{}),
	}
	go sub.listen()
	return sub, nil
}

func (s *Store) deleteConsumer(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.publishTimeout)
	defer cancel()
	if err := s.stream.DeleteConsumer(ctx, id); err != nil && !stderrors.Is(err, jetstream.ErrConsumerNotFound) {
		s.logger.Debug("Consumer cleanup failed",
			logfields.SubscriptionID(id),
			logfields.Error(err))
	}
}

// listen forwards decoded messages until the iterator stops or fails.
func (sub *subscription) listen() {
	defer close(sub.exited)
	log := sub.store.logger.With(logfields.SubscriptionID(sub.id), logfields.Name(sub.name))

	for {
		msg, err := sub.iter.Next()
		if err != nil {
			switch {
			case stderrors.Is(err, jetstream.ErrMsgIteratorClosed):
				return
			case stderrors.Is(err, jetstream.ErrNoHeartbeat):
				log.Warn("Missed consumer heartbeat", logfields.Error(err))
				continue
			}
			log.Warn("Subscription listener stopped", logfields.Error(err))
			sub.send(result{err: errors.Wrap(binlog.ErrConnection, err, "name", sub.name), terminal: true})
			return
		}

		e, err := sub.store.decode(msg.Subject(), msg.Headers(), msg.Data())
		if err != nil {
			log.Warn("Undecodable entry", logfields.Subject(msg.Subject()), logfields.Error(err))
		}
		if !sub.send(result{entry: e, err: err}) {
			return
		}
	}
}

func (sub *subscription) send(r result) bool {
	select {
	case sub.results <- r:
		return true
	case <-sub.done:
		return false
	}
}

func (sub *subscription) Next(ctx context.Context, timeout time.Duration) (binlog.Entry, bool, error) {
	sub.mu.Lock()
	closed, sticky := sub.closed, sub.sticky
	sub.mu.Unlock()
	if closed {
		return binlog.Entry{}, false, binlog.ErrClosed
	}
	if sticky != nil {
		return binlog.Entry{}, false, sticky
	}
	if sub.store.nc.IsClosed() {
		sub.lose(sub.store.errConnectionClosed())
	}

	select {
	case r := <-sub.results:
		return sub.accept(r)
	case <-sub.lost:
		return sub.acceptLoss()
	default:
	}
	if timeout == 0 {
		return binlog.Entry{}, false, nil
	}

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case r := <-sub.results:
		return sub.accept(r)
	case <-sub.lost:
		return sub.acceptLoss()
	case <-sub.done:
		return binlog.Entry{}, false, binlog.ErrClosed
	case <-deadline:
		return binlog.Entry{}, false, nil
	case <-ctx.Done():
		return binlog.Entry{}, false, ctx.Err()
	}
}

func (sub *subscription) accept(r result) (binlog.Entry, bool, error) {
	if r.terminal {
		sub.mu.Lock()
		sub.sticky = r.err
		sub.mu.Unlock()
	}
	if r.err != nil {
		return binlog.Entry{}, false, r.err
	}
	sub.store.recorder.IncDelivered(metrics.StoreNATS)
	return r.entry, true, nil
}

// lose records that the connection is gone. The next Next reports err
// once buffered entries are drained.
func (sub *subscription) lose(err error) {
	sub.lostOnce.Do(func() {
		sub.mu.Lock()
		sub.lostErr = err
		sub.mu.Unlock()
		close(sub.lost)
	})
}

func (sub *subscription) acceptLoss() (binlog.Entry, bool, error) {
	select {
	case r := <-sub.results:
		return sub.accept(r)
	default:
	}
	sub.mu.Lock()
	err := sub.lostErr
	sub.mu.Unlock()
	return sub.accept(result{err: err, terminal: true})
}

// Close stops the iterator, waits for the listener and deletes the
// consumer. It is idempotent.
func (sub *subscription) Close() error {
	sub.once.Do(func() {
		sub.mu.Lock()
		sub.closed = true
		sub.mu.Unlock()

		close(sub.done)
		sub.iter.Stop()
		<-sub.exited

		sub.store.deleteConsumer(sub.id)
		sub.store.detach(sub)
	})
	return nil
}
