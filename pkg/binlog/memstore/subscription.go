package memstore

import (
	"context"
	"sync"
	"time"

	"git.home.luguber.info/inful/binlog/internal/metrics"
	"git.home.luguber.info/inful/binlog/pkg/binlog"
)

// subscription buffers deliveries in an unbounded queue so Push never waits
// on a slow reader.
type subscription struct {
	store *Store
	name  string

	mu     sync.Mutex
	queue  []binlog.Entry
	closed bool

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

func newSubscription(s *Store, name string) *subscription {
	return &subscription{
		store: s,
		name:  name,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

func (s *subscription) deliver(e binlog.Entry) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, e)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) Next(ctx context.Context, timeout time.Duration) (binlog.Entry, bool, error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return binlog.Entry{}, false, binlog.ErrClosed
		}
		if len(s.queue) > 0 {
			e := s.queue[0]
			s.queue[0] = binlog.Entry{}
			s.queue = s.queue[1:]
			s.mu.Unlock()
			s.store.recorder.IncDelivered(metrics.StoreMemory)
			return e, true, nil
		}
		s.mu.Unlock()

		if timeout == 0 {
			return binlog.Entry{}, false, nil
		}

		select {
		case <-s.wake:
		case <-s.done:
			return binlog.Entry{}, false, binlog.ErrClosed
		case <-deadline:
			return binlog.Entry{}, false, nil
		case <-ctx.Done():
			return binlog.Entry{}, false, ctx.Err()
		}
	}
}

// shutdown marks the subscription closed without touching the store.
func (s *subscription) shutdown() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.queue = nil
		s.mu.Unlock()
		close(s.done)
	})
}

func (s *subscription) Close() error {
	s.store.detach(s)
	s.shutdown()
	return nil
}
