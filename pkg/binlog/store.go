package binlog

import (
	"context"
	"iter"
	"time"
)

// NoTimeout makes Subscription.Next block until an entry arrives, the
// subscription closes, or the context is cancelled.
const NoTimeout time.Duration = -1

// Store is the capability every backend offers.
type Store interface {
	// Push appends e. Once Push returns, e is visible to every Range,
	// Subscribe and Latest issued afterwards on the same store.
	Push(ctx context.Context, e Entry) error

	// Latest returns the most recent entry pushed under name. ok is false
	// when there is none.
	Latest(ctx context.Context, name string) (e Entry, ok bool, err error)

	// Close releases the store's connection. Further calls fail with
	// ErrClosed.
	Close() error
}

// RangeableStore supports historical queries.
type RangeableStore interface {
	Store

	// Range builds a lazy query handle. It performs no I/O; it only
	// validates the bounds and fails with ErrBadRange.
	Range(start, end Bound, name NameFilter) (Range, error)
}

// SubscribeableStore supports live subscriptions.
type SubscribeableStore interface {
	Store

	// Subscribe attaches a listener for name. When it returns, every entry
	// pushed under name afterwards is delivered to the subscription.
	Subscribe(ctx context.Context, name string) (Subscription, error)
}

// Range executes a query against the current store state. Each method runs
// independently.
type Range interface {
	Count(ctx context.Context) (int64, error)

	// Iter yields matching entries by ascending timestamp, ties in insertion
	// order. Each pass over the sequence re-runs the query and sees a
	// snapshot taken when the pass begins.
	Iter(ctx context.Context) iter.Seq2[Entry, error]

	// Remove deletes every matching entry and returns how many were removed.
	Remove(ctx context.Context) (int64, error)
}

// Subscription is a single-pass, blocking cursor over entries of one name.
type Subscription interface {
	// Next waits up to timeout for the next entry. A negative timeout
	// (NoTimeout) waits forever and zero polls. On timeout it returns
	// ok == false with a nil error.
	Next(ctx context.Context, timeout time.Duration) (e Entry, ok bool, err error)

	// Close detaches the listener. It is safe to call while Next is
	// blocked, and more than once.
	Close() error
}

// Collect drains a range iterator into a slice, stopping at the first error.
func Collect(seq iter.Seq2[Entry, error]) ([]Entry, error) {
	var out []Entry
	for e, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, nil
}

// AsRangeable returns s as a RangeableStore, or ErrNotRangeable.
func AsRangeable(s Store) (RangeableStore, error) {
	if r, ok := s.(RangeableStore); ok {
		return r, nil
	}
	return nil, ErrNotRangeable
}

// AsSubscribeable returns s as a SubscribeableStore, or ErrNotSubscribeable.
func AsSubscribeable(s Store) (SubscribeableStore, error) {
	if r, ok := s.(SubscribeableStore); ok {
		return r, nil
	}
	return nil, ErrNotSubscribeable
}
