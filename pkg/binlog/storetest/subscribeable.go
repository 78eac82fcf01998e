package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/binlog/pkg/binlog"
)

// DeliveryTimeout bounds how long the suite waits for an expected entry.
const DeliveryTimeout = 5 * time.Second

func subscribe(t *testing.T, ctx context.Context, s binlog.SubscribeableStore, name string) binlog.Subscription {
	t.Helper()
	sub, err := s.Subscribe(ctx, name)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })
	return sub
}

func next(t *testing.T, ctx context.Context, sub binlog.Subscription) binlog.Entry {
	t.Helper()
	e, ok, err := sub.Next(ctx, DeliveryTimeout)
	require.NoError(t, err)
	require.True(t, ok, "no entry delivered within %s", DeliveryTimeout)
	return e
}

// RunSubscribeable checks live subscription semantics. It includes RunStore.
func RunSubscribeable(t *testing.T, open func(t *testing.T) binlog.SubscribeableStore) {
	RunStore(t, func(t *testing.T) binlog.Store { return open(t) })

	t.Run("pubsub", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()
		sub := subscribe(t, ctx, s, "test_pubsub")

		// No settling delay: Subscribe guarantees the listener is attached.
		PushSample(t, ctx, s, "test_pubsub")

		got := make([]binlog.Entry, 0, SampleSize)
		for range SampleSize {
			got = append(got, next(t, ctx, sub))
		}
		RequireSample(t, got, "test_pubsub")
	})

	t.Run("timeout yields no entry", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()
		sub := subscribe(t, ctx, s, "quiet")

		start := time.Now()
		_, ok, err := sub.Next(ctx, 150*time.Millisecond)
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.False(t, ok)
		assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
		assert.Less(t, elapsed, 3*time.Second)
	})

	t.Run("zero timeout polls", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()
		sub := subscribe(t, ctx, s, "poll")

		_, ok, err := sub.Next(ctx, 0)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("no cross leak", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()
		sub := subscribe(t, ctx, s, "X")

		require.NoError(t, s.Push(ctx, binlog.NewEntry(1, "Y", []byte{1})))
		require.NoError(t, s.Push(ctx, binlog.NewEntry(2, "X", []byte{2})))

		got := next(t, ctx, sub)
		assert.True(t, binlog.NewEntry(2, "X", []byte{2}).Equal(got), "got %v", got)

		_, ok, err := sub.Next(ctx, 100*time.Millisecond)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("no retroactive delivery", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()

		require.NoError(t, s.Push(ctx, binlog.NewEntry(1, "late", []byte{1})))
		sub := subscribe(t, ctx, s, "late")
		require.NoError(t, s.Push(ctx, binlog.NewEntry(2, "late", []byte{2})))

		got := next(t, ctx, sub)
		assert.EqualValues(t, 2, got.Timestamp)
	})

	t.Run("fan out", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()
		a := subscribe(t, ctx, s, "fan")
		b := subscribe(t, ctx, s, "fan")

		e := binlog.NewEntry(42, "fan", []byte{4, 2})
		require.NoError(t, s.Push(ctx, e))

		assert.True(t, e.Equal(next(t, ctx, a)))
		assert.True(t, e.Equal(next(t, ctx, b)))
	})

	t.Run("per producer order", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()
		sub := subscribe(t, ctx, s, "ordered")

		const producers, perProducer = 3, 20
		var wg sync.WaitGroup
		for p := range producers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range perProducer {
					assert.NoError(t, s.Push(ctx, binlog.NewEntry(int64(i), "ordered", []byte{byte(p), byte(i)})))
				}
			}()
		}
		wg.Wait()

		last := map[byte]int{}
		for range producers * perProducer {
			e := next(t, ctx, sub)
			p, i := e.Value[0], int(e.Value[1])
			if prev, seen := last[p]; seen {
				assert.Greater(t, i, prev, "producer %d delivered out of order", p)
			}
			last[p] = i
		}
		assert.Len(t, last, producers)
	})

	t.Run("close unblocks next", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()
		sub, err := s.Subscribe(ctx, "blocked")
		require.NoError(t, err)

		done := make(chan error, 1)
		go func() {
			_, _, err := sub.Next(ctx, binlog.NoTimeout)
			done <- err
		}()

		time.Sleep(50 * time.Millisecond)
		require.NoError(t, sub.Close())

		select {
		case err := <-done:
			assert.ErrorIs(t, err, binlog.ErrClosed)
		case <-time.After(DeliveryTimeout):
			t.Fatal("Next did not return after Close")
		}

		_, _, err = sub.Next(ctx, 0)
		assert.ErrorIs(t, err, binlog.ErrClosed)
		assert.NoError(t, sub.Close())
	})

	t.Run("context cancellation", func(t *testing.T) {
		s := open(t)
		sub := subscribe(t, t.Context(), s, "cancel")

		ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
		defer cancel()
		_, ok, err := sub.Next(ctx, binlog.NoTimeout)
		assert.False(t, ok)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("store close closes subscriptions", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()
		sub, err := s.Subscribe(ctx, "owned")
		require.NoError(t, err)

		require.NoError(t, s.Close())

		_, _, err = sub.Next(ctx, time.Second)
		assert.ErrorIs(t, err, binlog.ErrClosed)
		_, err = s.Subscribe(ctx, "owned")
		assert.ErrorIs(t, err, binlog.ErrClosed)
	})
}
