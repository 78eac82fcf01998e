package memstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/binlog/pkg/binlog"
	"git.home.luguber.info/inful/binlog/pkg/binlog/storetest"
)

func openStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s := New(opts...)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRangeable(t *testing.T) {
	storetest.RunRangeable(t, func(t *testing.T) binlog.RangeableStore { return openStore(t) })
}

func TestSubscribeable(t *testing.T) {
	storetest.RunSubscribeable(t, func(t *testing.T) binlog.SubscribeableStore { return openStore(t) })
}

func TestCapacityDropsOldestPerName(t *testing.T) {
	s := openStore(t, WithCapacity(3))
	ctx := t.Context()

	storetest.PushSample(t, ctx, s, "capped")
	require.NoError(t, s.Push(ctx, binlog.NewEntry(1, "other", nil)))

	r, err := s.Range(binlog.Unbounded(), binlog.Unbounded(), binlog.Named("capped"))
	require.NoError(t, err)
	got, err := binlog.Collect(r.Iter(ctx))
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.EqualValues(t, 8, got[0].Timestamp)
	assert.EqualValues(t, 10, got[2].Timestamp)

	other, err := s.Range(binlog.Unbounded(), binlog.Unbounded(), binlog.Named("other"))
	require.NoError(t, err)
	n, err := other.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestCapacityEvictsByPushOrder(t *testing.T) {
	s := openStore(t, WithCapacity(2))
	ctx := t.Context()

	require.NoError(t, s.Push(ctx, binlog.NewEntry(10, "n", []byte{1})))
	require.NoError(t, s.Push(ctx, binlog.NewEntry(1, "n", []byte{2})))
	require.NoError(t, s.Push(ctx, binlog.NewEntry(5, "n", []byte{3})))

	r, err := s.Range(binlog.Unbounded(), binlog.Unbounded(), binlog.AnyName)
	require.NoError(t, err)
	got, err := binlog.Collect(r.Iter(ctx))
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, []byte{2}, got[0].Value)
	assert.Equal(t, []byte{3}, got[1].Value)
}

func TestSlowSubscriberDoesNotBlockPush(t *testing.T) {
	s := openStore(t)
	ctx := t.Context()

	sub, err := s.Subscribe(ctx, "burst")
	require.NoError(t, err)
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 10_000 {
			_ = s.Push(ctx, binlog.NewEntry(int64(i), "burst", nil))
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("push blocked on an idle subscriber")
	}

	for i := range 10_000 {
		e, ok, err := sub.Next(ctx, 0)
		require.NoError(t, err)
		require.True(t, ok)
		require.EqualValues(t, i, e.Timestamp)
	}
}

func TestClosedSubscriptionIsDetached(t *testing.T) {
	s := openStore(t)
	ctx := t.Context()

	sub, err := s.Subscribe(ctx, "detach")
	require.NoError(t, err)
	require.NoError(t, sub.Close())

	s.mu.RLock()
	defer s.mu.RUnlock()
	assert.Empty(t, s.subs)
}
