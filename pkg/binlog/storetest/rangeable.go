package storetest

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/binlog/pkg/binlog"
)

var all = [2]binlog.Bound{binlog.Unbounded(), binlog.Unbounded()}

// RunRangeable checks range query semantics. It includes RunStore.
func RunRangeable(t *testing.T, open func(t *testing.T) binlog.RangeableStore) {
	RunStore(t, func(t *testing.T) binlog.Store { return open(t) })

	t.Run("remove", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()
		PushSample(t, ctx, s, "test_remove")

		assert.EqualValues(t, SampleSize, count(t, ctx, s, all[0], all[1], binlog.AnyName))
		assert.EqualValues(t, 9, remove(t, ctx, s, binlog.Included(2), binlog.Unbounded(), binlog.AnyName))
		assert.EqualValues(t, 1, count(t, ctx, s, all[0], all[1], binlog.AnyName))
		assert.EqualValues(t, 1, remove(t, ctx, s, all[0], all[1], binlog.Named("test_remove")))
		assert.EqualValues(t, 0, count(t, ctx, s, all[0], all[1], binlog.AnyName))
		assert.EqualValues(t, 0, remove(t, ctx, s, all[0], all[1], binlog.Named("test_remove")))
	})

	t.Run("orders scenario", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()

		require.NoError(t, s.Push(ctx, binlog.NewEntry(1, "orders", []byte{1, 2, 3})))
		for i := 2; i <= 10; i++ {
			require.NoError(t, s.Push(ctx, SampleEntry(i, "orders")))
		}

		assert.EqualValues(t, 10, count(t, ctx, s, all[0], all[1], binlog.AnyName))
		assert.EqualValues(t, 10, count(t, ctx, s, all[0], all[1], binlog.Named("orders")))
		assert.EqualValues(t, 9, remove(t, ctx, s, binlog.Included(2), binlog.Unbounded(), binlog.AnyName))
		assert.EqualValues(t, 1, count(t, ctx, s, all[0], all[1], binlog.AnyName))
		assert.EqualValues(t, 1, remove(t, ctx, s, all[0], all[1], binlog.Named("orders")))
		assert.EqualValues(t, 0, count(t, ctx, s, all[0], all[1], binlog.AnyName))
	})

	t.Run("iter", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()
		PushSample(t, ctx, s, "test_iter")

		RequireSample(t, collect(t, ctx, s, all[0], all[1], binlog.AnyName), "test_iter")
	})

	t.Run("iter orders by timestamp then insertion", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()

		pushed := []binlog.Entry{
			binlog.NewEntry(3, "a", []byte{1}),
			binlog.NewEntry(1, "b", []byte{2}),
			binlog.NewEntry(3, "a", []byte{3}),
			binlog.NewEntry(-4, "c", nil),
			binlog.NewEntry(2, "a", []byte{5}),
			binlog.NewEntry(3, "b", []byte{6}),
		}
		for _, e := range pushed {
			require.NoError(t, s.Push(ctx, e))
		}

		got := collect(t, ctx, s, all[0], all[1], binlog.AnyName)
		want := []binlog.Entry{pushed[3], pushed[1], pushed[4], pushed[0], pushed[2], pushed[5]}
		require.Len(t, got, len(want))
		for i := range want {
			assert.Truef(t, want[i].Equal(got[i]), "position %d: want %v, got %v", i, want[i], got[i])
		}
	})

	t.Run("iter is restartable", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()
		PushSample(t, ctx, s, "restart")

		r, err := s.Range(binlog.Included(3), binlog.Included(7), binlog.AnyName)
		require.NoError(t, err)
		seq := r.Iter(ctx)

		first, err := binlog.Collect(seq)
		require.NoError(t, err)
		second, err := binlog.Collect(seq)
		require.NoError(t, err)

		require.Len(t, first, 5)
		require.Len(t, second, 5)
		for i := range first {
			assert.True(t, first[i].Equal(second[i]))
		}
	})

	t.Run("iter is a snapshot", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()
		PushSample(t, ctx, s, "snapshot")

		r, err := s.Range(all[0], all[1], binlog.AnyName)
		require.NoError(t, err)

		seen := 0
		for e, err := range r.Iter(ctx) {
			require.NoError(t, err)
			seen++
			// Pushing from inside the loop must not deadlock or leak into this pass.
			require.NoError(t, s.Push(ctx, binlog.NewEntry(e.Timestamp+100, "snapshot", nil)))
		}
		assert.Equal(t, SampleSize, seen)
		assert.EqualValues(t, 2*SampleSize, count(t, ctx, s, all[0], all[1], binlog.AnyName))
	})

	t.Run("iter stops early", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()
		PushSample(t, ctx, s, "early")

		r, err := s.Range(all[0], all[1], binlog.AnyName)
		require.NoError(t, err)
		for _, err := range r.Iter(ctx) {
			require.NoError(t, err)
			break
		}
		assert.EqualValues(t, SampleSize, remove(t, ctx, s, all[0], all[1], binlog.AnyName))
	})

	t.Run("bounds", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()
		PushSample(t, ctx, s, "bounds")

		tests := []struct {
			name       string
			start, end binlog.Bound
			want       int64
		}{
			{"all", binlog.Unbounded(), binlog.Unbounded(), 10},
			{"from 2", binlog.Included(2), binlog.Unbounded(), 9},
			{"after 2", binlog.Excluded(2), binlog.Unbounded(), 8},
			{"through 4", binlog.Unbounded(), binlog.Included(4), 4},
			{"before 4", binlog.Unbounded(), binlog.Excluded(4), 3},
			{"exclusive both", binlog.Excluded(1), binlog.Excluded(3), 1},
			{"single point", binlog.Included(5), binlog.Included(5), 1},
			{"outside", binlog.Included(20), binlog.Unbounded(), 0},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				assert.Equal(t, tt.want, count(t, ctx, s, tt.start, tt.end, binlog.AnyName))
				assert.Len(t, collect(t, ctx, s, tt.start, tt.end, binlog.AnyName), int(tt.want))
			})
		}
	})

	t.Run("bad range", func(t *testing.T) {
		s := open(t)

		_, err := s.Range(binlog.Included(5), binlog.Included(2), binlog.AnyName)
		assert.ErrorIs(t, err, binlog.ErrBadRange)
		_, err = s.Range(binlog.Included(3), binlog.Excluded(3), binlog.AnyName)
		assert.ErrorIs(t, err, binlog.ErrBadRange)
	})

	t.Run("name filter", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()
		PushSample(t, ctx, s, "x")
		PushSample(t, ctx, s, "y")

		assert.EqualValues(t, 2*SampleSize, count(t, ctx, s, all[0], all[1], binlog.AnyName))
		RequireSample(t, collect(t, ctx, s, all[0], all[1], binlog.Named("x")), "x")
		assert.EqualValues(t, 0, count(t, ctx, s, all[0], all[1], binlog.Named("z")))
		assert.EqualValues(t, 0, count(t, ctx, s, all[0], all[1], binlog.Named("")))

		assert.EqualValues(t, 5, remove(t, ctx, s, binlog.Excluded(5), binlog.Unbounded(), binlog.Named("y")))
		RequireSample(t, collect(t, ctx, s, all[0], all[1], binlog.Named("x")), "x")
	})

	t.Run("concurrent push and read", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()

		const writers, perWriter = 4, 25
		var wg sync.WaitGroup
		for w := range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range perWriter {
					assert.NoError(t, s.Push(ctx, binlog.NewEntry(int64(i), fmt.Sprintf("w%d", w), []byte{byte(i)})))
				}
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWriter {
				r, err := s.Range(all[0], all[1], binlog.AnyName)
				if !assert.NoError(t, err) {
					return
				}
				_, err = binlog.Collect(r.Iter(ctx))
				assert.NoError(t, err)
			}
		}()
		wg.Wait()

		assert.EqualValues(t, writers*perWriter, count(t, ctx, s, all[0], all[1], binlog.AnyName))
		for w := range writers {
			got := collect(t, ctx, s, all[0], all[1], binlog.Named(fmt.Sprintf("w%d", w)))
			require.Len(t, got, perWriter)
			for i, e := range got {
				assert.EqualValues(t, i, e.Timestamp)
			}
		}
	})

	t.Run("closed range", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()
		PushSample(t, ctx, s, "closed_range")

		r, err := s.Range(all[0], all[1], binlog.AnyName)
		require.NoError(t, err)
		require.NoError(t, s.Close())

		_, err = r.Count(ctx)
		assert.ErrorIs(t, err, binlog.ErrClosed)
		_, err = r.Remove(ctx)
		assert.ErrorIs(t, err, binlog.ErrClosed)
		_, err = binlog.Collect(r.Iter(ctx))
		assert.ErrorIs(t, err, binlog.ErrClosed)
	})
}
