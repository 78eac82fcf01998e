// Package storetest holds the conformance suite every binlog backend runs.
//
// Each Run function takes a factory that returns a fresh, empty store. The
// factory owns cleanup; the suite may close a store itself, so cleanup must
// tolerate ErrClosed.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/binlog/pkg/binlog"
)

// SampleSize is the number of entries pushed by PushSample.
const SampleSize = 10

// SampleEntry returns the i-th sample entry: Entry(i, name, [i]).
func SampleEntry(i int, name string) binlog.Entry {
	return binlog.NewEntry(int64(i), name, []byte{byte(i)})
}

// PushSample pushes SampleEntry(1..SampleSize, name).
func PushSample(t *testing.T, ctx context.Context, s binlog.Store, name string) {
	t.Helper()
	for i := 1; i <= SampleSize; i++ {
		require.NoError(t, s.Push(ctx, SampleEntry(i, name)))
	}
}

// RequireSample asserts that got is exactly the sample for name, in order.
func RequireSample(t *testing.T, got []binlog.Entry, name string) {
	t.Helper()
	require.Len(t, got, SampleSize)
	for i, e := range got {
		want := SampleEntry(i+1, name)
		require.Truef(t, want.Equal(e), "entry %d: want %v, got %v", i, want, e)
	}
}

func count(t *testing.T, ctx context.Context, s binlog.RangeableStore, start, end binlog.Bound, name binlog.NameFilter) int64 {
	t.Helper()
	r, err := s.Range(start, end, name)
	require.NoError(t, err)
	n, err := r.Count(ctx)
	require.NoError(t, err)
	return n
}

func remove(t *testing.T, ctx context.Context, s binlog.RangeableStore, start, end binlog.Bound, name binlog.NameFilter) int64 {
	t.Helper()
	r, err := s.Range(start, end, name)
	require.NoError(t, err)
	n, err := r.Remove(ctx)
	require.NoError(t, err)
	return n
}

func collect(t *testing.T, ctx context.Context, s binlog.RangeableStore, start, end binlog.Bound, name binlog.NameFilter) []binlog.Entry {
	t.Helper()
	r, err := s.Range(start, end, name)
	require.NoError(t, err)
	got, err := binlog.Collect(r.Iter(ctx))
	require.NoError(t, err)
	return got
}
