package storetest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/binlog/pkg/binlog"
)

// RunStore checks the behaviour shared by every backend.
func RunStore(t *testing.T, open func(t *testing.T) binlog.Store) {
	t.Run("latest", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()

		_, ok, err := s.Latest(ctx, "test_latest")
		require.NoError(t, err)
		assert.False(t, ok)

		PushSample(t, ctx, s, "test_latest")
		require.NoError(t, s.Push(ctx, SampleEntry(3, "other")))

		got, ok, err := s.Latest(ctx, "test_latest")
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, SampleEntry(SampleSize, "test_latest").Equal(got), "got %v", got)
	})

	t.Run("latest prefers last pushed on equal timestamps", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()

		require.NoError(t, s.Push(ctx, binlog.NewEntry(5, "tie", []byte{1})))
		require.NoError(t, s.Push(ctx, binlog.NewEntry(5, "tie", []byte{2})))

		got, ok, err := s.Latest(ctx, "tie")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte{2}, got.Value)
	})

	t.Run("empty name and value", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()

		require.NoError(t, s.Push(ctx, binlog.NewEntry(-7, "", nil)))

		got, ok, err := s.Latest(ctx, "")
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, binlog.NewEntry(-7, "", []byte{}).Equal(got), "got %v", got)
	})

	t.Run("push copies value", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()

		value := []byte{1, 2, 3}
		require.NoError(t, s.Push(ctx, binlog.Entry{Timestamp: 1, Name: "copy", Value: value}))
		value[0] = 99

		got, ok, err := s.Latest(ctx, "copy")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte{1, 2, 3}, got.Value)
	})

	t.Run("large value", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()

		value := make([]byte, 64*1024)
		for i := range value {
			value[i] = byte(i % 251)
		}
		require.NoError(t, s.Push(ctx, binlog.NewEntry(1, "large", value)))

		got, ok, err := s.Latest(ctx, "large")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, value, got.Value)
	})

	t.Run("closed", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()

		require.NoError(t, s.Close())
		assert.ErrorIs(t, s.Push(ctx, SampleEntry(1, "closed")), binlog.ErrClosed)
		_, _, err := s.Latest(ctx, "closed")
		assert.ErrorIs(t, err, binlog.ErrClosed)
		assert.ErrorIs(t, s.Close(), binlog.ErrClosed)
	})
}
