package daemon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/binlog/pkg/binlog"
	"git.home.luguber.info/inful/binlog/pkg/binlog/memstore"
)

func TestSchedulerRunsRetention(t *testing.T) {
	store := memstore.New()
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Push(t.Context(), binlog.NewEntry(1, "orders", nil)))

	s, err := NewScheduler()
	require.NoError(t, err)
	s.Start()
	t.Cleanup(func() { _ = s.Stop() })

	r := NewRetention(store, 1, nil, nil)
	id, err := s.ScheduleRetention(t.Context(), 10*time.Millisecond, r)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, []string{"retention"}, s.Jobs())

	assert.Eventually(t, func() bool {
		_, ok, err := store.Latest(t.Context(), "orders")
		return err == nil && !ok
	}, eventually, 10*time.Millisecond)
}

func TestSchedulerReplacesRetentionJob(t *testing.T) {
	store := memstore.New()
	t.Cleanup(func() { _ = store.Close() })

	s, err := NewScheduler()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })

	first, err := s.ScheduleRetention(t.Context(), time.Hour, NewRetention(store, 1, nil, nil))
	require.NoError(t, err)
	second, err := s.ScheduleRetention(t.Context(), time.Hour, NewRetention(store, 2, nil, nil))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Len(t, s.Jobs(), 1)

	id, err := s.ScheduleRetention(t.Context(), time.Hour, NewRetention(store, 0, nil, nil))
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Empty(t, s.Jobs())
}
