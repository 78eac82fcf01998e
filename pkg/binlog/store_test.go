package binlog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/binlog/pkg/binlog"
	"git.home.luguber.info/inful/binlog/pkg/binlog/memstore"
)

// pushOnly hides every capability but Store.
type pushOnly struct{ binlog.Store }

func TestCapabilityAssertions(t *testing.T) {
	mem := memstore.New()
	t.Cleanup(func() { _ = mem.Close() })

	r, err := binlog.AsRangeable(mem)
	require.NoError(t, err)
	assert.NotNil(t, r)
	s, err := binlog.AsSubscribeable(mem)
	require.NoError(t, err)
	assert.NotNil(t, s)

	_, err = binlog.AsRangeable(pushOnly{mem})
	assert.ErrorIs(t, err, binlog.ErrNotRangeable)
	_, err = binlog.AsSubscribeable(pushOnly{mem})
	assert.ErrorIs(t, err, binlog.ErrNotSubscribeable)
}
