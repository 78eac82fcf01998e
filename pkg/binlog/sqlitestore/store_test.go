package sqlitestore

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/binlog/pkg/binlog"
	"git.home.luguber.info/inful/binlog/pkg/binlog/storetest"
)

func openTemp(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "binlog.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConformance(t *testing.T) {
	t.Run("file", func(t *testing.T) {
		storetest.RunRangeable(t, func(t *testing.T) binlog.RangeableStore { return openTemp(t) })
	})

	t.Run("memory", func(t *testing.T) {
		storetest.RunRangeable(t, func(t *testing.T) binlog.RangeableStore {
			s, err := Open(MemoryPath)
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		})
	})

	t.Run("zstd with small pages", func(t *testing.T) {
		storetest.RunRangeable(t, func(t *testing.T) binlog.RangeableStore {
			return openTemp(t, WithCodec(binlog.NewZstdCodec(1)), WithPageSize(3))
		})
	})
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := t.Context()

	s, err := Open(path)
	require.NoError(t, err)
	storetest.PushSample(t, ctx, s, "orders")
	require.NoError(t, s.Close())

	s, err = Open(path, WithCodec(binlog.NewZstdCodec(3)))
	require.NoError(t, err)
	defer s.Close()

	// Rows from both codecs come back through one iteration.
	long := bytes.Repeat([]byte("compressible "), 20)
	require.NoError(t, s.Push(ctx, binlog.NewEntry(11, "orders", long)))

	r, err := s.Range(binlog.Unbounded(), binlog.Unbounded(), binlog.Named("orders"))
	require.NoError(t, err)
	got, err := binlog.Collect(r.Iter(ctx))
	require.NoError(t, err)

	require.Len(t, got, storetest.SampleSize+1)
	storetest.RequireSample(t, got[:storetest.SampleSize], "orders")
	assert.Equal(t, long, got[storetest.SampleSize].Value)
}

func TestCodecColumnRecordsWriter(t *testing.T) {
	s := openTemp(t, WithCodec(binlog.NewZstdCodec(1)))
	ctx := t.Context()

	require.NoError(t, s.Push(ctx, binlog.NewEntry(1, "c", bytes.Repeat([]byte{1}, 100))))

	var codec string
	var size int
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT codec, length(value) FROM log").Scan(&codec, &size))
	assert.Equal(t, binlog.CodecZstd, codec)
	assert.Less(t, size, 100)
}

func TestUnknownCodecIsEncodingError(t *testing.T) {
	s := openTemp(t)
	ctx := t.Context()

	_, err := s.db.ExecContext(ctx, "INSERT INTO log (ts, name, codec, value) VALUES (1, 'bad', 'lz4', x'00')")
	require.NoError(t, err)

	_, _, err = s.Latest(ctx, "bad")
	assert.ErrorIs(t, err, binlog.ErrEncoding)

	r, err := s.Range(binlog.Unbounded(), binlog.Unbounded(), binlog.AnyName)
	require.NoError(t, err)
	_, err = binlog.Collect(r.Iter(ctx))
	assert.ErrorIs(t, err, binlog.ErrEncoding)
}

func TestPagingCrossesEqualTimestamps(t *testing.T) {
	s := openTemp(t, WithPageSize(2))
	ctx := t.Context()

	for i := range 7 {
		require.NoError(t, s.Push(ctx, binlog.NewEntry(5, "same", []byte{byte(i)})))
	}

	r, err := s.Range(binlog.Unbounded(), binlog.Unbounded(), binlog.AnyName)
	require.NoError(t, err)
	got, err := binlog.Collect(r.Iter(ctx))
	require.NoError(t, err)

	require.Len(t, got, 7)
	for i, e := range got {
		assert.Equal(t, []byte{byte(i)}, e.Value)
	}
}

func TestSchemaVersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.db.ExecContext(t.Context(), "UPDATE meta SET value = '0' WHERE key = 'schema_version'")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(path)
	assert.ErrorIs(t, err, binlog.ErrQuery)
}

func TestOpenUnreachablePath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "binlog.db"))
	assert.ErrorIs(t, err, binlog.ErrConnection)
}

func TestPredicate(t *testing.T) {
	q, err := binlog.NewQuery(binlog.Excluded(1), binlog.Included(9), binlog.Named("orders"))
	require.NoError(t, err)

	where, args := predicate(q)
	assert.Equal(t, "1=1 AND ts > ? AND ts <= ? AND name = ?", where)
	assert.Equal(t, []any{int64(1), int64(9), "orders"}, args)

	open, err := binlog.NewQuery(binlog.Unbounded(), binlog.Unbounded(), binlog.AnyName)
	require.NoError(t, err)
	where, args = predicate(open)
	assert.Equal(t, "1=1", where)
	assert.Empty(t, args)
}
