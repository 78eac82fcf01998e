package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/binlog/internal/config"
	"git.home.luguber.info/inful/binlog/internal/foundation/errors"
	"git.home.luguber.info/inful/binlog/internal/testutil/natstest"
	"git.home.luguber.info/inful/binlog/pkg/binlog"
)

// writeConfig stores cfg next to a fresh database and returns its path.
func writeConfig(t *testing.T, mutate func(*config.Config)) string {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Durable.Path = filepath.Join(dir, "binlog.db")
	if mutate != nil {
		mutate(cfg)
	}
	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	path := filepath.Join(dir, "binlog.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := Execute(args, &out, &errOut)
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	require.NoError(t, err)
	return out
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "binlog.yaml")
	out := mustRun(t, "-c", path, "init")
	assert.Contains(t, out, "Wrote configuration to")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, cfg.Daemon.Archive)

	_, err = run(t, "-c", path, "init")
	require.Error(t, err)
	assert.Equal(t, errors.CategoryValidation, errors.GetCategory(err))
	mustRun(t, "-c", path, "init", "--force")
}

func TestDurableRoundTrip(t *testing.T) {
	cfg := writeConfig(t, nil)

	mustRun(t, "-c", cfg, "push", "--name", "orders", "--ts", "1", "1", "2", "3")
	mustRun(t, "-c", cfg, "push", "--name", "orders", "--ts", "5", "4")
	mustRun(t, "-c", cfg, "push", "--name", "audit", "--ts", "3")
	mustRun(t, "-c", cfg, "push", "--name", "orders", "--ts", "9", "255")

	assert.Equal(t, "4\n", mustRun(t, "-c", cfg, "count"))
	assert.Equal(t, "3\n", mustRun(t, "-c", cfg, "count", "--name", "orders"))
	assert.Equal(t, "2\n", mustRun(t, "-c", cfg, "count", "--name", "orders", "--start", "1", "--end", "9"))
	assert.Equal(t, "3\n", mustRun(t, "-c", cfg, "count", "--name", "orders", "--start", "1", "--end", "9", "--inclusive-end"))

	dump := mustRun(t, "-c", cfg, "dump", "--name", "orders")
	assert.Equal(t, "1\torders\t1 2 3\n5\torders\t4\n9\torders\t255\n", dump)

	assert.Equal(t, "9\torders\t255\n", mustRun(t, "-c", cfg, "latest", "--name", "orders"))

	assert.Equal(t, "Removed 2 entries\n", mustRun(t, "-c", cfg, "remove", "--end", "5"))
	assert.Equal(t, "2\n", mustRun(t, "-c", cfg, "count"))
}

func TestEmptyNameFilter(t *testing.T) {
	cfg := writeConfig(t, nil)
	mustRun(t, "-c", cfg, "push", "--name", "", "--ts", "1")
	mustRun(t, "-c", cfg, "push", "--name", "x", "--ts", "2")
	assert.Equal(t, "1\n", mustRun(t, "-c", cfg, "count", "--name", ""))
	assert.Equal(t, "2\n", mustRun(t, "-c", cfg, "count"))
}

func TestCountUsesThousandsSeparator(t *testing.T) {
	g := &Global{Printer: newPrinter()}
	var buf bytes.Buffer
	g.Printer.Fprintf(&buf, "%d\n", 1234567)
	assert.Equal(t, "1,234,567\n", buf.String())
}

func TestStringValuesAndJSON(t *testing.T) {
	cfg := writeConfig(t, func(c *config.Config) { c.Durable.Compression = config.CompressionNone })
	mustRun(t, "-c", cfg, "push", "--name", "greeting", "--ts", "7", "--string", "hello", "world")

	out := mustRun(t, "-c", cfg, "dump", "--format", "json", "--string")
	var got jsonEntry
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, int64(7), got.Timestamp)
	assert.Equal(t, "greeting", got.Name)
	assert.Equal(t, "hello world", got.Text)
	assert.Len(t, got.Value, len("hello world"))

	assert.Equal(t, "7\tgreeting\t\"hello world\"\n", mustRun(t, "-c", cfg, "latest", "--name", "greeting", "--string"))
}

func TestRejectsBadValue(t *testing.T) {
	cfg := writeConfig(t, nil)
	_, err := run(t, "-c", cfg, "push", "--name", "orders", "256")
	require.Error(t, err)
	assert.Equal(t, errors.CategoryValidation, errors.GetCategory(err))
}

func TestLatestMissingIsNotFound(t *testing.T) {
	cfg := writeConfig(t, nil)
	_, err := run(t, "-c", cfg, "latest", "--name", "nothing")
	require.Error(t, err)
	assert.Equal(t, errors.CategoryNotFound, errors.GetCategory(err))
	assert.Equal(t, 4, errors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
}

func TestTailDurableIsRejected(t *testing.T) {
	cfg := writeConfig(t, nil)
	_, err := run(t, "-c", cfg, "tail", "--name", "orders", "--backend", "durable")
	require.ErrorIs(t, err, binlog.ErrNotSubscribeable)
}

func TestBadRangeIsQueryError(t *testing.T) {
	cfg := writeConfig(t, nil)
	_, err := run(t, "-c", cfg, "count", "--start", "9", "--end", "1")
	require.ErrorIs(t, err, binlog.ErrBadRange)
}

func TestUnknownBackend(t *testing.T) {
	cfg := writeConfig(t, nil)
	_, err := run(t, "-c", cfg, "count", "--backend", "tape")
	require.Error(t, err)
	assert.Equal(t, errors.CategoryValidation, errors.GetCategory(err))
}

func TestMissingExplicitConfig(t *testing.T) {
	dir := t.TempDir()
	for _, path := range []string{
		filepath.Join(dir, "custom.yaml"),
		filepath.Join(dir, "my-binlog.yaml"),
		filepath.Join(dir, config.DefaultPath),
	} {
		_, err := run(t, "-c", path, "count", "--backend", "memory")
		require.Error(t, err, path)
		assert.Equal(t, errors.CategoryNotFound, errors.GetCategory(err), path)
	}
}

func TestMissingDefaultConfigFallsBack(t *testing.T) {
	t.Chdir(t.TempDir())
	assert.Equal(t, "0\n", mustRun(t, "count", "--backend", "memory"))
}

func TestMemoryBackendStartsEmpty(t *testing.T) {
	cfg := writeConfig(t, nil)
	assert.Equal(t, "0\n", mustRun(t, "-c", cfg, "count", "--backend", "memory"))
}

func TestTailStream(t *testing.T) {
	ns := natstest.RunServer(t)
	cfg := writeConfig(t, func(c *config.Config) {
		c.Stream.URL = ns.ClientURL()
		c.Stream.StreamName, c.Stream.SubjectPrefix = natstest.UniqueStream()
		c.Stream.Storage = config.StorageMemory
	})

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		var out, errOut bytes.Buffer
		err := Execute([]string{"-c", cfg, "tail", "--backend", "stream", "--name", "orders", "--limit", "1", "--timeout", "10s"}, &out, &errOut)
		done <- result{out.String(), err}
	}()

	// Entries pushed before the subscription exists are not delivered, so
	// keep pushing until tail has seen one.
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(15 * time.Second)
	for {
		select {
		case r := <-done:
			require.NoError(t, r.err)
			assert.True(t, strings.HasSuffix(r.out, "\torders\t42\n"), r.out)
			return
		case <-ticker.C:
			mustRun(t, "-c", cfg, "push", "--backend", "stream", "--name", "orders", "42")
		case <-deadline:
			t.Fatal("tail did not return")
		}
	}
}

func TestVerbose(t *testing.T) {
	assert.True(t, Verbose([]string{"-v", "count"}))
	assert.True(t, Verbose([]string{"count", "--verbose"}))
	assert.False(t, Verbose([]string{"count"}))
}
