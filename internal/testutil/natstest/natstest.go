// Package natstest runs an in-process JetStream server for tests.
package natstest

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/require"
)

// RunServer starts a JetStream-enabled server on a random port and shuts
// it down when the test ends.
func RunServer(t *testing.T) *server.Server {
	t.Helper()
	ns, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	})
	require.NoError(t, err)
	ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatal("nats server did not start")
	}
	t.Cleanup(ns.Shutdown)
	return ns
}

var seq atomic.Int64

// UniqueStream returns a stream name and subject prefix no other caller in
// this process receives. Streams on one server must not share subjects.
func UniqueStream() (name, prefix string) {
	n := seq.Add(1)
	return fmt.Sprintf("T%d", n), fmt.Sprintf("t%d.binlog", n)
}
