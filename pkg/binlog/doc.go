// Package binlog defines an embeddable event log: timestamped, named entries
// that are pushed to a Store and read back either through range queries or
// through live subscriptions.
//
// The package itself holds only the value types and capability interfaces.
// Backends live in subpackages:
//
//   - sqlitestore: durable, rangeable log in an embedded SQLite file
//   - natsstore: live fan-out over a capacity-bounded NATS JetStream stream
//   - memstore: process-local store that is both rangeable and subscribeable
//
// Every backend passes the conformance suite in storetest.
package binlog
