// Package metrics provides the observability hooks used by binlog stores and
// the daemon.
//
// # Design Philosophy
//
// This package implements the Null Object pattern to enable metrics collection
// without requiring explicit nil checks throughout the codebase. By default,
// every store uses NoopRecorder which implements the Recorder interface with
// no-op methods.
//
// # Usage Pattern
//
// Stores receive a Recorder through an option:
//
//	reg := prometheus.NewRegistry()
//	rec := metrics.NewPrometheusRecorder(reg)
//	store, err := sqlitestore.Open(path, sqlitestore.WithRecorder(rec))
//
// The daemon serves the same registry on /metrics through HTTPHandler.
//
// Recorder methods only take basic types so that code embedding binlog can
// supply its own implementation.
package metrics
