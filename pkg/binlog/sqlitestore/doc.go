// Package sqlitestore implements a durable, rangeable binlog store on an
// embedded SQLite database (modernc.org/sqlite, no cgo).
//
// Each entry is one row. Range iteration is paged by (ts, id) and bounded by
// the highest row id present when the pass starts, so a pass never observes
// entries pushed while it runs and holds no lock while the caller's loop body
// executes.
package sqlitestore
