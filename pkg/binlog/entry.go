package binlog

import (
	"bytes"
	"fmt"
	"time"
)

// Entry is a single log record. Entries are values: stores copy the payload
// on the way in and on the way out, so a pushed entry never changes.
type Entry struct {
	Timestamp int64
	Name      string
	Value     []byte
}

// NewEntry builds an entry, copying value.
func NewEntry(ts int64, name string, value []byte) Entry {
	return Entry{Timestamp: ts, Name: name, Value: bytes.Clone(value)}
}

// NewEntryNow builds an entry stamped with the current wall clock in
// microseconds since the Unix epoch.
func NewEntryNow(name string, value []byte) Entry {
	return NewEntry(time.Now().UnixMicro(), name, value)
}

// Equal reports whether both entries carry the same timestamp, name and
// payload. A nil payload equals an empty one.
func (e Entry) Equal(other Entry) bool {
	return e.Timestamp == other.Timestamp &&
		e.Name == other.Name &&
		bytes.Equal(e.Value, other.Value)
}

// Clone returns a deep copy of e.
func (e Entry) Clone() Entry {
	return NewEntry(e.Timestamp, e.Name, e.Value)
}

func (e Entry) String() string {
	return fmt.Sprintf("Entry(%d, %q, %v)", e.Timestamp, e.Name, e.Value)
}
