package metrics

import "time"

// Store kinds used as the "store" label.
const (
	StoreSQLite = "sqlite"
	StoreNATS   = "nats"
	StoreMemory = "memory"
)

// Query operations used as the "op" label.
const (
	OpCount  = "count"
	OpIter   = "iter"
	OpRemove = "remove"
	OpLatest = "latest"
)

// Recorder defines observability hooks for store and daemon metrics.
// Implementations may forward to Prometheus, OpenTelemetry, etc.
type Recorder interface {
	ObservePush(store string, d time.Duration, success bool)
	ObserveQuery(store, op string, d time.Duration, success bool)
	AddRemoved(store string, n int64)
	IncDelivered(store string)
	SetActiveSubscriptions(store string, n int)
	IncArchived(name string, success bool)
	IncRetentionRun(removed int64)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObservePush(string, time.Duration, bool)          {}
func (NoopRecorder) ObserveQuery(string, string, time.Duration, bool) {}
func (NoopRecorder) AddRemoved(string, int64)                         {}
func (NoopRecorder) IncDelivered(string)                              {}
func (NoopRecorder) SetActiveSubscriptions(string, int)               {}
func (NoopRecorder) IncArchived(string, bool)                         {}
func (NoopRecorder) IncRetentionRun(int64)                            {}

// OrNoop returns r, or NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}
