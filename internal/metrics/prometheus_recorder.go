package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "binlog"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once           sync.Once
	pushDuration   *prom.HistogramVec
	queryDuration  *prom.HistogramVec
	removed        *prom.CounterVec
	delivered      *prom.CounterVec
	subscriptions  *prom.GaugeVec
	archived       *prom.CounterVec
	retentionRuns  prom.Counter
	retentionTotal prom.Counter
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.pushDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "push_duration_seconds",
			Help:      "Duration of push operations",
			Buckets:   prom.DefBuckets,
		}, []string{"store", "result"})
		pr.queryDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Duration of range and latest queries",
			Buckets:   prom.DefBuckets,
		}, []string{"store", "op", "result"})
		pr.removed = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "removed_entries_total",
			Help:      "Entries deleted by range removal",
		}, []string{"store"})
		pr.delivered = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "delivered_entries_total",
			Help:      "Entries delivered to subscribers",
		}, []string{"store"})
		pr.subscriptions = prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "active_subscriptions",
			Help:      "Live subscriptions per store",
		}, []string{"store"})
		pr.archived = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "archived_entries_total",
			Help:      "Entries copied from the stream into the durable store",
		}, []string{"name", "result"})
		pr.retentionRuns = prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "retention_runs_total",
			Help:      "Completed retention sweeps",
		})
		pr.retentionTotal = prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "retention_removed_entries_total",
			Help:      "Entries deleted by retention sweeps",
		})
		reg.MustRegister(pr.pushDuration, pr.queryDuration, pr.removed, pr.delivered,
			pr.subscriptions, pr.archived, pr.retentionRuns, pr.retentionTotal)
	})
	return pr
}

func (p *PrometheusRecorder) ObservePush(store string, d time.Duration, success bool) {
	if p == nil || p.pushDuration == nil {
		return
	}
	p.pushDuration.WithLabelValues(store, resultLabel(success)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveQuery(store, op string, d time.Duration, success bool) {
	if p == nil || p.queryDuration == nil {
		return
	}
	p.queryDuration.WithLabelValues(store, op, resultLabel(success)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) AddRemoved(store string, n int64) {
	if p == nil || p.removed == nil || n <= 0 {
		return
	}
	p.removed.WithLabelValues(store).Add(float64(n))
}

func (p *PrometheusRecorder) IncDelivered(store string) {
	if p == nil || p.delivered == nil {
		return
	}
	p.delivered.WithLabelValues(store).Inc()
}

func (p *PrometheusRecorder) SetActiveSubscriptions(store string, n int) {
	if p == nil || p.subscriptions == nil {
		return
	}
	p.subscriptions.WithLabelValues(store).Set(float64(n))
}

func (p *PrometheusRecorder) IncArchived(name string, success bool) {
	if p == nil || p.archived == nil {
		return
	}
	p.archived.WithLabelValues(name, resultLabel(success)).Inc()
}

func (p *PrometheusRecorder) IncRetentionRun(removed int64) {
	if p == nil || p.retentionRuns == nil {
		return
	}
	p.retentionRuns.Inc()
	if removed > 0 {
		p.retentionTotal.Add(float64(removed))
	}
}
