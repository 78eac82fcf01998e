package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObservePush(StoreSQLite, 2*time.Millisecond, true)
	pr.ObserveQuery(StoreSQLite, OpCount, time.Millisecond, true)
	pr.AddRemoved(StoreSQLite, 3)
	pr.IncDelivered(StoreNATS)
	pr.SetActiveSubscriptions(StoreNATS, 2)
	pr.IncArchived("orders", true)
	pr.IncRetentionRun(5)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)

	byName := make(map[string]*dto.MetricFamily, len(mfs))
	for _, mf := range mfs {
		byName[mf.GetName()] = mf
	}
	assert.InDelta(t, 3, byName["binlog_removed_entries_total"].GetMetric()[0].GetCounter().GetValue(), 0)
	assert.InDelta(t, 2, byName["binlog_active_subscriptions"].GetMetric()[0].GetGauge().GetValue(), 0)
	assert.InDelta(t, 1, byName["binlog_retention_runs_total"].GetMetric()[0].GetCounter().GetValue(), 0)
	assert.InDelta(t, 5, byName["binlog_retention_removed_entries_total"].GetMetric()[0].GetCounter().GetValue(), 0)
}

func TestPrometheusRecorderNilReceiver(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.ObservePush(StoreMemory, time.Second, false)
		pr.IncRetentionRun(1)
	})
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncDelivered(StoreMemory)

	rr := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "binlog_delivered_entries_total"))
}
