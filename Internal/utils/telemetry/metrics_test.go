package telemetry

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveEvaluation(true, "", 0.9, true)
	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	// second registration of the same names must fail
	assert.Panics(t, func() { NewMetrics(reg) })
}

func TestObserveEvaluation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveEvaluation(true, "", 1, true)
	m.ObserveEvaluation(false, "THRESHOLD_UNMET", 0.5, true)
	m.ObserveEvaluation(false, "INSUFFICIENT_HISTORY", 0, false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Evaluations.WithLabelValues("found", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Evaluations.WithLabelValues("not_found", "THRESHOLD_UNMET")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Evaluations.WithLabelValues("not_found", "INSUFFICIENT_HISTORY")))
	assert.Equal(t, uint64(2), histogramCount(t, reg, "contractionscout_contraction_ratio"))
}

func histogramCount(t *testing.T, reg *prometheus.Registry, name string) uint64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			require.Len(t, f.GetMetric(), 1)
			return f.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	t.Fatalf("metric %s not gathered", name)
	return 0
}

func TestObserveFeedAndCache(t *testing.T) {
	m := NewMetrics(nil)

	m.ObserveFeed("alpaca", nil)
	m.ObserveFeed("alpaca", errors.New("boom"))
	m.ObserveCache(true)
	m.ObserveCache(false)
	m.ObserveCache(false)
	m.ObserveStored()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeedRequests.WithLabelValues("alpaca", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeedRequests.WithLabelValues("alpaca", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheMisses))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DetectionsStored))
}

func TestTrackScan(t *testing.T) {
	m := NewMetrics(nil)

	done := m.TrackScan("watchlist")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveScans))
	done()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveScans))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveEvaluation(true, "", 1, true)
		m.ObserveFeed("csv", nil)
		m.ObserveCache(true)
		m.ObserveStored()
		m.TrackScan("replay")()
	})
}
