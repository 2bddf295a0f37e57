package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for scans, feeds and the bar cache.
type Metrics struct {
	Evaluations      *prometheus.CounterVec
	ContractionRatio prometheus.Histogram
	ScanDuration     *prometheus.HistogramVec
	FeedRequests     *prometheus.CounterVec
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	DetectionsStored prometheus.Counter
	ActiveScans      prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which tests use to avoid the global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contractionscout_evaluations_total",
				Help: "Detector evaluations by outcome and NotFound reason",
			},
			[]string{"result", "reason"},
		),
		ContractionRatio: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "contractionscout_contraction_ratio",
				Help:    "Fraction of contracting legs over evaluations that reached scoring",
				Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
			},
		),
		ScanDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "contractionscout_scan_duration_seconds",
				Help:    "Duration of symbol scans and replays in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"mode"},
		),
		FeedRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contractionscout_feed_requests_total",
				Help: "Bar feed requests by source and status",
			},
			[]string{"source", "status"},
		),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "contractionscout_bar_cache_hits_total",
			Help: "Bar requests served from the cache",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "contractionscout_bar_cache_misses_total",
			Help: "Bar requests that went to the upstream feed",
		}),
		DetectionsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "contractionscout_detections_stored_total",
			Help: "Found detections written to the store",
		}),
		ActiveScans: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "contractionscout_active_scans",
			Help: "Number of scans currently running",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Evaluations,
			m.ContractionRatio,
			m.ScanDuration,
			m.FeedRequests,
			m.CacheHits,
			m.CacheMisses,
			m.DetectionsStored,
			m.ActiveScans,
		)
	}
	return m
}

// ObserveEvaluation records one detector outcome. scored is false when the
// evaluation stopped before legs were scored.
func (m *Metrics) ObserveEvaluation(found bool, reason string, ratio float64, scored bool) {
	if m == nil {
		return
	}
	result := "not_found"
	if found {
		result = "found"
	}
	if reason == "" {
		reason = "none"
	}
	m.Evaluations.WithLabelValues(result, reason).Inc()
	if scored {
		m.ContractionRatio.Observe(ratio)
	}
}

// ObserveFeed counts one upstream request.
func (m *Metrics) ObserveFeed(source string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.FeedRequests.WithLabelValues(source, status).Inc()
}

func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.Inc()
	} else {
		m.CacheMisses.Inc()
	}
}

func (m *Metrics) ObserveStored() {
	if m == nil {
		return
	}
	m.DetectionsStored.Inc()
}

// TrackScan marks a scan active and returns a func that records its duration.
func (m *Metrics) TrackScan(mode string) func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	m.ActiveScans.Inc()
	return func() {
		m.ActiveScans.Dec()
		m.ScanDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	}
}
