// Package metrics defines the Prometheus metric collectors used by the indexer,
// the search API, and the CLI, and exposes an HTTP handler for scraping.
//
// Every recording helper is safe to call on a nil *Metrics so that library
// code can be used without a registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the search engine.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	FilesIndexedTotal    prometheus.Counter
	FilesSkippedTotal    *prometheus.CounterVec
	PostingListSize      prometheus.Gauge
	IndexWritesTotal     *prometheus.CounterVec
	ScansTotal           *prometheus.CounterVec
	ScanDuration         *prometheus.HistogramVec
	LookupsTotal         *prometheus.CounterVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg uses the
// default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		FilesIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "trigram_files_indexed_total",
				Help: "Total files merged into the posting list.",
			},
		),
		FilesSkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trigram_files_skipped_total",
				Help: "Files not indexed, by reason (invalid, error).",
			},
			[]string{"reason"},
		),
		PostingListSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "trigram_posting_list_size",
				Help: "Number of (trigram, file, position) entries in the in-memory posting list.",
			},
		),
		IndexWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trigram_index_writes_total",
				Help: "Index file writes by format (plain, compressed) and status.",
			},
			[]string{"format", "status"},
		),
		ScansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trigram_scans_total",
				Help: "Per-file pattern scans by strategy (read, mmap) and result (match, miss, error).",
			},
			[]string{"strategy", "result"},
		),
		ScanDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trigram_scan_duration_seconds",
				Help:    "Per-file pattern scan latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"strategy"},
		),
		LookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trigram_index_lookups_total",
				Help: "Binary-search lookups in the plain index by result (hit, miss, error).",
			},
			[]string{"result"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.FilesIndexedTotal,
		m.FilesSkippedTotal,
		m.PostingListSize,
		m.IndexWritesTotal,
		m.ScansTotal,
		m.ScanDuration,
		m.LookupsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)

	return m
}

func (m *Metrics) FileIndexed() {
	if m == nil {
		return
	}
	m.FilesIndexedTotal.Inc()
}

func (m *Metrics) FileSkipped(reason string) {
	if m == nil {
		return
	}
	m.FilesSkippedTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetPostingListSize(n int) {
	if m == nil {
		return
	}
	m.PostingListSize.Set(float64(n))
}

func (m *Metrics) IndexWrite(format string, err error) {
	if m == nil {
		return
	}
	m.IndexWritesTotal.WithLabelValues(format, status(err)).Inc()
}

// Scan records one per-file scan. result is "match", "miss" or "error".
func (m *Metrics) Scan(strategy, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ScansTotal.WithLabelValues(strategy, result).Inc()
	m.ScanDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
}

func (m *Metrics) Lookup(result string) {
	if m == nil {
		return
	}
	m.LookupsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.CacheMissesTotal.Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
