// Package metrics exposes Prometheus collectors for the HTTP surface, the
// ingest path, report caching and the sheets worker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "green"

type Metrics struct {
	registry *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	recordsStored  prometheus.Counter
	filesRejected  prometheus.Counter
	cacheLookups   *prometheus.CounterVec
	reportBuilds   *prometheus.CounterVec
	exports        *prometheus.CounterVec
	sheetsSync     *prometheus.CounterVec
	pendingRecords prometheus.Gauge
	rateLimited    prometheus.Counter
	suspicious     prometheus.Counter
}

// New registers every collector on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request durations by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		recordsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_ingested_total",
			Help:      "Waste records stored from uploads.",
		}),
		filesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_files_rejected_total",
			Help:      "Uploaded files that could not be parsed.",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_cache_lookups_total",
			Help:      "Report grid cache lookups by result.",
		}, []string{"result"}),
		reportBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_builds_total",
			Help:      "Report grids built from the store by range kind.",
		}, []string{"kind"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Rendered report documents by format.",
		}, []string{"format"}),
		sheetsSync: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sheets_sync_total",
			Help:      "Spreadsheet operations by kind and result.",
		}, []string{"kind", "result"}),
		pendingRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sheets_pending_records",
			Help:      "Records not yet mirrored to the spreadsheet at the last sweep.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
		suspicious: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_suspicious_requests_total",
			Help:      "Requests flagged by the security detector.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.recordsStored,
		m.filesRejected,
		m.cacheLookups,
		m.reportBuilds,
		m.exports,
		m.sheetsSync,
		m.pendingRecords,
		m.rateLimited,
		m.suspicious,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RecordsIngested(n int) {
	if m == nil {
		return
	}
	m.recordsStored.Add(float64(n))
}

func (m *Metrics) FileRejected() {
	if m == nil {
		return
	}
	m.filesRejected.Inc()
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ReportBuilt(kind string) {
	if m == nil {
		return
	}
	m.reportBuilds.WithLabelValues(kind).Inc()
}

func (m *Metrics) Exported(format string) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(format).Inc()
}

func (m *Metrics) SheetsSync(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.sheetsSync.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) PendingRecords(n int) {
	if m == nil {
		return
	}
	m.pendingRecords.Set(float64(n))
}

func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

func (m *Metrics) SuspiciousRequest() {
	if m == nil {
		return
	}
	m.suspicious.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Instrument counts and times requests under a fixed route label.
func (m *Metrics) Instrument(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		m.httpRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	})
}
