package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns a private Prometheus registry for HTTP, cache and booking metrics.
// A nil *MetricsService is valid and records nothing.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram
	cacheWrite      prometheus.Histogram
	cacheLookups    *prometheus.CounterVec

	bookingsCreated *prometheus.CounterVec
	cancellations   *prometheus.CounterVec
	sweepBookings   *prometheus.CounterVec
	casConflicts    prometheus.Counter
	sweepDuration   prometheus.Histogram
	reconciliations *prometheus.CounterVec
}

// NewMetricsService registers collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache lookups",
			Buckets: prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_write_seconds",
			Help:    "Latency for cache writes",
			Buckets: prometheus.DefBuckets,
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups by result",
		}, []string{"result"}),
		bookingsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookings_created_total",
			Help: "Booking attempts by result code",
		}, []string{"result"}),
		cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "booking_cancellations_total",
			Help: "Successful cancellations by lateness and deduction outcome",
		}, []string{"late", "deducted"}),
		sweepBookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sweep_bookings_total",
			Help: "Bookings processed by the auto-completion sweeper by outcome",
		}, []string{"outcome"}),
		casConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_cas_conflicts_total",
			Help: "Enrollment usage compare-and-set misses",
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sweep_duration_seconds",
			Help:    "Wall time of sweeper runs",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_reconciliations_total",
			Help: "Ledger soft failures queued for reconciliation by source",
		}, []string{"source"}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal, m.cacheLatency, m.cacheWrite, m.cacheLookups,
		m.bookingsCreated, m.cancellations, m.sweepBookings, m.casConflicts, m.sweepDuration,
		m.reconciliations, goroutines,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveCacheWrite tracks cache write latency.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordBookingCreated counts a booking attempt. result is "ok" or an error code.
func (m *MetricsService) RecordBookingCreated(result string) {
	if m == nil {
		return
	}
	m.bookingsCreated.WithLabelValues(result).Inc()
}

// RecordCancellation counts a successful cancellation.
func (m *MetricsService) RecordCancellation(late, deducted bool) {
	if m == nil {
		return
	}
	m.cancellations.WithLabelValues(strconv.FormatBool(late), strconv.FormatBool(deducted)).Inc()
}

// RecordSweepOutcome counts one booking handled by the sweeper.
func (m *MetricsService) RecordSweepOutcome(outcome string) {
	if m == nil {
		return
	}
	m.sweepBookings.WithLabelValues(outcome).Inc()
}

// ObserveSweep records the duration of a sweeper run.
func (m *MetricsService) ObserveSweep(duration time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(duration.Seconds())
}

// RecordCASConflict counts an enrollment usage compare-and-set miss.
func (m *MetricsService) RecordCASConflict() {
	if m == nil {
		return
	}
	m.casConflicts.Inc()
}

// RecordReconciliation counts a queued reconciliation record.
func (m *MetricsService) RecordReconciliation(source string) {
	if m == nil {
		return
	}
	m.reconciliations.WithLabelValues(source).Inc()
}
