package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface, the cache and the sync engine. It implements sync.Metrics.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	remoteDuration  *prometheus.HistogramVec

	recordsReconciled *prometheus.CounterVec
	recordsSkipped    *prometheus.CounterVec
	listenerEvents    *prometheus.CounterVec
	activeListeners   prometheus.Gauge
}

// NewMetricsService registers the collectors on a dedicated registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	remoteDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "remote_call_duration_seconds",
		Help:    "Duration of remote document store calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	recordsReconciled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_records_reconciled_total",
		Help: "Remote records applied to the local store",
	}, []string{"collection"})

	recordsSkipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_records_skipped_total",
		Help: "Remote records skipped as malformed",
	}, []string{"collection"})

	listenerEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_listener_events_total",
		Help: "Live subscription events by collection and outcome",
	}, []string{"collection", "outcome"})

	activeListeners := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sync_active_listeners",
		Help: "Number of open watch subscriptions",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheHits, cacheMisses,
		remoteDuration, recordsReconciled, recordsSkipped, listenerEvents,
		activeListeners, goroutines)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
		remoteDuration:    remoteDuration,
		recordsReconciled: recordsReconciled,
		recordsSkipped:    recordsSkipped,
		listenerEvents:    listenerEvents,
		activeListeners:   activeListeners,
	}
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation counts a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveRemoteCall records document store call timing.
func (m *MetricsService) ObserveRemoteCall(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.remoteDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveReconcile counts applied and skipped records for a batch.
func (m *MetricsService) ObserveReconcile(collection string, applied, skipped int) {
	if m == nil {
		return
	}
	m.recordsReconciled.WithLabelValues(collection).Add(float64(applied))
	m.recordsSkipped.WithLabelValues(collection).Add(float64(skipped))
}

// ObserveListenerEvent counts one subscription event.
func (m *MetricsService) ObserveListenerEvent(collection, outcome string) {
	if m == nil {
		return
	}
	m.listenerEvents.WithLabelValues(collection, outcome).Inc()
}

// SetActiveListeners tracks the open subscription count.
func (m *MetricsService) SetActiveListeners(count int) {
	if m == nil {
		return
	}
	m.activeListeners.Set(float64(count))
}
