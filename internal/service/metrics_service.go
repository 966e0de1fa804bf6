package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	bulkRecords     *prometheus.CounterVec
	bulkBatches     prometheus.Counter
	transitionTotal *prometheus.CounterVec
	auditEvents     *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
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

	bulkRecords := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bulk_records_total",
		Help: "Per-record outcomes of bulk update batches",
	}, []string{"outcome"})

	bulkBatches := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bulk_batches_total",
		Help: "Total number of bulk update batches processed",
	})

	transitionTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "status_transitions_total",
		Help: "Status transition evaluations by decision",
	}, []string{"decision"})

	auditEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_events_total",
		Help: "Audit events appended by type",
	}, []string{"event_type"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, bulkRecords, bulkBatches, transitionTotal, auditEvents, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		bulkRecords:     bulkRecords,
		bulkBatches:     bulkBatches,
		transitionTotal: transitionTotal,
		auditEvents:     auditEvents,
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

// ObserveBulk records per-record bucket counts for one batch.
func (m *MetricsService) ObserveBulk(applied, blocked, failed int) {
	if m == nil {
		return
	}
	m.bulkBatches.Inc()
	m.bulkRecords.WithLabelValues("applied").Add(float64(applied))
	m.bulkRecords.WithLabelValues("blocked").Add(float64(blocked))
	m.bulkRecords.WithLabelValues("failed").Add(float64(failed))
}

// ObserveTransition records one transition evaluation decision.
func (m *MetricsService) ObserveTransition(decision string) {
	if m == nil {
		return
	}
	m.transitionTotal.WithLabelValues(decision).Inc()
}

// ObserveAuditEvent records one appended audit event.
func (m *MetricsService) ObserveAuditEvent(eventType string) {
	if m == nil {
		return
	}
	m.auditEvents.WithLabelValues(eventType).Inc()
}
