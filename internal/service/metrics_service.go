package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP surface
// and the request workflow.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	submissions      *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	paymentDecisions *prometheus.CounterVec
	notifyFailures   prometheus.Counter
	queueRetries     prometheus.Counter
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

	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "document_requests_submitted_total",
		Help: "Document requests submitted, labelled by document type",
	}, []string{"document_type"})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "document_request_transitions_total",
		Help: "Request status transitions, labelled by target status",
	}, []string{"status"})

	paymentDecisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_decisions_total",
		Help: "Officer payment decisions",
	}, []string{"decision"})

	notifyFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notification_enqueue_failures_total",
		Help: "Student notifications dropped because the queue was full",
	})

	queueRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "queue_number_retries_total",
		Help: "Queue number collisions that forced a regenerate-and-retry",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, submissions, transitions, paymentDecisions, notifyFailures, queueRetries, goroutines)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		submissions:      submissions,
		transitions:      transitions,
		paymentDecisions: paymentDecisions,
		notifyFailures:   notifyFailures,
		queueRetries:     queueRetries,
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

// RecordSubmission counts a submitted request by document type.
func (m *MetricsService) RecordSubmission(documentType string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(documentType).Inc()
}

// RecordTransition counts a successful status transition.
func (m *MetricsService) RecordTransition(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

// RecordPaymentDecision counts a verify or reject decision.
func (m *MetricsService) RecordPaymentDecision(decision string) {
	if m == nil {
		return
	}
	m.paymentDecisions.WithLabelValues(decision).Inc()
}

// RecordNotificationFailure counts a dropped notification.
func (m *MetricsService) RecordNotificationFailure() {
	if m == nil {
		return
	}
	m.notifyFailures.Inc()
}

// RecordQueueNumberRetry counts a queue number collision.
func (m *MetricsService) RecordQueueNumberRetry() {
	if m == nil {
		return
	}
	m.queueRetries.Inc()
}
