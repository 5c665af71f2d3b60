package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and
// its background workers.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	studentsCreated *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	importRows      *prometheus.CounterVec
	promotions      *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
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

	studentsCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "students_created_total",
		Help: "Students created, labelled by creation pathway",
	}, []string{"method"})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "application_transitions_total",
		Help: "Admission application status transitions",
	}, []string{"to_status"})

	importRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "import_rows_total",
		Help: "CSV import rows processed, labelled by outcome",
	}, []string{"outcome"})

	promotions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "promotions_total",
		Help: "Batch promotion outcomes per student",
	}, []string{"outcome"})

	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "background_job_duration_seconds",
		Help:    "Duration of background jobs",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, studentsCreated,
		transitions, importRows, promotions, jobDuration, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		studentsCreated: studentsCreated,
		transitions:     transitions,
		importRows:      importRows,
		promotions:      promotions,
		jobDuration:     jobDuration,
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

// CountStudentCreated tallies one created student by pathway.
func (m *MetricsService) CountStudentCreated(method string) {
	if m == nil {
		return
	}
	m.studentsCreated.WithLabelValues(method).Inc()
}

// CountTransition tallies one application status transition.
func (m *MetricsService) CountTransition(toStatus string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(toStatus).Inc()
}

// CountImportRows tallies processed import rows.
func (m *MetricsService) CountImportRows(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.importRows.WithLabelValues(outcome).Add(float64(n))
}

// CountPromotions tallies per-student promotion outcomes.
func (m *MetricsService) CountPromotions(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.promotions.WithLabelValues(outcome).Add(float64(n))
}

// ObserveJob records one background job run.
func (m *MetricsService) ObserveJob(task string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(task).Observe(duration.Seconds())
}
