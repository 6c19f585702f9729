// Package metrics provides Prometheus metrics for the schedule service.
package metrics

import (
	"database/sql"
	"driver-schedule-service/internal/domain"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Registry is the Prometheus registry for this metrics instance
	Registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Planning metrics
	SchedulesTotal *prometheus.CounterVec
	StopsTotal     *prometheus.CounterVec
	SafetyScore    prometheus.Histogram
}

// New creates and registers all application metrics with a new registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedule_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "schedule_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	schedulesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedule_computations_total",
			Help: "Schedule computations by result (ok or error kind)",
		},
		[]string{"result"},
	)

	stopsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedule_stops_total",
			Help: "Stops placed in computed schedules",
		},
		[]string{"kind", "optimized"},
	)

	safetyScore := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "schedule_safety_score",
		Help:    "Safety score of computed schedules",
		Buckets: prometheus.LinearBuckets(10, 10, 10),
	})

	registry.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		schedulesTotal,
		stopsTotal,
		safetyScore,
	)

	return &Metrics{
		Registry:            registry,
		HTTPRequestsTotal:   httpRequestsTotal,
		HTTPRequestDuration: httpRequestDuration,
		SchedulesTotal:      schedulesTotal,
		StopsTotal:          stopsTotal,
		SafetyScore:         safetyScore,
	}
}

// RegisterDB exports connection pool statistics for db.
func (m *Metrics) RegisterDB(db *sql.DB, name string) error {
	if m == nil || db == nil {
		return nil
	}
	return m.Registry.Register(collectors.NewDBStatsCollector(db, name))
}

// ObserveSchedule records a successful computation.
func (m *Metrics) ObserveSchedule(s *domain.Schedule) {
	if m == nil || s == nil {
		return
	}
	m.SchedulesTotal.WithLabelValues("ok").Inc()
	m.SafetyScore.Observe(s.SafetyScore)
	for _, e := range s.Stops() {
		m.StopsTotal.WithLabelValues(string(e.Kind), strconv.FormatBool(e.Optimized)).Inc()
	}
}

// ObserveError records a failed computation by error kind.
func (m *Metrics) ObserveError(err error) {
	if m == nil || err == nil {
		return
	}
	m.SchedulesTotal.WithLabelValues(domain.ErrorKind(err)).Inc()
}

// ObserveHTTP records one served request. path should be the route pattern,
// not the raw URL, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, path string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(dur.Seconds())
}
