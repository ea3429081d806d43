package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "crew_scheduler"

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	appliedPairs    prometheus.Counter
	skippedProjects *prometheus.CounterVec
	failedProjects  prometheus.Counter
	statusChanges   *prometheus.CounterVec
	dayAdvances     *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		appliedPairs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attendance_pairs_applied_total",
			Help:      "Attendance rows written by assignment submissions.",
		}),
		skippedProjects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submission_projects_skipped_total",
			Help:      "Projects skipped in assignment submissions, by reason.",
		}, []string{"reason"}),
		failedProjects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submission_projects_failed_total",
			Help:      "Projects whose submission transaction was rolled back.",
		}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "project_status_changes_total",
			Help:      "Explicit project status edits, by target status.",
		}, []string{"status"}),
		dayAdvances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "day_advances_total",
			Help:      "Day advance attempts, by outcome.",
		}, []string{"outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.appliedPairs,
		m.skippedProjects,
		m.failedProjects,
		m.statusChanges,
		m.dayAdvances,
		m.requestDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) PairsApplied(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.appliedPairs.Add(float64(n))
}

func (m *Metrics) ProjectSkipped(reason string) {
	if m == nil {
		return
	}
	m.skippedProjects.WithLabelValues(reason).Inc()
}

func (m *Metrics) ProjectFailed() {
	if m == nil {
		return
	}
	m.failedProjects.Inc()
}

func (m *Metrics) StatusChanged(status string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(status).Inc()
}

// DayAdvanced records one trigger run; advanced is false when the date was already marked.
func (m *Metrics) DayAdvanced(advanced bool) {
	if m == nil {
		return
	}
	outcome := "noop"
	if advanced {
		outcome = "advanced"
	}
	m.dayAdvances.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route, status).Observe(seconds)
}
