package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds all Prometheus metric collectors for the tasker server.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPInFlight        prometheus.Gauge

	// Auth metrics.
	AuthFailuresTotal  *prometheus.CounterVec
	AuthSuccessesTotal *prometheus.CounterVec

	RateLimitRejectionsTotal *prometheus.CounterVec

	// Domain metrics.
	InvitationsTotal         *prometheus.CounterVec
	CascadeDeletedTasksTotal prometheus.Counter

	// Server lifecycle.
	ServerStartTime prometheus.Gauge
}

// New creates and registers all Prometheus metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tasker_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tasker_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path_pattern"}),

		HTTPInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tasker_http_in_flight_requests",
			Help: "Number of HTTP requests currently being served.",
		}),

		AuthFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tasker_auth_failures_total",
			Help: "Total number of authentication failures.",
		}, []string{"auth_type"}),

		AuthSuccessesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tasker_auth_successes_total",
			Help: "Total number of successful authentications.",
		}, []string{"auth_type"}),

		RateLimitRejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tasker_ratelimit_rejections_total",
			Help: "Total number of rate limit rejections.",
		}, []string{"scope"}),

		InvitationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tasker_invitations_total",
			Help: "Invitations created and resolved, by resulting status.",
		}, []string{"status"}),

		CascadeDeletedTasksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tasker_cascade_deleted_tasks_total",
			Help: "Tasks removed together with their group.",
		}),

		ServerStartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tasker_server_start_time_seconds",
			Help: "Unix timestamp when the server started.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPInFlight,
		m.AuthFailuresTotal,
		m.AuthSuccessesTotal,
		m.RateLimitRejectionsTotal,
		m.InvitationsTotal,
		m.CascadeDeletedTasksTotal,
		m.ServerStartTime,
	)

	m.ServerStartTime.Set(float64(time.Now().Unix()))

	// Register Go runtime and process collectors.
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry returns the private Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterDBPoolCollector exposes the Postgres pool behind the stores as
// tasker_db_pool_* series.
func (m *Metrics) RegisterDBPoolCollector(stat DBPoolStatFunc) {
	m.registry.MustRegister(newDBPoolCollector(stat))
}

// RegisterActiveSessions exposes the number of live sessions as a gauge
// evaluated at scrape time.
func (m *Metrics) RegisterActiveSessions(count func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "tasker_active_sessions",
		Help: "Number of sessions held by the in-memory store.",
	}, count))
}

// IncAuthFailure increments the auth failure counter for the given auth type.
func (m *Metrics) IncAuthFailure(authType string) {
	if m == nil {
		return
	}
	m.AuthFailuresTotal.WithLabelValues(authType).Inc()
}

// IncAuthSuccess increments the auth success counter for the given auth type.
func (m *Metrics) IncAuthSuccess(authType string) {
	if m == nil {
		return
	}
	m.AuthSuccessesTotal.WithLabelValues(authType).Inc()
}

// IncRateLimitRejection increments the rate limit rejection counter.
func (m *Metrics) IncRateLimitRejection(scope string) {
	if m == nil {
		return
	}
	m.RateLimitRejectionsTotal.WithLabelValues(scope).Inc()
}

// IncInvitation records an invitation reaching status.
func (m *Metrics) IncInvitation(status string) {
	if m == nil {
		return
	}
	m.InvitationsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) AddCascadeDeletedTasks(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.CascadeDeletedTasksTotal.Add(float64(n))
}
