package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Auth metrics
	AuthOperationsTotal *prometheus.CounterVec
	RateLimitedTotal    *prometheus.CounterVec
	AccessDeniedTotal   *prometheus.CounterVec

	// Store metrics
	StoreErrorsTotal        *prometheus.CounterVec
	SessionsSweptTotal      prometheus.Counter
	SessionSweepErrorsTotal prometheus.Counter
	ActiveUsers             prometheus.Gauge

	// Database metrics
	DBConnectionsOpen      prometheus.Gauge
	DBConnectionsInUse     prometheus.Gauge
	DBConnectionsWaitCount prometheus.Gauge

	otel *OTelMetrics
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "innosistemas_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "innosistemas_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		AuthOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "innosistemas_auth_operations_total",
				Help: "Authentication operations by outcome",
			},
			[]string{"operation", "result"},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "innosistemas_rate_limited_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"route"},
		),
		AccessDeniedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "innosistemas_access_denied_total",
				Help: "Requests rejected by role or ownership checks",
			},
			[]string{"role"},
		),

		StoreErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "innosistemas_store_errors_total",
				Help: "Failed calls to the session and revocation stores",
			},
			[]string{"store", "operation"},
		),
		SessionsSweptTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "innosistemas_sessions_swept_total",
				Help: "Expired sessions removed by the sweeper",
			},
		),
		SessionSweepErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "innosistemas_session_sweep_errors_total",
				Help: "Failed session sweep runs",
			},
		),
		ActiveUsers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "innosistemas_active_users",
				Help: "Users with at least one active session",
			},
		),

		DBConnectionsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "innosistemas_db_connections_open",
				Help: "Number of open database connections",
			},
		),
		DBConnectionsInUse: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "innosistemas_db_connections_in_use",
				Help: "Number of database connections in use",
			},
		),
		DBConnectionsWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "innosistemas_db_connections_wait_count",
				Help: "Total number of connections waited for",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthOperationsTotal,
		m.RateLimitedTotal,
		m.AccessDeniedTotal,
		m.StoreErrorsTotal,
		m.SessionsSweptTotal,
		m.SessionSweepErrorsTotal,
		m.ActiveUsers,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBConnectionsWaitCount,
	)

	return m
}

// AttachOTel mirrors HTTP timings into OpenTelemetry instruments
func (m *Metrics) AttachOTel(o *OTelMetrics) {
	m.otel = o
}

// RecordAuthOperation counts one login/refresh/logout/authenticate outcome
func (m *Metrics) RecordAuthOperation(operation, result string) {
	m.AuthOperationsTotal.WithLabelValues(operation, result).Inc()
}

// RecordStoreError counts a failed store call
func (m *Metrics) RecordStoreError(store, operation string) {
	m.StoreErrorsTotal.WithLabelValues(store, operation).Inc()
}

// RecordSessionSweep records one sweeper run
func (m *Metrics) RecordSessionSweep(removed int, err error) {
	if err != nil {
		m.SessionSweepErrorsTotal.Inc()
	}
	m.SessionsSweptTotal.Add(float64(removed))
}

// RecordRateLimited counts a throttled request
func (m *Metrics) RecordRateLimited(route string) {
	m.RateLimitedTotal.WithLabelValues(route).Inc()
}

// RecordAccessDenied counts a forbidden request
func (m *Metrics) RecordAccessDenied(role string) {
	if role == "" {
		role = "anonymous"
	}
	m.AccessDeniedTotal.WithLabelValues(role).Inc()
}

// SetActiveUsers updates the active-user gauge
func (m *Metrics) SetActiveUsers(n int64) {
	m.ActiveUsers.Set(float64(n))
}

// UpdateDBStats copies pool statistics into the database gauges
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
	m.DBConnectionsInUse.Set(float64(stats.InUse))
	m.DBConnectionsWaitCount.Set(float64(stats.WaitCount))
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// routeLabel returns the mux route template so ids in paths do not explode label cardinality
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := routeLabel(r)
			elapsed := time.Since(start)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
			if metrics.otel != nil {
				metrics.otel.RecordHTTPRequest(r.Context(), r.Method, route, rw.statusCode, elapsed)
			}
		})
	}
}

// MetricsHandler serves the registry in Prometheus text format
func MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
