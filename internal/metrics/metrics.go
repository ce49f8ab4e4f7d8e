// Package metrics exposes Prometheus collectors for the HTTP surface, the
// TMDB gateway and session housekeeping, plus the /metrics handler.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serije_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "serije_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "serije_http_active_requests",
			Help: "Current number of in-flight HTTP requests",
		},
	)

	// TMDB Gateway Metrics
	TMDBRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serije_tmdb_requests_total",
			Help: "Total number of TMDB requests by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"}, // "ok", "upstream_error", "transport_error", "breaker_open"
	)

	TMDBRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "serije_tmdb_request_duration_seconds",
			Help:    "TMDB request duration in seconds, retries included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	TMDBRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serije_tmdb_retries_total",
			Help: "Total number of retried TMDB requests",
		},
		[]string{"endpoint"},
	)

	TMDBBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "serije_tmdb_breaker_state",
			Help: "TMDB circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	// Auth Metrics
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serije_login_attempts_total",
			Help: "Total number of login attempts by result",
		},
		[]string{"result"}, // "success", "failure"
	)

	SessionsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "serije_sessions_purged_total",
			Help: "Total number of expired sessions removed",
		},
	)
)

// RecordHTTPRequest records one finished HTTP request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordTMDBRequest records one TMDB gateway call.
func RecordTMDBRequest(endpoint, outcome string, duration time.Duration) {
	TMDBRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	TMDBRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordTMDBRetry counts a retried TMDB call.
func RecordTMDBRetry(endpoint string) {
	TMDBRetries.WithLabelValues(endpoint).Inc()
}

// SetTMDBBreakerState publishes the breaker state as 0 (closed), 1 (half-open) or 2 (open).
func SetTMDBBreakerState(state int) {
	TMDBBreakerState.Set(float64(state))
}

// RecordLogin counts a login attempt.
func RecordLogin(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	LoginAttempts.WithLabelValues(result).Inc()
}

// RecordSessionsPurged adds n to the purged sessions counter.
func RecordSessionsPurged(n int64) {
	if n > 0 {
		SessionsPurged.Add(float64(n))
	}
}

// Middleware records request count, latency and in-flight requests.
// The route label is the matched chi pattern so path parameters do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		HTTPActiveRequests.Inc()
		defer HTTPActiveRequests.Dec()

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordHTTPRequest(r.Method, routePattern(r), status, time.Since(start))
	})
}

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
