package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultInvalid = "invalid"
	ResultNone    = "none"
	ResultLimited = "rate_limited"
)

// Metrics holds all Prometheus metrics of the auth server
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Handshake metrics
	HandshakeTotal    *prometheus.CounterVec
	TokensIssuedTotal *prometheus.CounterVec

	// Backend metrics
	BackendCallsTotal   *prometheus.CounterVec
	BackendCallDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers all metrics on registry. A nil registry gets a fresh one.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sso_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sso_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HandshakeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sso_handshake_total",
				Help: "Handshake operations by operation and result",
			},
			[]string{"operation", "result"},
		),
		TokensIssuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sso_tokens_issued_total",
				Help: "Access tokens issued by client id",
			},
			[]string{"client_id"},
		),
		BackendCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sso_backend_calls_total",
				Help: "Identity backend calls by operation and result",
			},
			[]string{"operation", "result"},
		),
		BackendCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sso_backend_call_duration_seconds",
				Help:    "Identity backend call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HandshakeTotal,
		m.TokensIssuedTotal,
		m.BackendCallsTotal,
		m.BackendCallDuration,
	)
	return m
}

// Handshake records one controller operation
func (m *Metrics) Handshake(operation, result string) {
	if m == nil {
		return
	}
	m.HandshakeTotal.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) TokenIssued(clientID string) {
	if m == nil {
		return
	}
	if clientID == "" {
		clientID = ResultNone
	}
	m.TokensIssuedTotal.WithLabelValues(clientID).Inc()
}

// BackendCall records one identity backend call started at start
func (m *Metrics) BackendCall(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	m.BackendCallsTotal.WithLabelValues(operation, result).Inc()
	m.BackendCallDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMiddleware counts requests labelled by the ServeMux pattern that matched them.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.statusCode)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
