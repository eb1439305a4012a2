package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Auth outcomes reported by the middleware and the login flow.
const (
	OutcomeOK           = "ok"
	OutcomeNoToken      = "no_token"
	OutcomeInvalidToken = "invalid_token"
	OutcomeUnknownUser  = "unknown_user"
	OutcomeForbidden    = "forbidden"
	OutcomeLocked       = "locked"
)

// Metrics owns its registry so tests can build as many as they like.
// All methods are safe on a nil receiver.
type Metrics struct {
	reg *prometheus.Registry

	authOutcomes         *prometheus.CounterVec
	tokensIssued         *prometheus.CounterVec
	sessionWriteFailures prometheus.Counter
	sessionsSwept        prometheus.Counter
	httpRequests         *prometheus.CounterVec
	httpDuration         *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		authOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "citbif_auth_outcomes_total",
			Help: "Authentication and authorization decisions by outcome.",
		}, []string{"outcome"}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "citbif_tokens_issued_total",
			Help: "Signed tokens issued by kind.",
		}, []string{"kind"}),
		sessionWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "citbif_session_write_failures_total",
			Help: "Refresh tokens issued without a persisted session.",
		}),
		sessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "citbif_sessions_swept_total",
			Help: "Expired sessions removed by the sweeper.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.authOutcomes, m.tokensIssued, m.sessionWriteFailures, m.sessionsSwept,
		m.httpRequests, m.httpDuration,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) AuthOutcome(outcome string) {
	if m == nil {
		return
	}
	m.authOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) TokenIssued(kind string) {
	if m == nil {
		return
	}
	m.tokensIssued.WithLabelValues(kind).Inc()
}

func (m *Metrics) SessionWriteFailed() {
	if m == nil {
		return
	}
	m.sessionWriteFailures.Inc()
}

func (m *Metrics) SessionsSwept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsSwept.Add(float64(n))
}

// Instrument records request count and latency labelled by chi route
// pattern, so path parameters do not explode cardinality.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := strconv.Itoa(sw.code)
		m.httpRequests.WithLabelValues(r.Method, route, status).Inc()
		m.httpDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
