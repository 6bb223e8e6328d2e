package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/stylize/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry          *prometheus.Registry
	requestTotal      *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	rateLimitRejected *prometheus.CounterVec
	uploadsTotal      *prometheus.CounterVec
	submitsTotal      *prometheus.CounterVec
}

func newMetrics(sessions *store.SessionStore) *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stylize_web_requests_total",
			Help: "Total HTTP requests handled by the web front.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stylize_web_request_duration_seconds",
			Help:    "Web request latency in seconds. Submit includes the backend call.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		rateLimitRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stylize_web_rate_limit_rejections_total",
			Help: "Total requests rejected by rate limiting.",
		}, []string{"route"}),
		uploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stylize_web_uploads_total",
			Help: "Uploads by input channel and whether they were attached.",
		}, []string{"channel", "outcome"}),
		submitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stylize_web_submits_total",
			Help: "Form submits by function and resulting output state.",
		}, []string{"function", "outcome"}),
	}
	registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.rateLimitRejected,
		m.uploadsTotal,
		m.submitsTotal,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "stylize_web_sessions",
			Help: "Live form sessions.",
		}, func() float64 { return float64(sessions.Len()) }),
	)
	return m
}

func (m *metrics) metricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := routeLabel(r.URL.Path)
		status := strconv.Itoa(recorder.status)

		m.requestTotal.WithLabelValues(r.Method, route, status).Inc()
		m.requestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

// routeLabel keeps result ids out of metric labels.
func routeLabel(path string) string {
	switch {
	case path == "/":
		return "/"
	case strings.HasPrefix(path, "/results/"):
		return "/results/{id}"
	case path == "/select", path == "/options", path == "/upload", path == "/submit",
		path == "/functions", path == "/healthz", path == "/metrics":
		return path
	default:
		return "other"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
