package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry          *prometheus.Registry
	jobsTotal         *prometheus.CounterVec
	jobDuration       *prometheus.HistogramVec
	activeJobs        prometheus.Gauge
	backendFailures   *prometheus.CounterVec
	sourceBytesTotal  prometheus.Counter
	resultBytesTotal  prometheus.Counter
	downscaledSources prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stylize_worker_jobs_total",
			Help: "Total batch jobs by function and final status.",
		}, []string{"function", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stylize_worker_job_duration_seconds",
			Help:    "Wall time of each batch job, including the backend call.",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"function", "status"}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stylize_worker_active_jobs",
			Help: "Jobs currently holding a worker slot.",
		}),
		backendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stylize_worker_backend_failures_total",
			Help: "Failed transform requests by HTTP status, 0 for transport errors.",
		}, []string{"status"}),
		sourceBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stylize_worker_source_bytes_total",
			Help: "Bytes uploaded to the transform backend.",
		}),
		resultBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stylize_worker_result_bytes_total",
			Help: "Bytes of stylized results written to object storage.",
		}),
		downscaledSources: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stylize_worker_downscaled_sources_total",
			Help: "Sources shrunk to fit the backend upload limit.",
		}),
	}

	registry.MustRegister(
		m.jobsTotal,
		m.jobDuration,
		m.activeJobs,
		m.backendFailures,
		m.sourceBytesTotal,
		m.resultBytesTotal,
		m.downscaledSources,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
