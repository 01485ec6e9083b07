package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder Prometheus 지표 수집기
// pipeline.Observer / pipeline.CacheObserver 를 구현
type Recorder struct {
	registry      *prometheus.Registry
	stageDuration *prometheus.HistogramVec
	stageErrors   *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	jobRuns       *prometheus.CounterVec
}

// New creates a recorder on its own registry (Go/process collectors included)
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		stageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockanalyzer_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"stage", "status"},
		),
		stageErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockanalyzer_stage_errors_total",
				Help: "Total number of failed pipeline stages",
			},
			[]string{"stage"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockanalyzer_report_cache_lookups_total",
				Help: "Report cache lookups by result",
			},
			[]string{"result"},
		),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockanalyzer_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockanalyzer_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		jobRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockanalyzer_job_runs_total",
				Help: "Scheduled job executions by result",
			},
			[]string{"job", "status"},
		),
	}
}

// ObserveStage records one pipeline stage
func (r *Recorder) ObserveStage(stage string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		r.stageErrors.WithLabelValues(stage).Inc()
	}
	r.stageDuration.WithLabelValues(stage, status).Observe(elapsed.Seconds())
}

// ObserveCache records a report cache lookup
func (r *Recorder) ObserveCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveHTTP records a served request. route should be the template, not the raw path.
func (r *Recorder) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	r.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// ObserveJob records a scheduler run
func (r *Recorder) ObserveJob(job string, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	r.jobRuns.WithLabelValues(job, status).Inc()
}

// Registry exposes the underlying registry (tests, extra collectors)
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the /metrics endpoint
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
