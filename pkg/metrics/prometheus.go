package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	runsTotal         *prometheus.CounterVec
	runDuration       *prometheus.HistogramVec
	entitiesTotal     *prometheus.CounterVec
	techniqueWins     *prometheus.CounterVec
	candidateFailures *prometheus.CounterVec
	batchDuration     *prometheus.HistogramVec
	runProgress       prometheus.Gauge
	errorsTotal       *prometheus.CounterVec
	latency           *prometheus.HistogramVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// New registers the recorder's collectors on reg. A nil reg means the default registry.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "demandcast_runs_total",
				Help: "Forecast runs by terminal status",
			},
			[]string{"status"},
		),
		runDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "demandcast_run_duration_seconds",
				Help:    "Wall time of forecast runs",
				Buckets: []float64{30, 60, 300, 900, 1800, 3600, 7200, 14400},
			},
			[]string{"status"},
		),
		entitiesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "demandcast_entities_total",
				Help: "Entities processed by outcome",
			},
			[]string{"outcome"},
		),
		techniqueWins: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "demandcast_technique_wins_total",
				Help: "Entities won per forecasting technique",
			},
			[]string{"technique"},
		),
		candidateFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "demandcast_candidate_failures_total",
				Help: "Candidate model fits that failed",
			},
			[]string{"technique"},
		),
		batchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "demandcast_batch_duration_seconds",
				Help:    "Duration of entity batches",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
			[]string{"outcome"},
		),
		runProgress: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "demandcast_run_progress_percent",
				Help: "Progress of the current run; -1 after a fatal error",
			},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "demandcast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "demandcast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "demandcast_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"method", "route", "code"},
		),
		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "demandcast_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

func (r *Recorder) RecordRun(status string, d time.Duration) {
	r.runsTotal.WithLabelValues(status).Inc()
	r.runDuration.WithLabelValues(status).Observe(d.Seconds())
}

func (r *Recorder) RecordEntity(outcome string) {
	r.entitiesTotal.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordTechniqueWin(technique string) {
	r.techniqueWins.WithLabelValues(technique).Inc()
}

func (r *Recorder) RecordCandidateFailure(technique string) {
	r.candidateFailures.WithLabelValues(technique).Inc()
}

func (r *Recorder) RecordBatch(outcome string, d time.Duration) {
	r.batchDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (r *Recorder) RecordProgress(percent int) {
	r.runProgress.Set(float64(percent))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordHTTP is called by the HTTP middleware once per request.
func (r *Recorder) RecordHTTP(method, route string, code int, d time.Duration) {
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
