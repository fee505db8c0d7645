package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Pipeline metrics
	pipelineRuns     *prometheus.CounterVec
	pipelineDuration prometheus.Histogram
	stageDuration    *prometheus.HistogramVec
	fetchTotal       *prometheus.CounterVec
	screenRuns       prometheus.Counter
	screenDuration   prometheus.Histogram
	screenUniverse   prometheus.Gauge
	screenPassed     prometheus.Gauge
	klineStocks      prometheus.Gauge
	klineRecords     prometheus.Gauge

	// Results service metrics
	ingestTotal   *prometheus.CounterVec
	reportsStored prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	// Pipeline metrics
	r.pipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sieve_pipeline_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"status"},
	)
	r.pipelineDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sieve_pipeline_duration_seconds",
			Help:    "Whole pipeline run duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)
	r.stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sieve_pipeline_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"stage"},
	)
	r.fetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sieve_fetch_total",
			Help: "Per-stock fetch outcomes",
		},
		[]string{"source", "status"},
	)
	r.screenRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sieve_screen_runs_total",
			Help: "Total number of screening runs completed",
		},
	)
	r.screenDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sieve_screen_duration_seconds",
			Help:    "Screening run duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)
	r.screenUniverse = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sieve_screen_universe_stocks",
			Help: "Number of stocks evaluated in the last screening run",
		},
	)
	r.screenPassed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sieve_screen_passed_stocks",
			Help: "Number of results in the last screening run",
		},
	)
	r.klineStocks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sieve_kline_stocks",
			Help: "Number of stocks in the k-line cache",
		},
	)
	r.klineRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sieve_kline_records",
			Help: "Number of daily bars in the k-line cache",
		},
	)

	reg.MustRegister(r.pipelineRuns)
	reg.MustRegister(r.pipelineDuration)
	reg.MustRegister(r.stageDuration)
	reg.MustRegister(r.fetchTotal)
	reg.MustRegister(r.screenRuns)
	reg.MustRegister(r.screenDuration)
	reg.MustRegister(r.screenUniverse)
	reg.MustRegister(r.screenPassed)
	reg.MustRegister(r.klineStocks)
	reg.MustRegister(r.klineRecords)

	// Results service metrics
	r.ingestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sieve_ingest_total",
			Help: "Ingest requests by outcome",
		},
		[]string{"status"},
	)
	r.reportsStored = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sieve_reports_stored",
			Help: "Number of screening reports currently held",
		},
	)

	reg.MustRegister(r.ingestTotal)
	reg.MustRegister(r.reportsStored)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordRun records a completed pipeline run.
func (r *Registry) RecordRun(status string, duration float64) {
	r.pipelineRuns.WithLabelValues(status).Inc()
	r.pipelineDuration.Observe(duration)
}

// RecordStage records the duration of one pipeline stage.
func (r *Registry) RecordStage(stage string, duration float64) {
	r.stageDuration.WithLabelValues(stage).Observe(duration)
}

// RecordFetch records a per-stock fetch outcome (skipped, incremental,
// full or failed).
func (r *Registry) RecordFetch(source, status string) {
	r.fetchTotal.WithLabelValues(source, status).Inc()
}

// RecordScreen records a screening run.
func (r *Registry) RecordScreen(duration float64, universe, passed int) {
	r.screenRuns.Inc()
	r.screenDuration.Observe(duration)
	r.screenUniverse.Set(float64(universe))
	r.screenPassed.Set(float64(passed))
}

// SetKlineStats publishes k-line cache sizes.
func (r *Registry) SetKlineStats(stocks, records int64) {
	r.klineStocks.Set(float64(stocks))
	r.klineRecords.Set(float64(records))
}

// RecordIngest records an ingest request outcome.
func (r *Registry) RecordIngest(status string) {
	r.ingestTotal.WithLabelValues(status).Inc()
}

// SetReportsStored sets the number of reports held by the store.
func (r *Registry) SetReportsStored(count int) {
	r.reportsStored.Set(float64(count))
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
