// Package metrics provides Prometheus metrics for the argonauts pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage outcome labels.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Manager owns every pipeline metric.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Stage metrics
	stageDuration *prometheus.HistogramVec
	stageRuns     *prometheus.CounterVec
	stageRecords  *prometheus.GaugeVec

	// Generator
	sequencesGenerated prometheus.Counter
	uniqueSequences    prometheus.Gauge

	// Embedding
	embeddingKL         prometheus.Gauge
	embeddingIterations prometheus.Counter

	// Clustering
	clusters    prometheus.Gauge
	noisePoints prometheus.Gauge

	// Viewer
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	reportReloads       prometheus.Counter

	errorsByComponent *prometheus.CounterVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "argonauts",
		subsystem:        "pipeline",
		histogramBuckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 60000, 300000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one block per collector
	auto := promauto.With(m.registry)

	m.stageDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stage_duration_milliseconds",
		Help:      "Wall time of each pipeline stage in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"stage"})

	m.stageRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stage_runs_total",
		Help:      "Number of stage executions by outcome",
	}, []string{"stage", "status"})

	m.stageRecords = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stage_records",
		Help:      "Records written by the last execution of each stage",
	}, []string{"stage"})

	m.sequencesGenerated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sequences_generated_total",
		Help:      "Synthetic ASV reads generated",
	})

	m.uniqueSequences = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "unique_sequences",
		Help:      "Distinct sequences in the last generated dataset",
	})

	m.embeddingKL = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "embedding_kl_divergence",
		Help:      "KL divergence reported by the last t-SNE optimization",
	})

	m.embeddingIterations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "embedding_iterations_total",
		Help:      "Gradient descent iterations run by t-SNE",
	})

	m.clusters = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "clusters",
		Help:      "Non-noise clusters found by the last DBSCAN pass",
	})

	m.noisePoints = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "noise_points",
		Help:      "Points labelled noise by the last DBSCAN pass",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Viewer HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "Viewer HTTP request duration in milliseconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.reportReloads = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "report_reloads_total",
		Help:      "Times the viewer reloaded output files after a change on disk",
	})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_total",
		Help:      "Errors by component and type",
	}, []string{"component", "error_type"})
}

// RecordStage records one stage execution.
func RecordStage(stage, status string, durationMs float64) {
	globalManager.stageDuration.WithLabelValues(stage).Observe(durationMs)
	globalManager.stageRuns.WithLabelValues(stage, status).Inc()
}

// UpdateStageRecords sets the number of records a stage wrote.
func UpdateStageRecords(stage string, count int) {
	globalManager.stageRecords.WithLabelValues(stage).Set(float64(count))
}

// RecordSequencesGenerated adds to the generated reads counter.
func RecordSequencesGenerated(count int) {
	globalManager.sequencesGenerated.Add(float64(count))
}

// UpdateUniqueSequences sets the distinct sequence gauge.
func UpdateUniqueSequences(count int) {
	globalManager.uniqueSequences.Set(float64(count))
}

// UpdateEmbeddingKL sets the final KL divergence.
func UpdateEmbeddingKL(kl float64) {
	globalManager.embeddingKL.Set(kl)
}

// RecordEmbeddingIterations adds optimizer iterations.
func RecordEmbeddingIterations(n int) {
	globalManager.embeddingIterations.Add(float64(n))
}

// UpdateClusters sets cluster and noise gauges.
func UpdateClusters(clusters, noise int) {
	globalManager.clusters.Set(float64(clusters))
	globalManager.noisePoints.Set(float64(noise))
}

// RecordHTTPRequest records one viewer request.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordReportReload increments the reload counter.
func RecordReportReload() {
	globalManager.reportReloads.Inc()
}

// RecordError records an error with component and type labels.
func RecordError(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
