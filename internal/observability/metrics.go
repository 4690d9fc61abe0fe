package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "energy_forecast"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// feature pipeline and the forecast API.
type Metrics struct {
	RecordsExtracted   prometheus.Counter
	ExtractionDuration prometheus.Histogram
	SourceRetries      prometheus.Counter
	RowsLoaded         prometheus.Counter
	ValidationFailures prometheus.Counter
	PipelineRunning    prometheus.Gauge

	// Feature view rebuilds.
	ViewDeletionWarnings prometheus.Counter
	TrainingDatasetRows  prometheus.Histogram

	// Forecast API.
	APIRequests *prometheus.CounterVec // labels: route, status
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RecordsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_extracted_total",
			Help:      "Total records read from the Energi Data Service API.",
		}),
		ExtractionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Duration of a dataset extraction including metadata.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		SourceRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_retries_total",
			Help:      "Total retried requests against the source API.",
		}),
		RowsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_loaded_total",
			Help:      "Total rows inserted into the feature store.",
		}),
		ValidationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Total loads rejected by the expectation suite.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a feature pipeline run is active.",
		}),
		ViewDeletionWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "view_deletion_warnings_total",
			Help:      "Deletion failures swallowed while rebuilding a feature view.",
		}),
		TrainingDatasetRows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "training_dataset_rows",
			Help:      "Rows materialized per training dataset.",
			Buckets:   prometheus.ExponentialBuckets(100, 4, 10),
		}),
		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Forecast API requests by route and status code.",
		}, []string{"route", "status"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RecordsExtracted,
		m.ExtractionDuration,
		m.SourceRetries,
		m.RowsLoaded,
		m.ValidationFailures,
		m.PipelineRunning,
		m.ViewDeletionWarnings,
		m.TrainingDatasetRows,
		m.APIRequests,
	}
}

// WriteTextfile writes the default registry in the node_exporter textfile format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
