// Package metrics provides Prometheus metrics collection for the FCC
// prediction service. It covers model invocations, pipeline runs, range
// violations and upload handling, exposed via the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Model metrics, labelled by model name
	MLPredictions *prometheus.CounterVec   // Successful model invocations
	MLFailures    *prometheus.CounterVec   // Failed model invocations
	MLTimeouts    *prometheus.CounterVec   // Model invocations that hit their deadline
	MLLatency     *prometheus.HistogramVec // Model invocation latency in seconds
	MLModelAge    *prometheus.GaugeVec     // Age of the model artefact in seconds

	// Pipeline metrics
	RunsTotal       prometheus.Counter     // Completed pipeline runs
	RunFailures     *prometheus.CounterVec // Failed runs by reason
	RowsPredicted   prometheus.Counter     // Rows that went through a successful run
	RangeViolations *prometheus.CounterVec // Advisory range violations by target and bound
	RunDuration     prometheus.Histogram   // End-to-end run duration
	OptimumValue    prometheus.Histogram   // Distribution of per-row optimum values

	// HTTP metrics
	UploadsTotal  *prometheus.CounterVec // Uploads by response status class
	UploadBytes   prometheus.Histogram   // Size of uploaded files
	ActiveRuns    prometheus.Gauge       // Runs currently executing
	StoreFailures prometheus.Counter     // Failures writing run history
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		MLPredictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ml_predictions_total",
			Help: "Total number of successful model invocations",
		}, []string{"model"}),
		MLFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ml_failures_total",
			Help: "Total number of failed model invocations",
		}, []string{"model"}),
		MLTimeouts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ml_timeouts_total",
			Help: "Total number of model invocations that timed out",
		}, []string{"model"}),
		MLLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ml_latency_seconds",
			Help:    "Model invocation latency in seconds (whole batch)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10, 30},
		}, []string{"model"}),
		MLModelAge: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ml_model_age_seconds",
			Help: "Age of the model artefact in seconds at load time",
		}, []string{"model"}),
		RunsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total number of completed pipeline runs",
		}),
		RunFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_failures_total",
			Help: "Total number of failed pipeline runs by reason",
		}, []string{"reason"}),
		RowsPredicted: factory.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_rows_total",
			Help: "Total number of rows predicted by successful runs",
		}),
		RangeViolations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "range_violations_total",
			Help: "Total number of predicted values outside their configured range",
		}, []string{"target", "bound"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pipeline_run_duration_seconds",
			Help:    "Duration of pipeline runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
		}),
		OptimumValue: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "optimum_value",
			Help:    "Distribution of per-row optimum values (economic value per t/h CO2)",
			Buckets: prometheus.ExponentialBuckets(1, 2, 16),
		}),
		UploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "uploads_total",
			Help: "Total number of uploaded files by response status",
		}, []string{"status"}),
		UploadBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "upload_bytes",
			Help:    "Size of uploaded files in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		}),
		ActiveRuns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pipeline_active_runs",
			Help: "Number of pipeline runs currently executing",
		}),
		StoreFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "run_store_failures_total",
			Help: "Total number of failures writing run history",
		}),
	}
}
