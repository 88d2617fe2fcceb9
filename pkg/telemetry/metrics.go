package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics provides Prometheus metrics for composer.
// A composer invocation is short-lived, so metrics are not served over
// HTTP; they are written to a node-exporter textfile when the command ends.
type Metrics struct {
	config MetricsConfig

	// Stack action metrics
	stackActions        *prometheus.CounterVec
	stackActionDuration *prometheus.HistogramVec

	// Batch metrics
	batches       *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec

	// Catalog metrics
	stacksDiscovered  prometheus.Gauge
	validationIssues  *prometheus.GaugeVec
	metadataMutations *prometheus.CounterVec

	// Error metrics
	errorsByCode *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// no-op instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		stackActions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stack_actions_total",
				Help:      "Total number of stack start/stop actions",
			},
			[]string{"action", "result"},
		),
		stackActionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stack_action_duration_seconds",
				Help:      "Duration of stack actions in seconds",
				Buckets:   buckets,
			},
			[]string{"action"},
		),

		batches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_total",
				Help:      "Total number of lifecycle batches executed",
			},
			[]string{"operation", "status"},
		),
		batchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_duration_seconds",
				Help:      "Duration of lifecycle batches in seconds",
				Buckets:   buckets,
			},
			[]string{"operation"},
		),

		stacksDiscovered: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stacks_discovered",
				Help:      "Number of stacks found in the stacks directory",
			},
		),
		validationIssues: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "validation_issues",
				Help:      "Number of findings from the last validation pass",
			},
			[]string{"severity"},
		),
		metadataMutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "metadata_mutations_total",
				Help:      "Total number of metadata edits",
			},
			[]string{"action"},
		),

		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of command errors by code",
			},
			[]string{"code"},
		),
	}

	registry.MustRegister(
		m.stackActions,
		m.stackActionDuration,
		m.batches,
		m.batchDuration,
		m.stacksDiscovered,
		m.validationIssues,
		m.metadataMutations,
		m.errorsByCode,
	)

	return m, nil
}

// Stack Action Metrics

// RecordStackAction records one start or stop action.
func (m *Metrics) RecordStackAction(action, result string, duration time.Duration) {
	if m.stackActions == nil {
		return
	}
	m.stackActions.WithLabelValues(action, result).Inc()
	m.stackActionDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// Batch Metrics

// RecordBatch records a completed lifecycle batch.
func (m *Metrics) RecordBatch(operation, status string, duration time.Duration) {
	if m.batches == nil {
		return
	}
	m.batches.WithLabelValues(operation, status).Inc()
	m.batchDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// Catalog Metrics

// SetStacksDiscovered sets the number of discovered stacks.
func (m *Metrics) SetStacksDiscovered(count int) {
	if m.stacksDiscovered == nil {
		return
	}
	m.stacksDiscovered.Set(float64(count))
}

// SetValidationIssues sets the finding count for a severity.
func (m *Metrics) SetValidationIssues(severity string, count int) {
	if m.validationIssues == nil {
		return
	}
	m.validationIssues.WithLabelValues(severity).Set(float64(count))
}

// RecordMetadataMutation records a metadata edit.
func (m *Metrics) RecordMetadataMutation(action string) {
	if m.metadataMutations == nil {
		return
	}
	m.metadataMutations.WithLabelValues(action).Inc()
}

// Error Metrics

// RecordError records a command error by code.
func (m *Metrics) RecordError(code string) {
	if m.errorsByCode == nil {
		return
	}
	if code == "" {
		code = "UNKNOWN"
	}
	m.errorsByCode.WithLabelValues(code).Inc()
}

// Registry returns the underlying registry, or nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes every metric to path in the text exposition format.
// It does nothing when metrics are disabled or path is empty.
func (m *Metrics) WriteTextfile(path string) error {
	if m.registry == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
