package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/rulegate/metric"
)

// Validation outcome labels
const (
	outcomeAllowed  = "allowed"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

// engineMetrics holds Prometheus metrics for rule engine operations.
type engineMetrics struct {
	// Validation traffic
	validations      *prometheus.CounterVec   // By engine, operation and outcome
	validateDuration *prometheus.HistogramVec // By engine and operation

	// Rule set administration
	replacements *prometheus.CounterVec // By engine and status (success/unauthorized)

	// State metrics
	rulesConfigured *prometheus.GaugeVec // Current rule count by engine
}

// newEngineMetrics creates and registers rule engine metrics with the
// provided registry.
func newEngineMetrics(registry *metric.Registry) (*engineMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	m := &engineMetrics{
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rulegate",
			Subsystem: "engine",
			Name:      "validations_total",
			Help:      "Total number of validation requests",
		}, []string{"engine", "operation", "outcome"}),

		validateDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rulegate",
			Subsystem: "engine",
			Name:      "validate_duration_seconds",
			Help:      "Validation duration in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}, []string{"engine", "operation"}),

		replacements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rulegate",
			Subsystem: "engine",
			Name:      "ruleset_replacements_total",
			Help:      "Total number of rule set replacement attempts",
		}, []string{"engine", "status"}), // status: success, unauthorized

		rulesConfigured: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rulegate",
			Subsystem: "engine",
			Name:      "rules_configured",
			Help:      "Current number of rules in the active sequence",
		}, []string{"engine"}),
	}

	if err := registry.RegisterCounterVec("engine", "validations", m.validations); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec("engine", "validate_duration", m.validateDuration); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("engine", "replacements", m.replacements); err != nil {
		return nil, err
	}
	if err := registry.RegisterGaugeVec("engine", "rules_configured", m.rulesConfigured); err != nil {
		return nil, err
	}

	return m, nil
}

// observeValidation records one validation with its outcome and duration.
// Safe to call on a nil receiver (metrics disabled).
func (m *engineMetrics) observeValidation(engine, operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(engine, operation, outcome).Inc()
	m.validateDuration.WithLabelValues(engine, operation).Observe(elapsed.Seconds())
}

// recordReplacement records one DefineRules attempt by status.
func (m *engineMetrics) recordReplacement(engine, status string) {
	if m == nil {
		return
	}
	m.replacements.WithLabelValues(engine, status).Inc()
}

// setRuleCount records the size of the active rule sequence.
func (m *engineMetrics) setRuleCount(engine string, count int) {
	if m == nil {
		return
	}
	m.rulesConfigured.WithLabelValues(engine).Set(float64(count))
}
