package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains platform-level metrics shared by all services
// (not domain-specific: the engine registers its own metrics on top).
type Metrics struct {
	// Service metrics
	ServiceStatus *prometheus.GaugeVec
	ErrorsTotal   *prometheus.CounterVec

	// Event delivery metrics
	EventsPublished *prometheus.CounterVec

	// NATS metrics
	NATSConnected  prometheus.Gauge
	NATSReconnects prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ServiceStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "rulegate",
				Subsystem: "service",
				Name:      "status",
				Help:      "Service status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)",
			},
			[]string{"service"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rulegate",
				Subsystem: "service",
				Name:      "errors_total",
				Help:      "Total number of errors by service and class",
			},
			[]string{"service", "class"},
		),

		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rulegate",
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Total number of events published by subject and status",
			},
			[]string{"subject", "status"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "rulegate",
				Subsystem: "nats",
				Name:      "connection_status",
				Help:      "NATS connection status (1=connected, 0=disconnected)",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "rulegate",
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnect events",
			},
		),
	}
}

// RecordServiceStatus records the lifecycle status of a service
func (m *Metrics) RecordServiceStatus(service string, status float64) {
	m.ServiceStatus.WithLabelValues(service).Set(status)
}

// RecordError increments the error counter for a service and error class
func (m *Metrics) RecordError(service, class string) {
	m.ErrorsTotal.WithLabelValues(service, class).Inc()
}

// RecordEventPublished increments the published-event counter
func (m *Metrics) RecordEventPublished(subject, status string) {
	m.EventsPublished.WithLabelValues(subject, status).Inc()
}

// RecordNATSHealth records NATS connection health (1.0 healthy, 0.0 not)
func (m *Metrics) RecordNATSHealth(healthy float64) {
	m.NATSConnected.Set(healthy)
}

// RecordNATSReconnect increments the reconnect counter
func (m *Metrics) RecordNATSReconnect() {
	m.NATSReconnects.Inc()
}

// collectors returns all core collectors for registration
func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ServiceStatus,
		m.ErrorsTotal,
		m.EventsPublished,
		m.NATSConnected,
		m.NATSReconnects,
	}
}
