// Package metric provides Prometheus-based metrics collection and an HTTP
// server for RuleGate monitoring and observability.
//
// The package offers a centralized registry managing both core platform
// metrics (service status, event delivery, NATS health) and service-specific
// metrics such as the engine's validation counters. An HTTP server exposes
// everything in Prometheus format.
//
// # Basic Usage
//
//	registry := metric.NewRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//
//	go func() {
//	    if err := server.Start(); err != nil {
//	        log.Printf("metrics server error: %v", err)
//	    }
//	}()
//	defer server.Stop()
//
//	core := registry.CoreMetrics()
//	core.RecordServiceStatus("rulegate", 2) // running
//	core.RecordNATSHealth(1.0)
//
// Services register their own metrics through the Registrar interface:
//
//	validations := prometheus.NewCounterVec(prometheus.CounterOpts{
//	    Namespace: "rulegate",
//	    Subsystem: "engine",
//	    Name:      "validations_total",
//	    Help:      "Total validations by operation and outcome",
//	}, []string{"engine", "operation", "outcome"})
//	err := registry.RegisterCounterVec("engine", "validations_total", validations)
//
// All core metrics use the namespace "rulegate". Registration is
// thread-safe; metric recording is lock-free (Prometheus guarantee).
// Duplicate registrations are rejected with an Invalid-classified error.
//
// The server exposes three endpoints: the metrics path (default /metrics),
// /health, and a root index page.
package metric
