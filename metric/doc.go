// Package metric provides Prometheus metrics infrastructure for the pipeline.
//
// # Overview
//
// The package centers on MetricsRegistry, which wraps a private Prometheus
// registry so tests and embedded deployments never collide with the global
// default registry. The registry carries a core set of platform metrics
// (message counts, processing durations, error totals, NATS connection
// state) and lets components register their own metrics under a
// "service.metric" key, with duplicate registration rejected at both the
// registry and Prometheus level.
//
// # Usage
//
// Create one registry per process and hand it to components through
// component.Dependencies:
//
//	registry := metric.NewMetricsRegistry()
//	deps := component.Dependencies{MetricsRegistry: registry}
//
// Components define their own metric structs and register them:
//
//	counter := prometheus.NewCounterVec(prometheus.CounterOpts{...}, []string{"component"})
//	if err := registry.RegisterCounterVec("detect_exceptions", "stale_flushes", counter); err != nil {
//	    return err
//	}
//
// Component metric structs follow the nil-receiver convention: every record
// method is safe to call on a nil struct, so components run unchanged when
// metrics are disabled.
//
// # HTTP exposure
//
// Server exposes the registry on /metrics (OpenMetrics enabled) plus a
// trivial /health endpoint:
//
//	server := metric.NewServer(9090, "/metrics", registry)
//	go server.Start()
//	defer server.Stop()
package metric
