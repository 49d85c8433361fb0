package detectexceptions

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xperimental/vector/metric"
)

// detectMetrics holds Prometheus metrics for the exception detection
// processor.
type detectMetrics struct {
	eventsTotal   *prometheus.CounterVec // By component and status (merged/passthrough/error)
	mergedTraces  *prometheus.CounterVec // By component
	staleFlushes  *prometheus.CounterVec // By component
	activeGroups  *prometheus.GaugeVec   // By component
	expiredGroups *prometheus.CounterVec // By component
	errors        *prometheus.CounterVec // By component and error_type
	pushDuration  *prometheus.HistogramVec
}

// newDetectMetrics creates and registers detection metrics with the provided registry.
func newDetectMetrics(registry *metric.MetricsRegistry) (*detectMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	m := &detectMetrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vector",
			Subsystem: "detect_exceptions",
			Name:      "events_total",
			Help:      "Total number of events seen by the exception detector",
		}, []string{"component", "status"}), // status: merged, passthrough, error

		mergedTraces: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vector",
			Subsystem: "detect_exceptions",
			Name:      "merged_traces_total",
			Help:      "Total number of multi-line traces merged into a single event",
		}, []string{"component"}),

		staleFlushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vector",
			Subsystem: "detect_exceptions",
			Name:      "stale_flushes_total",
			Help:      "Total number of buffers flushed because they went stale",
		}, []string{"component"}),

		activeGroups: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "vector",
			Subsystem: "detect_exceptions",
			Name:      "active_groups",
			Help:      "Number of live per-group trace accumulators",
		}, []string{"component"}),

		expiredGroups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vector",
			Subsystem: "detect_exceptions",
			Name:      "expired_groups_total",
			Help:      "Total number of idle groups removed after expiry",
		}, []string{"component"}),

		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vector",
			Subsystem: "detect_exceptions",
			Name:      "errors_total",
			Help:      "Total number of processing errors",
		}, []string{"component", "error_type"}), // error_type: parse, publish

		pushDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vector",
			Subsystem: "detect_exceptions",
			Name:      "push_duration_seconds",
			Help:      "Time spent classifying and buffering one event",
			Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.1},
		}, []string{"component"}),
	}

	if err := registry.RegisterCounterVec("detect_exceptions", "events_total", m.eventsTotal); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("detect_exceptions", "merged_traces", m.mergedTraces); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("detect_exceptions", "stale_flushes", m.staleFlushes); err != nil {
		return nil, err
	}
	if err := registry.RegisterGaugeVec("detect_exceptions", "active_groups", m.activeGroups); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("detect_exceptions", "expired_groups", m.expiredGroups); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("detect_exceptions", "errors", m.errors); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec("detect_exceptions", "push_duration", m.pushDuration); err != nil {
		return nil, err
	}

	return m, nil
}

// recordEvent records one event entering the detector.
func (m *detectMetrics) recordEvent(componentName string, duration time.Duration) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(componentName, "passthrough").Inc()
	m.pushDuration.WithLabelValues(componentName).Observe(duration.Seconds())
}

// recordMerged records a multi-line trace merged into one event.
func (m *detectMetrics) recordMerged(componentName string) {
	if m == nil {
		return
	}
	m.mergedTraces.WithLabelValues(componentName).Inc()
	m.eventsTotal.WithLabelValues(componentName, "merged").Inc()
}

// recordStaleFlush records a buffer flushed for staleness.
func (m *detectMetrics) recordStaleFlush(componentName string) {
	if m == nil {
		return
	}
	m.staleFlushes.WithLabelValues(componentName).Inc()
}

// recordExpired records idle groups removed after expiry.
func (m *detectMetrics) recordExpired(componentName string, n int) {
	if m == nil {
		return
	}
	m.expiredGroups.WithLabelValues(componentName).Add(float64(n))
}

// setActiveGroups records the current number of live group accumulators.
func (m *detectMetrics) setActiveGroups(componentName string, n int) {
	if m == nil {
		return
	}
	m.activeGroups.WithLabelValues(componentName).Set(float64(n))
}

// recordError records a processing error.
func (m *detectMetrics) recordError(componentName, errorType string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(componentName, errorType).Inc()
	m.eventsTotal.WithLabelValues(componentName, "error").Inc()
}
