package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()

	require.NotNil(t, registry)
	require.NotNil(t, registry.PrometheusRegistry())
	require.NotNil(t, registry.CoreMetrics())

	// Core metrics are gatherable
	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetricsRegistry_RegisterCounter(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vector",
		Subsystem: "test",
		Name:      "ops_total",
		Help:      "Test counter",
	})

	require.NoError(t, registry.RegisterCounter("test-service", "ops", counter))

	// Duplicate key rejected
	err := registry.RegisterCounter("test-service", "ops", counter)
	assert.Error(t, err)
}

func TestMetricsRegistry_RegisterVecs(t *testing.T) {
	registry := NewMetricsRegistry()

	counterVec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vector",
		Subsystem: "test",
		Name:      "events_total",
		Help:      "Test counter vec",
	}, []string{"component"})
	require.NoError(t, registry.RegisterCounterVec("test-service", "events", counterVec))

	gaugeVec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "vector",
		Subsystem: "test",
		Name:      "groups",
		Help:      "Test gauge vec",
	}, []string{"component"})
	require.NoError(t, registry.RegisterGaugeVec("test-service", "groups", gaugeVec))

	histogramVec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vector",
		Subsystem: "test",
		Name:      "duration_seconds",
		Help:      "Test histogram vec",
	}, []string{"component"})
	require.NoError(t, registry.RegisterHistogramVec("test-service", "duration", histogramVec))

	counterVec.WithLabelValues("a").Inc()
	gaugeVec.WithLabelValues("a").Set(3)
	histogramVec.WithLabelValues("a").Observe(0.1)

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, family := range families {
		names[family.GetName()] = true
	}
	assert.True(t, names["vector_test_events_total"])
	assert.True(t, names["vector_test_groups"])
	assert.True(t, names["vector_test_duration_seconds"])
}

func TestMetricsRegistry_Unregister(t *testing.T) {
	registry := NewMetricsRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vector",
		Subsystem: "test",
		Name:      "active",
		Help:      "Test gauge",
	})
	require.NoError(t, registry.RegisterGauge("test-service", "active", gauge))

	assert.True(t, registry.Unregister("test-service", "active"))
	assert.False(t, registry.Unregister("test-service", "active"))

	// Re-registration after unregister succeeds
	require.NoError(t, registry.RegisterGauge("test-service", "active", gauge))
}
