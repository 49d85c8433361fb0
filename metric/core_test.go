package metric

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	registry := NewMetricsRegistry()
	core := registry.CoreMetrics()
	require.NotNil(t, core)

	core.RecordServiceStatus("vector", 2)
	core.RecordMessageReceived("proc", "log_event")
	core.RecordMessageProcessed("proc", "log_event", "ok")
	core.RecordMessagePublished("proc", "logs.merged")
	core.RecordProcessingDuration("proc", "handle", 5*time.Millisecond)
	core.RecordError("proc", "parse")
	core.RecordHealthStatus("vector", true)
	core.RecordNATSStatus(true)
	core.RecordNATSRTT(3 * time.Millisecond)
	core.RecordNATSReconnect()

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, family := range families {
		names[family.GetName()] = true
	}
	assert.True(t, names["vector_service_status"])
	assert.True(t, names["vector_messages_received_total"])
	assert.True(t, names["vector_messages_processed_total"])
	assert.True(t, names["vector_messages_published_total"])
	assert.True(t, names["vector_processing_duration_seconds"])
	assert.True(t, names["vector_errors_total"])
	assert.True(t, names["vector_health_status"])
	assert.True(t, names["vector_nats_connected"])
	assert.True(t, names["vector_nats_rtt_milliseconds"])
	assert.True(t, names["vector_nats_reconnects_total"])
}

func TestMetrics_NilReceiverIsNoOp(t *testing.T) {
	var core *Metrics

	assert.NotPanics(t, func() {
		core.RecordServiceStatus("vector", 2)
		core.RecordMessageReceived("proc", "log_event")
		core.RecordMessageProcessed("proc", "log_event", "ok")
		core.RecordMessagePublished("proc", "logs.merged")
		core.RecordProcessingDuration("proc", "handle", time.Millisecond)
		core.RecordError("proc", "parse")
		core.RecordHealthStatus("vector", false)
		core.RecordNATSStatus(false)
		core.RecordNATSRTT(time.Millisecond)
		core.RecordNATSReconnect()
	})
}
