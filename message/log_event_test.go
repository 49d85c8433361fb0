package message

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogEvent(t *testing.T) {
	event := NewLogEvent("panic: my panic")

	msg, ok := event.Message(DefaultMessageKey)
	require.True(t, ok)
	assert.Equal(t, "panic: my panic", msg)

	id, ok := event.Get("event_id")
	require.True(t, ok)
	assert.NotEmpty(t, id)

	_, ok = event.Get("timestamp")
	assert.True(t, ok)
}

func TestLogEvent_Message(t *testing.T) {
	tests := []struct {
		name     string
		fields   map[string]any
		key      string
		expected string
		present  bool
	}{
		{
			name:     "string message",
			fields:   map[string]any{"message": "hello"},
			key:      "message",
			expected: "hello",
			present:  true,
		},
		{
			name:     "numeric message rendered",
			fields:   map[string]any{"message": 404},
			key:      "message",
			expected: "404",
			present:  true,
		},
		{
			name:    "absent message",
			fields:  map[string]any{"other": "x"},
			key:     "message",
			present: false,
		},
		{
			name:     "custom key",
			fields:   map[string]any{"log": "line"},
			key:      "log",
			expected: "line",
			present:  true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			event := FromFields(test.fields)
			msg, ok := event.Message(test.key)
			assert.Equal(t, test.present, ok)
			if test.present {
				assert.Equal(t, test.expected, msg)
			}
		})
	}
}

func TestLogEvent_InsertReplaces(t *testing.T) {
	event := FromFields(map[string]any{"message": "first", "host": "web-1"})
	event.Insert("message", "first\nsecond")

	msg, ok := event.Message("message")
	require.True(t, ok)
	assert.Equal(t, "first\nsecond", msg)

	host, ok := event.Get("host")
	require.True(t, ok)
	assert.Equal(t, "web-1", host)
}

func TestLogEvent_Clone(t *testing.T) {
	event := FromFields(map[string]any{"message": "line", "counter": 1})
	clone := event.Clone()

	clone.Insert("message", "changed")

	msg, _ := event.Message("message")
	assert.Equal(t, "line", msg, "clone mutation must not affect original")

	counter, ok := clone.Get("counter")
	require.True(t, ok)
	assert.Equal(t, 1, counter)
}

func TestLogEvent_JSONRoundTrip(t *testing.T) {
	event := FromFields(map[string]any{
		"message": "at com.example.Main(Main.java:1)",
		"host":    "web-1",
		"counter": float64(3),
	})

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded LogEvent
	require.NoError(t, json.Unmarshal(data, &decoded))

	msg, ok := decoded.Message("message")
	require.True(t, ok)
	assert.Equal(t, "at com.example.Main(Main.java:1)", msg)

	host, ok := decoded.Get("host")
	require.True(t, ok)
	assert.Equal(t, "web-1", host)

	counter, ok := decoded.Get("counter")
	require.True(t, ok)
	assert.Equal(t, float64(3), counter)
}

func TestLogEvent_Validate(t *testing.T) {
	assert.NoError(t, FromFields(map[string]any{}).Validate())

	var empty LogEvent
	assert.Error(t, empty.Validate())
}
