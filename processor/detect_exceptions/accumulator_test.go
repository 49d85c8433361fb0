package detectexceptions

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xperimental/vector/message"
)

func newTestAccumulator(t *testing.T, maxBytes, maxLines int, hooks accumulatorHooks) *traceAccumulator {
	t.Helper()
	acc, err := newTraceAccumulator(
		[]Language{LanguageAll},
		time.Second,
		maxBytes, maxLines,
		message.DefaultMessageKey,
		hooks,
	)
	require.NoError(t, err)
	return acc
}

func logLine(line string, counter int) *message.LogEvent {
	return message.FromFields(map[string]any{
		message.DefaultMessageKey: line,
		"counter":                 counter,
	})
}

func TestAccumulator_PassthroughSingleLine(t *testing.T) {
	acc := newTestAccumulator(t, 0, 0, accumulatorHooks{})

	le := logLine("plain log line, nothing special", 1)
	var output []*message.LogEvent
	acc.push(le, &output)

	require.Len(t, output, 1)
	assert.Same(t, le, output[0])
	assert.Empty(t, acc.accumulated)
}

func TestAccumulator_MergesTrace(t *testing.T) {
	merged := 0
	acc := newTestAccumulator(t, 0, 0, accumulatorHooks{
		onMerged: func() { merged++ },
	})

	trace := javaSimpleException()
	var output []*message.LogEvent
	for i, line := range trace {
		acc.push(logLine(line, i), &output)
	}

	// Trace still open, nothing emitted yet
	require.Empty(t, output)
	require.Len(t, acc.accumulated, len(trace))

	// An ordinary line closes and flushes the trace, then passes through
	follow := logLine("Jul 09, 2015 3:23:39 PM new log message", len(trace))
	acc.push(follow, &output)

	require.Len(t, output, 2)

	mergedEvent := output[0]
	msg, ok := mergedEvent.Message(message.DefaultMessageKey)
	require.True(t, ok)
	assert.Equal(t, strings.Join(trace, "\n"), msg)

	// Merged event keeps the non-message fields of the first trace record
	counter, _ := mergedEvent.Get("counter")
	assert.Equal(t, 0, counter)

	assert.Same(t, follow, output[1])
	followCounter, _ := output[1].Get("counter")
	assert.Equal(t, len(trace), followCounter)

	assert.Equal(t, 1, merged)
}

func TestAccumulator_FlushEmptyIsNoop(t *testing.T) {
	acc := newTestAccumulator(t, 0, 0, accumulatorHooks{})

	var output []*message.LogEvent
	acc.flush(&output)
	acc.flush(&output)
	assert.Empty(t, output)
}

func TestAccumulator_SingleLineTraceFlushesUnmodified(t *testing.T) {
	acc := newTestAccumulator(t, 0, 0, accumulatorHooks{})

	le := logLine("javax.servlet.ServletException: Something bad happened", 0)
	var output []*message.LogEvent
	acc.push(le, &output)
	require.Empty(t, output)

	acc.flush(&output)
	require.Len(t, output, 1)
	assert.Same(t, le, output[0])

	msg, _ := output[0].Message(message.DefaultMessageKey)
	assert.Equal(t, "javax.servlet.ServletException: Something bad happened", msg)
}

func TestAccumulator_MaxLinesForcesFlush(t *testing.T) {
	acc := newTestAccumulator(t, 0, 3, accumulatorHooks{})

	trace := javaSimpleException()
	var output []*message.LogEvent
	for i, line := range trace {
		acc.push(logLine(line, i), &output)
	}

	// The buffer flushed as soon as it held exactly three lines; the
	// detector was reset, so the remaining frames pass through one by one.
	require.Len(t, output, 1+len(trace)-3)

	msg, _ := output[0].Message(message.DefaultMessageKey)
	assert.Equal(t, strings.Join(trace[:3], "\n"), msg)

	for i, e := range output[1:] {
		got, _ := e.Message(message.DefaultMessageKey)
		assert.Equal(t, trace[3+i], got)
	}
}

func TestAccumulator_MaxBytesFlushesBeforeOverflow(t *testing.T) {
	trace := javaSimpleException()
	maxBytes := len(trace[0]) + len(trace[1]) + 1

	acc := newTestAccumulator(t, maxBytes, 0, accumulatorHooks{})

	var output []*message.LogEvent
	for i, line := range trace[:3] {
		acc.push(logLine(line, i), &output)
	}

	// The third line would overflow, so the first two flushed as one
	// merged event before the line was classified.
	require.Len(t, output, 2)

	msg, _ := output[0].Message(message.DefaultMessageKey)
	assert.Equal(t, strings.Join(trace[:2], "\n"), msg)
	assert.LessOrEqual(t, len(msg), maxBytes)

	// After the reset the frame line no longer continues a trace
	followMsg, _ := output[1].Message(message.DefaultMessageKey)
	assert.Equal(t, trace[2], followMsg)
}

func TestAccumulator_StaleFlush(t *testing.T) {
	stale := 0
	acc := newTestAccumulator(t, 0, 0, accumulatorHooks{
		onStaleFlush: func() { stale++ },
	})

	le := logLine("javax.servlet.ServletException: Something bad happened", 0)
	var output []*message.LogEvent
	acc.push(le, &output)
	require.Empty(t, output)

	// Not stale yet
	acc.flushStaleInto(acc.bufferStartTime.Add(500*time.Millisecond), &output)
	assert.Empty(t, output)
	assert.Equal(t, 0, stale)

	// Past the interval the partial trace is flushed as-is
	acc.flushStaleInto(acc.bufferStartTime.Add(2*time.Second), &output)
	require.Len(t, output, 1)
	assert.Same(t, le, output[0])
	assert.Equal(t, 1, stale)
	assert.Equal(t, stateStart, acc.detector.currentState)
}

func TestAccumulator_StaleFlushEmptyBufferNoEvent(t *testing.T) {
	stale := 0
	acc := newTestAccumulator(t, 0, 0, accumulatorHooks{
		onStaleFlush: func() { stale++ },
	})

	var output []*message.LogEvent
	acc.flushStaleInto(time.Now().Add(time.Minute), &output)
	assert.Empty(t, output)
	assert.Equal(t, 0, stale)
}

func TestAccumulator_MissingMessageFieldResetsDetector(t *testing.T) {
	acc := newTestAccumulator(t, 0, 0, accumulatorHooks{})

	var output []*message.LogEvent
	acc.push(logLine("javax.servlet.ServletException: Something bad happened", 0), &output)
	require.NotEqual(t, stateStart, acc.detector.currentState)

	noMessage := message.FromFields(map[string]any{"counter": 1})
	acc.push(noMessage, &output)
	assert.Equal(t, stateStart, acc.detector.currentState)
}

func TestAccumulator_NonStringMessageClassifies(t *testing.T) {
	acc := newTestAccumulator(t, 0, 0, accumulatorHooks{})

	le := message.FromFields(map[string]any{message.DefaultMessageKey: 42})
	var output []*message.LogEvent
	acc.push(le, &output)

	require.Len(t, output, 1)
	assert.Same(t, le, output[0])
}
