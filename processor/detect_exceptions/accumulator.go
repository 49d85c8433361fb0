package detectexceptions

import (
	"strings"
	"time"

	"github.com/xperimental/vector/message"
)

// traceAccumulator buffers the lines of one trace in progress for a single
// event group. The first event of the trace is kept whole and becomes the
// carrier of the merged message, so every non-message field of the trace's
// first record survives the merge.
type traceAccumulator struct {
	maxBytes               int
	maxLines               int
	multilineFlushInterval time.Duration
	messageKey             string

	detector        *exceptionDetector
	firstEvent      *message.LogEvent
	bufferSize      int
	bufferStartTime time.Time
	accumulated     []string

	hooks accumulatorHooks
}

// accumulatorHooks are optional observation callbacks. Either may be nil.
type accumulatorHooks struct {
	// onStaleFlush fires when a buffer is flushed because it went stale.
	onStaleFlush func()
	// onMerged fires when a multi-line buffer collapses into one event.
	onMerged func()
}

func newTraceAccumulator(
	langs []Language,
	multilineFlushInterval time.Duration,
	maxBytes, maxLines int,
	messageKey string,
	hooks accumulatorHooks,
) (*traceAccumulator, error) {
	detector, err := newExceptionDetector(langs)
	if err != nil {
		return nil, err
	}
	if messageKey == "" {
		messageKey = message.DefaultMessageKey
	}
	return &traceAccumulator{
		maxBytes:               maxBytes,
		maxLines:               maxLines,
		multilineFlushInterval: multilineFlushInterval,
		messageKey:             messageKey,
		detector:               detector,
		bufferStartTime:        time.Now(),
		hooks:                  hooks,
	}, nil
}

// push feeds one event through the detector and buffer. Any events that are
// ready to leave the accumulator are appended to output.
func (a *traceAccumulator) push(le *message.LogEvent, output *[]*message.LogEvent) {
	status := noTrace
	line, present := le.Message(a.messageKey)

	if !present {
		a.detector.reset()
	} else {
		// Flush before the new line would overflow the byte budget, so
		// the merged record never exceeds maxBytes.
		if a.maxBytes > 0 && a.bufferSize+len(line) > a.maxBytes {
			a.forceFlush(output)
		}
		status = a.detector.update(line)
	}

	a.updateBuffer(status, line, present, le, output)

	if a.maxLines > 0 && len(a.accumulated) == a.maxLines {
		a.forceFlush(output)
	}
}

func (a *traceAccumulator) updateBuffer(
	status detectionStatus,
	line string,
	present bool,
	le *message.LogEvent,
	output *[]*message.LogEvent,
) {
	triggerEmit := status == noTrace || status == endTrace

	// Fast path: nothing buffered and this line does not open a trace.
	if len(a.accumulated) == 0 && triggerEmit {
		*output = append(*output, le)
		return
	}

	switch status {
	case insideTrace:
		a.add(le, line, present)
	case endTrace:
		a.add(le, line, present)
		a.flush(output)
	case noTrace:
		a.flush(output)
		a.add(le, line, present)
		a.flush(output)
	case startTrace:
		a.flush(output)
		a.add(le, line, present)
	}
}

// add appends an event to the buffer. The first buffered event anchors the
// trace and restarts the staleness clock.
func (a *traceAccumulator) add(le *message.LogEvent, line string, present bool) {
	if len(a.accumulated) == 0 {
		a.firstEvent = le
		a.bufferStartTime = time.Now()
	}
	if present {
		a.accumulated = append(a.accumulated, line)
		a.bufferSize += len(line)
	}
}

// flush emits the buffered trace. A single-line buffer emits the anchor
// event untouched; a multi-line buffer emits the anchor with its message
// replaced by the joined lines.
func (a *traceAccumulator) flush(output *[]*message.LogEvent) {
	switch len(a.accumulated) {
	case 0:
		return
	case 1:
		*output = append(*output, a.firstEvent)
	default:
		a.firstEvent.Insert(a.messageKey, strings.Join(a.accumulated, "\n"))
		*output = append(*output, a.firstEvent)
		if a.hooks.onMerged != nil {
			a.hooks.onMerged()
		}
	}
	a.accumulated = nil
	a.firstEvent = nil
	a.bufferSize = 0
}

// forceFlush flushes the buffer and resets the detector, abandoning any
// trace in progress.
func (a *traceAccumulator) forceFlush(output *[]*message.LogEvent) {
	a.flush(output)
	a.detector.reset()
}

// flushStaleInto force-flushes when the buffer has been idle longer than
// the multiline flush interval. The stale hook fires only when lines were
// actually buffered.
func (a *traceAccumulator) flushStaleInto(now time.Time, output *[]*message.LogEvent) {
	if now.Sub(a.bufferStartTime) > a.multilineFlushInterval {
		if len(a.accumulated) > 0 && a.hooks.onStaleFlush != nil {
			a.hooks.onStaleFlush()
		}
		a.forceFlush(output)
	}
}
