package detectexceptions

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xperimental/vector/message"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(cfg Config, hooks routerHooks) *detectExceptions {
	return newDetectExceptions(cfg, testLogger(), hooks)
}

func TestRouter_JavaTraceThenLogLine(t *testing.T) {
	router := newTestRouter(Config{Languages: []Language{LanguageJava}}, routerHooks{})

	trace := javaSimpleException()
	lines := append(append([]string{}, trace...), "Jul 09, 2015 3:23:39 PM new log message")

	var output []*message.LogEvent
	for i, line := range lines {
		require.NoError(t, router.consumeOne(logLine(line, i), &output))
	}

	require.Len(t, output, 2)

	msg, _ := output[0].Message(message.DefaultMessageKey)
	assert.Equal(t, strings.Join(trace, "\n"), msg)
	counter, _ := output[0].Get("counter")
	assert.Equal(t, 0, counter)

	msg2, _ := output[1].Message(message.DefaultMessageKey)
	assert.Equal(t, "Jul 09, 2015 3:23:39 PM new log message", msg2)
	counter2, _ := output[1].Get("counter")
	assert.Equal(t, 6, counter2)
}

func TestRouter_GroupIsolation(t *testing.T) {
	router := newTestRouter(Config{
		Languages: []Language{LanguageJava},
		GroupBy:   []string{"service"},
	}, routerHooks{})

	trace := javaSimpleException()

	event := func(line, service string) *message.LogEvent {
		return message.FromFields(map[string]any{
			message.DefaultMessageKey: line,
			"service":                 service,
		})
	}

	// Interleave the same trace from two services line by line
	var output []*message.LogEvent
	for _, line := range trace {
		require.NoError(t, router.consumeOne(event(line, "api"), &output))
		require.NoError(t, router.consumeOne(event(line, "worker"), &output))
	}
	require.Empty(t, output)
	assert.Equal(t, 2, router.groups())

	require.NoError(t, router.consumeOne(event("done", "api"), &output))
	require.NoError(t, router.consumeOne(event("done", "worker"), &output))

	// Each group merged its own full trace despite the interleaving
	require.Len(t, output, 4)
	for _, i := range []int{0, 2} {
		msg, _ := output[i].Message(message.DefaultMessageKey)
		assert.Equal(t, strings.Join(trace, "\n"), msg)
	}

	svc1, _ := output[0].Get("service")
	svc2, _ := output[2].Get("service")
	assert.NotEqual(t, svc1, svc2)
}

func TestRouter_GroupExpiry(t *testing.T) {
	expired := 0
	router := newTestRouter(Config{
		Languages:     []Language{LanguageAll},
		GroupBy:       []string{"host"},
		ExpireAfterMs: 100,
	}, routerHooks{
		onExpired: func(n int) { expired += n },
	})

	var output []*message.LogEvent
	le := message.FromFields(map[string]any{
		message.DefaultMessageKey: "just a line",
		"host":                    "a",
	})
	require.NoError(t, router.consumeOne(le, &output))
	require.Equal(t, 1, router.groups())

	// Backdate the accumulator past the expiry window
	for _, acc := range router.accumulators {
		acc.bufferStartTime = time.Now().Add(-time.Second)
	}

	router.flushStaleInto(&output)
	assert.Equal(t, 0, router.groups())
	assert.Equal(t, 1, expired)
}

func TestRouter_FlushAllAtEndOfStream(t *testing.T) {
	router := newTestRouter(Config{Languages: []Language{LanguageJava}}, routerHooks{})

	trace := javaSimpleException()
	var output []*message.LogEvent
	for i, line := range trace {
		require.NoError(t, router.consumeOne(logLine(line, i), &output))
	}
	require.Empty(t, output)

	router.flushAllInto(&output)
	require.Len(t, output, 1)
	msg, _ := output[0].Message(message.DefaultMessageKey)
	assert.Equal(t, strings.Join(trace, "\n"), msg)
}

func TestRouter_RunDrainsOnInputClose(t *testing.T) {
	router := newTestRouter(Config{
		Languages:     []Language{LanguageJava},
		FlushPeriodMs: 60000, // keep the ticker out of the way
	}, routerHooks{})

	in := make(chan *message.LogEvent)
	out := make(chan *message.LogEvent, 16)

	done := make(chan error, 1)
	go func() {
		done <- router.Run(context.Background(), in, out)
	}()

	trace := javaSimpleException()
	for i, line := range trace {
		in <- logLine(line, i)
	}
	close(in)

	require.NoError(t, <-done)
	close(out)

	var output []*message.LogEvent
	for le := range out {
		output = append(output, le)
	}

	require.Len(t, output, 1)
	msg, _ := output[0].Message(message.DefaultMessageKey)
	assert.Equal(t, strings.Join(trace, "\n"), msg)
}

func TestRouter_RunStaleFlushViaTicker(t *testing.T) {
	router := newTestRouter(Config{
		Languages:                []Language{LanguageJava},
		FlushPeriodMs:            10,
		MultilineFlushIntervalMs: 20,
	}, routerHooks{})

	in := make(chan *message.LogEvent)
	out := make(chan *message.LogEvent, 16)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- router.Run(ctx, in, out)
	}()

	in <- logLine("javax.servlet.ServletException: Something bad happened", 0)

	// The partial trace goes stale and the ticker flushes it
	select {
	case le := <-out:
		msg, _ := le.Message(message.DefaultMessageKey)
		assert.Equal(t, "javax.servlet.ServletException: Something bad happened", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stale flush")
	}

	close(in)
	require.NoError(t, <-done)
}

func TestRouter_MissingMessageFieldPassesThrough(t *testing.T) {
	router := newTestRouter(Config{Languages: []Language{LanguageAll}}, routerHooks{})

	le := message.FromFields(map[string]any{"counter": 7})
	var output []*message.LogEvent
	require.NoError(t, router.consumeOne(le, &output))

	require.Len(t, output, 1)
	assert.Same(t, le, output[0])
}

func TestRouter_CustomMessageKey(t *testing.T) {
	router := newTestRouter(Config{
		Languages:  []Language{LanguageJava},
		MessageKey: "log",
	}, routerHooks{})

	trace := javaSimpleException()
	var output []*message.LogEvent
	for _, line := range trace {
		le := message.FromFields(map[string]any{"log": line})
		require.NoError(t, router.consumeOne(le, &output))
	}
	require.Empty(t, output)

	router.flushAllInto(&output)
	require.Len(t, output, 1)
	msg, _ := output[0].Message("log")
	assert.Equal(t, strings.Join(trace, "\n"), msg)
}
