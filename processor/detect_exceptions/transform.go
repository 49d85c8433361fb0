package detectexceptions

import (
	"context"
	"log/slog"
	"time"

	"github.com/xperimental/vector/message"
)

// detectExceptions routes events to per-group trace accumulators keyed by
// the discriminant of the group_by fields, and drives periodic stale
// flushing and group expiry.
type detectExceptions struct {
	accumulators map[message.Discriminant]*traceAccumulator

	languages              []Language
	groupBy                []string
	messageKey             string
	expireAfter            time.Duration
	flushPeriod            time.Duration
	multilineFlushInterval time.Duration
	maxBytes               int
	maxLines               int

	logger *slog.Logger
	hooks  routerHooks
}

// routerHooks are optional observation callbacks for the router and its
// accumulators. Any of them may be nil.
type routerHooks struct {
	onStaleFlush func()
	onMerged     func()
	onExpired    func(n int)
	onGroups     func(n int)
}

func newDetectExceptions(cfg Config, logger *slog.Logger, hooks routerHooks) *detectExceptions {
	return &detectExceptions{
		accumulators:           make(map[message.Discriminant]*traceAccumulator),
		languages:              cfg.Languages,
		groupBy:                cfg.GroupBy,
		messageKey:             cfg.messageKeyOrDefault(),
		expireAfter:            cfg.expireAfter(),
		flushPeriod:            cfg.flushPeriod(),
		multilineFlushInterval: cfg.multilineFlushInterval(),
		maxBytes:               cfg.MaxBytes,
		maxLines:               cfg.MaxLines,
		logger:                 logger,
		hooks:                  hooks,
	}
}

// consumeOne routes a single event to its group accumulator, creating the
// accumulator on first sight of the group.
func (d *detectExceptions) consumeOne(le *message.LogEvent, output *[]*message.LogEvent) error {
	discriminant := message.NewDiscriminant(le, d.groupBy)

	accumulator, ok := d.accumulators[discriminant]
	if !ok {
		var err error
		accumulator, err = newTraceAccumulator(
			d.languages,
			d.multilineFlushInterval,
			d.maxBytes,
			d.maxLines,
			d.messageKey,
			accumulatorHooks{
				onStaleFlush: d.hooks.onStaleFlush,
				onMerged:     d.hooks.onMerged,
			},
		)
		if err != nil {
			return err
		}
		d.accumulators[discriminant] = accumulator
		if d.hooks.onGroups != nil {
			d.hooks.onGroups(len(d.accumulators))
		}
	}

	accumulator.push(le, output)
	return nil
}

// flushAllInto flushes every accumulator, used at end of stream.
func (d *detectExceptions) flushAllInto(output *[]*message.LogEvent) {
	for k, v := range d.accumulators {
		d.logger.Debug("flushing group at end of stream",
			"group", string(k),
			"buffered_lines", len(v.accumulated))
		v.flush(output)
	}
}

// flushStaleInto flushes stale buffers and removes groups that have been
// idle longer than expireAfter.
func (d *detectExceptions) flushStaleInto(output *[]*message.LogEvent) {
	now := time.Now()
	var forRemoval []message.Discriminant
	for k, v := range d.accumulators {
		v.flushStaleInto(now, output)
		if len(v.accumulated) == 0 && now.Sub(v.bufferStartTime) > d.expireAfter {
			forRemoval = append(forRemoval, k)
		}
	}
	for _, k := range forRemoval {
		d.logger.Debug("removing expired group", "group", string(k))
		delete(d.accumulators, k)
	}
	if len(forRemoval) > 0 {
		if d.hooks.onExpired != nil {
			d.hooks.onExpired(len(forRemoval))
		}
		if d.hooks.onGroups != nil {
			d.hooks.onGroups(len(d.accumulators))
		}
	}
}

// groups returns the number of live accumulators.
func (d *detectExceptions) groups() int {
	return len(d.accumulators)
}

// Run consumes events from in until it closes or the context is cancelled,
// writing merged events to out. A ticker at the flush period drives stale
// flushing between events. On a closed input all remaining buffers are
// flushed before Run returns.
func (d *detectExceptions) Run(ctx context.Context, in <-chan *message.LogEvent, out chan<- *message.LogEvent) error {
	ticker := time.NewTicker(d.flushPeriod)
	defer ticker.Stop()

	// drain is used on the terminal paths; the consumer keeps reading from
	// out until it is closed, so a blocking send cannot deadlock here.
	drain := func(events []*message.LogEvent) {
		for _, e := range events {
			out <- e
		}
	}

	emit := func(events []*message.LogEvent) bool {
		for i, e := range events {
			select {
			case out <- e:
			case <-ctx.Done():
				// Cancelled mid-emit: flush all buffers and hand the
				// remainder to the draining consumer.
				rest := events[i:]
				d.flushAllInto(&rest)
				drain(rest)
				return false
			}
		}
		return true
	}

	for {
		var output []*message.LogEvent

		select {
		case <-ctx.Done():
			d.flushAllInto(&output)
			drain(output)
			return ctx.Err()

		case <-ticker.C:
			d.flushStaleInto(&output)
			if !emit(output) {
				return ctx.Err()
			}

		case le, ok := <-in:
			if !ok {
				d.flushAllInto(&output)
				drain(output)
				return nil
			}
			if err := d.consumeOne(le, &output); err != nil {
				return err
			}
			if !emit(output) {
				return ctx.Err()
			}
		}
	}
}
