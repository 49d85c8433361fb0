// Package detectexceptions provides a processor that recognizes multi-line
// exception traces in log streams and merges each trace into a single event.
package detectexceptions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/xperimental/vector/component"
	"github.com/xperimental/vector/errors"
	"github.com/xperimental/vector/message"
	"github.com/xperimental/vector/metric"
	"github.com/xperimental/vector/natsclient"
)

// Default tuning values, in milliseconds where the config key says so.
const (
	defaultExpireAfterMs            = 30000
	defaultFlushPeriodMs            = 1000
	defaultMultilineFlushIntervalMs = 1000
	defaultMaxBytes                 = 0
	defaultMaxLines                 = 1000

	inputBufferSize = 1024
)

// Config holds configuration for the exception detection processor.
type Config struct {
	Ports *component.PortConfig `json:"ports"`

	// Languages to load detection rules for. "All" loads every language.
	Languages []Language `json:"languages"`

	// GroupBy is an ordered list of fields whose values separate independent
	// event streams. Events in different groups never merge.
	GroupBy []string `json:"group_by"`

	// MessageKey is the field holding the log line. Defaults to "message".
	MessageKey string `json:"message_key"`

	// ExpireAfterMs is how long an idle group is kept before its
	// accumulator is dropped.
	ExpireAfterMs int `json:"expire_after_ms"`

	// FlushPeriodMs is the interval of the stale-buffer check.
	FlushPeriodMs int `json:"flush_period_ms"`

	// MultilineFlushIntervalMs is how long a partial trace may sit in the
	// buffer before it is flushed as-is.
	MultilineFlushIntervalMs int `json:"multiline_flush_interval_ms"`

	// MaxBytes caps the merged message size. 0 means no limit.
	MaxBytes int `json:"max_bytes"`

	// MaxLines caps the number of buffered lines. 0 means no limit.
	MaxLines int `json:"max_lines"`
}

// DefaultConfig returns the default configuration for the processor.
func DefaultConfig() Config {
	inputDefs := []component.PortDefinition{
		{
			Name:        "nats_input",
			Type:        "nats",
			Subject:     "logs.raw.>",
			Required:    true,
			Description: "NATS subjects carrying raw log events",
		},
	}

	outputDefs := []component.PortDefinition{
		{
			Name:        "nats_output",
			Type:        "nats",
			Subject:     "logs.merged",
			Required:    true,
			Description: "NATS subject for merged log events",
		},
	}

	return Config{
		Ports: &component.PortConfig{
			Inputs:  inputDefs,
			Outputs: outputDefs,
		},
		Languages:                []Language{LanguageAll},
		GroupBy:                  []string{},
		MessageKey:               message.DefaultMessageKey,
		ExpireAfterMs:            defaultExpireAfterMs,
		FlushPeriodMs:            defaultFlushPeriodMs,
		MultilineFlushIntervalMs: defaultMultilineFlushIntervalMs,
		MaxBytes:                 defaultMaxBytes,
		MaxLines:                 defaultMaxLines,
	}
}

func (c Config) messageKeyOrDefault() string {
	if c.MessageKey == "" {
		return message.DefaultMessageKey
	}
	return c.MessageKey
}

func (c Config) expireAfter() time.Duration {
	if c.ExpireAfterMs <= 0 {
		return defaultExpireAfterMs * time.Millisecond
	}
	return time.Duration(c.ExpireAfterMs) * time.Millisecond
}

func (c Config) flushPeriod() time.Duration {
	if c.FlushPeriodMs <= 0 {
		return defaultFlushPeriodMs * time.Millisecond
	}
	return time.Duration(c.FlushPeriodMs) * time.Millisecond
}

func (c Config) multilineFlushInterval() time.Duration {
	if c.MultilineFlushIntervalMs <= 0 {
		return defaultMultilineFlushIntervalMs * time.Millisecond
	}
	return time.Duration(c.MultilineFlushIntervalMs) * time.Millisecond
}

// detectExceptionsSchema defines the configuration schema for the processor.
var detectExceptionsSchema = component.ConfigSchema{
	Properties: map[string]component.PropertySchema{
		"ports": {
			Type:        "ports",
			Description: "Input and output port configuration",
			Category:    "basic",
		},
		"languages": {
			Type:        "array",
			Description: "Languages to detect exception traces for",
			Default:     []string{"All"},
			Enum: []string{
				"Java", "Javascript", "Js", "Csharp", "Python", "Py",
				"Php", "Go", "Ruby", "Rb", "Dart", "All",
			},
			Category: "basic",
		},
		"group_by": {
			Type:        "array",
			Description: "Ordered list of fields separating independent event streams",
			Category:    "basic",
		},
		"message_key": {
			Type:        "string",
			Description: "Field holding the log line",
			Default:     "message",
			Category:    "advanced",
		},
		"expire_after_ms": {
			Type:        "int",
			Description: "Idle time in milliseconds before a group is dropped",
			Default:     defaultExpireAfterMs,
			Category:    "advanced",
		},
		"flush_period_ms": {
			Type:        "int",
			Description: "Stale-buffer check interval in milliseconds",
			Default:     defaultFlushPeriodMs,
			Category:    "advanced",
		},
		"multiline_flush_interval_ms": {
			Type:        "int",
			Description: "Maximum age in milliseconds of a partial trace buffer",
			Default:     defaultMultilineFlushIntervalMs,
			Category:    "advanced",
		},
		"max_bytes": {
			Type:        "int",
			Description: "Maximum merged message size in bytes (0 = no limit)",
			Default:     defaultMaxBytes,
			Category:    "advanced",
		},
		"max_lines": {
			Type:        "int",
			Description: "Maximum buffered lines per trace (0 = no limit)",
			Default:     defaultMaxLines,
			Category:    "advanced",
		},
	},
	Required: []string{},
}

// streamBinding names a JetStream stream and the subject used on it.
type streamBinding struct {
	stream  string
	subject string
}

// Processor subscribes to raw log events, merges multi-line exception
// traces, and publishes the result.
type Processor struct {
	name          string
	config        Config
	subjects      []string
	outputSubjs   []string
	streamInputs  []streamBinding
	streamOutputs []streamBinding
	natsClient    *natsclient.Client
	logger        *slog.Logger

	router *detectExceptions
	in     chan *message.LogEvent
	out    chan *message.LogEvent

	// Lifecycle management
	shutdown    chan struct{}
	done        chan struct{}
	running     bool
	startTime   time.Time
	cancel      context.CancelFunc
	mu          sync.RWMutex
	lifecycleMu sync.Mutex
	wg          *sync.WaitGroup

	// Counters for DataFlow
	eventsReceived int64
	eventsEmitted  int64
	errorCount     int64
	lastActivity   time.Time

	// Prometheus metrics
	metrics     *detectMetrics
	coreMetrics *metric.Metrics
}

// NewProcessor creates an exception detection processor from configuration.
func NewProcessor(
	rawConfig json.RawMessage, deps component.Dependencies,
) (component.Discoverable, error) {
	config := DefaultConfig()
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &config); err != nil {
			return nil, errors.WrapInvalid(err, "DetectExceptionsProcessor", "NewProcessor", "config unmarshal")
		}
	}

	if len(config.Languages) == 0 {
		return nil, errors.WrapInvalid(
			errors.ErrInvalidConfig, "DetectExceptionsProcessor", "NewProcessor",
			"languages cannot be empty")
	}

	if config.Ports == nil {
		config.Ports = DefaultConfig().Ports
	}

	var inputSubjects []string
	var outputSubjects []string
	var streamInputs []streamBinding
	var streamOutputs []streamBinding
	for _, input := range config.Ports.Inputs {
		switch input.Type {
		case "jetstream":
			streamInputs = append(streamInputs, streamBinding{
				stream:  input.StreamName,
				subject: input.Subject,
			})
		default:
			inputSubjects = append(inputSubjects, input.Subject)
		}
	}
	for _, output := range config.Ports.Outputs {
		switch output.Type {
		case "jetstream":
			streamOutputs = append(streamOutputs, streamBinding{
				stream:  output.StreamName,
				subject: output.Subject,
			})
		default:
			outputSubjects = append(outputSubjects, output.Subject)
		}
	}

	if len(inputSubjects) == 0 && len(streamInputs) == 0 {
		return nil, errors.WrapInvalid(
			errors.ErrInvalidConfig, "DetectExceptionsProcessor", "NewProcessor",
			"no input ports configured")
	}

	for _, binding := range streamInputs {
		if binding.stream == "" {
			return nil, errors.WrapInvalid(
				errors.ErrInvalidConfig, "DetectExceptionsProcessor", "NewProcessor",
				"jetstream input port requires a stream name")
		}
	}
	for _, binding := range streamOutputs {
		if binding.stream == "" {
			return nil, errors.WrapInvalid(
				errors.ErrInvalidConfig, "DetectExceptionsProcessor", "NewProcessor",
				"jetstream output port requires a stream name")
		}
	}

	metrics, err := newDetectMetrics(deps.MetricsRegistry)
	if err != nil {
		deps.GetLogger().Error("Failed to initialize exception detection metrics", "error", err)
		metrics = nil // Continue without metrics
	}

	var coreMetrics *metric.Metrics
	if deps.MetricsRegistry != nil {
		coreMetrics = deps.MetricsRegistry.CoreMetrics()
	}

	name := "detect-exceptions-processor"
	logger := deps.GetLoggerWithComponent(name)

	p := &Processor{
		name:          name,
		config:        config,
		subjects:      inputSubjects,
		outputSubjs:   outputSubjects,
		streamInputs:  streamInputs,
		streamOutputs: streamOutputs,
		natsClient:    deps.NATSClient,
		logger:        logger,
		in:            make(chan *message.LogEvent, inputBufferSize),
		out:           make(chan *message.LogEvent, inputBufferSize),
		shutdown:      make(chan struct{}),
		done:          make(chan struct{}),
		wg:            &sync.WaitGroup{},
		metrics:       metrics,
		coreMetrics:   coreMetrics,
	}

	p.router = newDetectExceptions(config, logger, routerHooks{
		onStaleFlush: func() { p.metrics.recordStaleFlush(name) },
		onMerged:     func() { p.metrics.recordMerged(name) },
		onExpired:    func(n int) { p.metrics.recordExpired(name, n) },
		onGroups:     func(n int) { p.metrics.setActiveGroups(name, n) },
	})

	// Rule compilation is the only construction step that can fail.
	// Compile once up front so a bad language list fails here instead of
	// on the first event.
	if _, err := newStateMachine(config.Languages); err != nil {
		return nil, err
	}

	return p, nil
}

// Initialize prepares the processor.
func (p *Processor) Initialize() error {
	return nil
}

// Start subscribes to the input subjects and begins merging traces.
func (p *Processor) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.running {
		return errors.WrapFatal(errors.ErrAlreadyStarted, "DetectExceptionsProcessor", "Start", "check running state")
	}

	if p.natsClient == nil {
		return errors.WrapFatal(errors.ErrMissingConfig, "DetectExceptionsProcessor", "Start", "NATS client required")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	for _, binding := range p.streamOutputs {
		if err := p.ensureStream(ctx, binding); err != nil {
			cancel()
			return err
		}
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(p.out)
		if err := p.router.Run(runCtx, p.in, p.out); err != nil && runCtx.Err() == nil {
			p.logger.Error("Exception detection loop failed", "error", err)
		}
	}()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.publishLoop(runCtx)
	}()

	for _, subject := range p.subjects {
		p.logger.Debug("Subscribing to NATS subject", "subject", subject)

		if err := p.natsClient.Subscribe(ctx, subject, p.handleMessage); err != nil {
			cancel()
			return errors.WrapTransient(err, "DetectExceptionsProcessor", "Start",
				fmt.Sprintf("subscribe to %s", subject))
		}
	}

	for _, binding := range p.streamInputs {
		p.logger.Debug("Consuming JetStream stream",
			"stream", binding.stream,
			"subject", binding.subject)

		handler := func(data []byte) { p.handleMessage(runCtx, data) }
		if err := p.natsClient.ConsumeStream(ctx, binding.stream, binding.subject, handler); err != nil {
			cancel()
			return errors.WrapTransient(err, "DetectExceptionsProcessor", "Start",
				fmt.Sprintf("consume stream %s", binding.stream))
		}
	}

	p.mu.Lock()
	p.running = true
	p.startTime = time.Now()
	p.mu.Unlock()

	p.logger.Info("Exception detection processor started",
		"input_subjects", p.subjects,
		"input_streams", len(p.streamInputs),
		"output_subjects", p.outputSubjs,
		"output_streams", len(p.streamOutputs),
		"languages", p.config.Languages,
		"group_by", p.config.GroupBy)

	return nil
}

// ensureStream verifies the bound output stream exists, creating it with
// the bound subject when it does not.
func (p *Processor) ensureStream(ctx context.Context, binding streamBinding) error {
	if _, err := p.natsClient.GetStream(ctx, binding.stream); err == nil {
		return nil
	}

	_, err := p.natsClient.CreateStream(ctx, jetstream.StreamConfig{
		Name:     binding.stream,
		Subjects: []string{binding.subject},
	})
	if err != nil {
		return errors.WrapTransient(err, "DetectExceptionsProcessor", "Start",
			fmt.Sprintf("create stream %s", binding.stream))
	}
	return nil
}

// Stop flushes all buffers and stops the processor.
func (p *Processor) Stop(timeout time.Duration) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.running {
		return nil
	}

	// Stop intake first, then cancel the run loop so it flushes what is
	// left and the publisher drains it.
	close(p.shutdown)
	p.cancel()

	waitCh := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		// Clean shutdown
	case <-time.After(timeout):
		return errors.WrapTransient(
			fmt.Errorf("shutdown timeout after %v", timeout),
			"DetectExceptionsProcessor", "Stop", "graceful shutdown")
	}

	p.mu.Lock()
	p.running = false
	close(p.done)
	p.mu.Unlock()

	return nil
}

// handleMessage parses an incoming event and queues it for the run loop.
func (p *Processor) handleMessage(_ context.Context, msgData []byte) {
	atomic.AddInt64(&p.eventsReceived, 1)
	p.coreMetrics.RecordMessageReceived(p.name, "log_event")
	p.mu.Lock()
	p.lastActivity = time.Now()
	p.mu.Unlock()

	start := time.Now()

	var le message.LogEvent
	if err := json.Unmarshal(msgData, &le); err != nil {
		atomic.AddInt64(&p.errorCount, 1)
		p.metrics.recordError(p.name, "parse")
		p.coreMetrics.RecordMessageProcessed(p.name, "log_event", "error")
		p.coreMetrics.RecordError(p.name, "parse")
		p.logger.Debug("Failed to parse message as log event", "error", err)
		return
	}

	select {
	case p.in <- &le:
		p.metrics.recordEvent(p.name, time.Since(start))
		p.coreMetrics.RecordMessageProcessed(p.name, "log_event", "ok")
		p.coreMetrics.RecordProcessingDuration(p.name, "handle", time.Since(start))
	case <-p.shutdown:
		// Dropped during shutdown
	}
}

// publishLoop publishes merged events until the output channel closes.
func (p *Processor) publishLoop(ctx context.Context) {
	for le := range p.out {
		data, err := json.Marshal(le)
		if err != nil {
			atomic.AddInt64(&p.errorCount, 1)
			p.metrics.recordError(p.name, "marshal")
			p.coreMetrics.RecordError(p.name, "marshal")
			p.logger.Error("Failed to marshal merged event", "error", err)
			continue
		}

		for _, subject := range p.outputSubjs {
			if subject == "" {
				continue
			}
			if err := p.natsClient.Publish(ctx, subject, data); err != nil {
				atomic.AddInt64(&p.errorCount, 1)
				p.metrics.recordError(p.name, "publish")
				p.coreMetrics.RecordError(p.name, "publish")
				p.logger.Error("Failed to publish merged event",
					"output_subject", subject,
					"error", err)
				continue
			}
			atomic.AddInt64(&p.eventsEmitted, 1)
			p.coreMetrics.RecordMessagePublished(p.name, subject)
		}

		for _, binding := range p.streamOutputs {
			if err := p.natsClient.PublishToStream(ctx, binding.subject, data); err != nil {
				atomic.AddInt64(&p.errorCount, 1)
				p.metrics.recordError(p.name, "publish")
				p.coreMetrics.RecordError(p.name, "publish")
				p.logger.Error("Failed to publish merged event to stream",
					"stream", binding.stream,
					"subject", binding.subject,
					"error", err)
				continue
			}
			atomic.AddInt64(&p.eventsEmitted, 1)
			p.coreMetrics.RecordMessagePublished(p.name, binding.subject)
		}
	}
}

// Discoverable interface implementation

// Meta returns metadata describing this processor component.
func (p *Processor) Meta() component.Metadata {
	return component.Metadata{
		Name:        p.name,
		Type:        "processor",
		Description: "Merges multi-line exception traces into single log events",
		Version:     "0.1.0",
	}
}

// InputPorts returns the NATS input ports this processor subscribes to.
func (p *Processor) InputPorts() []component.Port {
	ports := make([]component.Port, 0, len(p.config.Ports.Inputs))
	for _, def := range p.config.Ports.Inputs {
		ports = append(ports, component.BuildPortFromDefinition(def, component.DirectionInput))
	}
	return ports
}

// OutputPorts returns the NATS output ports for merged events.
func (p *Processor) OutputPorts() []component.Port {
	ports := make([]component.Port, 0, len(p.config.Ports.Outputs))
	for _, def := range p.config.Ports.Outputs {
		ports = append(ports, component.BuildPortFromDefinition(def, component.DirectionOutput))
	}
	return ports
}

// ConfigSchema returns the configuration schema for this processor.
func (p *Processor) ConfigSchema() component.ConfigSchema {
	return detectExceptionsSchema
}

// Health returns the current health status of this processor.
func (p *Processor) Health() component.HealthStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return component.HealthStatus{
		Healthy:    p.running,
		LastCheck:  time.Now(),
		ErrorCount: int(atomic.LoadInt64(&p.errorCount)),
		Uptime:     time.Since(p.startTime),
	}
}

// DataFlow returns current data flow metrics for this processor.
func (p *Processor) DataFlow() component.FlowMetrics {
	p.mu.RLock()
	defer p.mu.RUnlock()

	received := atomic.LoadInt64(&p.eventsReceived)
	errorCount := atomic.LoadInt64(&p.errorCount)

	var errorRate float64
	if received > 0 {
		errorRate = float64(errorCount) / float64(received)
	}

	return component.FlowMetrics{
		ErrorRate:    errorRate,
		LastActivity: p.lastActivity,
	}
}

// Register registers the exception detection processor with the registry.
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "detect_exceptions",
		Factory:     NewProcessor,
		Schema:      detectExceptionsSchema,
		Type:        "processor",
		Protocol:    "detect_exceptions",
		Domain:      "processing",
		Description: "Merges multi-line exception traces into single log events",
		Version:     "0.1.0",
	})
}
