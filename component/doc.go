// Package component provides the core component infrastructure for the log
// processing service, enabling component discovery, registration, lifecycle
// management, and instance creation.
//
// # Overview
//
// Components are self-describing units that can be discovered at runtime,
// configured through schemas, and managed through their lifecycle. The
// Registry serves as the central component management system, handling both
// factory registration and instance management with thread-safe operations.
//
// # Component Registration Pattern
//
// Registration is EXPLICIT rather than init() self-registration. This
// provides:
//   - Testability: isolated registries for testing
//   - Explicitness: clear component dependency graph
//   - Control: main application controls what gets registered
//   - No side effects: no global state modification during package init
//
// Each component package exports a Register(*Registry) error function that
// main calls on a Registry it created:
//
//	registry := component.NewRegistry()
//	if err := detectexceptions.Register(registry); err != nil {
//		log.Fatal(err)
//	}
//
// # Factory Pattern
//
// Component factories follow a consistent signature:
//
//	type Factory func(rawConfig json.RawMessage, deps Dependencies) (Discoverable, error)
//
// Factories receive raw JSON configuration and parse it themselves, validate
// it, and return an initialized component. All I/O happens in the component's
// Start() method, never in the factory.
//
// # Discoverable Interface
//
// All components implement Discoverable, providing metadata, port
// definitions, configuration schema, health status, and data flow metrics:
//
//	type Discoverable interface {
//		Meta() Metadata
//		InputPorts() []Port
//		OutputPorts() []Port
//		ConfigSchema() ConfigSchema
//		Health() HealthStatus
//		DataFlow() FlowMetrics
//	}
//
// Components that support lifecycle management additionally implement
// LifecycleComponent with Initialize(), Start(ctx), and Stop(timeout).
//
// # Ports
//
// Components declare their inputs and outputs using strongly-typed ports
// that implement the Portable interface:
//
//   - NATSPort: pub/sub messaging on NATS subjects
//   - JetStreamPort: durable streaming with JetStream for reliable delivery
//
// Example:
//
//	func (p *Processor) OutputPorts() []component.Port {
//		return []component.Port{
//			{
//				Name:      "merged_events",
//				Direction: component.DirectionOutput,
//				Config:    component.NATSPort{Subject: "logs.merged"},
//			},
//		}
//	}
//
// # Dependencies
//
// External dependencies are injected through the Dependencies struct:
//
//	type Dependencies struct {
//		NATSClient      *natsclient.Client      // Required: messaging
//		MetricsRegistry *metric.MetricsRegistry // Optional: Prometheus metrics
//		Logger          *slog.Logger            // Optional: structured logging
//	}
//
// This avoids parameter proliferation in factory functions and makes testing
// with mock dependencies straightforward.
//
// # Configuration Schema
//
// Components describe their configuration through ConfigSchema, with
// per-property types, defaults, enums, and basic/advanced categorization.
// Schemas are static metadata carried alongside the factory registration
// and used for validation and discovery surfaces.
package component
