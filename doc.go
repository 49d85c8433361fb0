// Package vector is a log processing service that detects multi-line
// exception traces in log streams and merges each trace into a single
// event.
//
// # Architecture
//
// Log events flow over NATS. The detect_exceptions processor subscribes
// to raw log subjects, classifies each line with per-language state
// machines (Java, Javascript, C#, Python, PHP, Go, Ruby, Dart), buffers
// the lines of an open trace, and publishes one merged event per trace.
// Events that are not part of a trace pass through unmodified, in order.
//
// Streams can be partitioned with group_by fields so interleaved
// traces from different services or pods never merge into each other.
//
// # Packages
//
//   - message: the LogEvent record model and group discriminants
//   - component: component discovery, registration, and lifecycle
//   - processor/detect_exceptions: the trace detection processor
//   - natsclient: NATS client with circuit breaker and JetStream support
//   - metric: Prometheus metrics registry and HTTP endpoint
//   - config: service configuration loading
//   - errors: classified error handling (transient, invalid, fatal)
//
// # Running
//
// The cmd/vector binary loads a JSON configuration, connects to NATS,
// registers component factories, and runs the configured components
// until it receives SIGINT or SIGTERM.
package vector
