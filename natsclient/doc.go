// Package natsclient manages the NATS connection shared by all pipeline
// components.
//
// # Overview
//
// Client wraps a single nats.Conn plus its JetStream context and guards
// every connection-level operation with a circuit breaker: after a
// configurable number of consecutive failures the circuit opens, further
// attempts fail fast with ErrCircuitOpen, and the backoff doubles (capped
// at a maximum) until a timer lets the next attempt through.
//
// # Usage
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithName("vector"),
//	    natsclient.WithCircuitBreakerThreshold(5),
//	    natsclient.WithMetrics(registry),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
// Core NATS messaging goes through Subscribe and Publish. JetStream
// operations (CreateStream, GetStream, PublishToStream, ConsumeStream) use
// the jetstream package API and are tracked for metrics when WithMetrics is
// configured.
//
// # Shutdown
//
// Close stops all consumers, unsubscribes core subscriptions, drains the
// connection within the drain timeout (or the context deadline if sooner),
// and clears credentials from memory. It is idempotent.
package natsclient
