// Package errors provides standardized error handling patterns for Vector components.
//
// # Overview
//
// The errors package implements a three-class error classification system for
// stream processing pipelines: Transient (temporary, retryable), Invalid
// (bad input, non-retryable), and Fatal (unrecoverable, stop processing).
//
// The classification system integrates with Go's standard error handling,
// supporting errors.Is(), errors.As(), and error wrapping chains.
//
// # Quick Start
//
// Use standard error variables for known conditions:
//
//	if !connected {
//	    return errors.ErrNoConnection
//	}
//
// Wrap errors with context for debugging:
//
//	if err := detector.Compile(pattern); err != nil {
//	    return errors.WrapInvalid(err, "Detector", "Compile", "pattern compilation")
//	}
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Component", "Method", "action")  // For retryable errors
//	errors.WrapInvalid(err, "Component", "Method", "action")    // For validation errors
//	errors.WrapFatal(err, "Component", "Method", "action")      // For unrecoverable errors
//
// The generic Wrap() function preserves the original error's classification.
//
// # Classification in this pipeline
//
// The transform core is synchronous and deterministic: the only fallible
// operation is configuration (regular expression compilation, language
// selection), which surfaces as Invalid at construction time. Transient
// errors appear exclusively at the transport boundary (NATS connect,
// subscribe, publish). Nothing in the record path retries; per-record
// processing never errors.
//
// # Context Cancellation
//
// Context errors (context.DeadlineExceeded, context.Canceled) are
// classified as Transient, enabling consistent handling of context-based
// shutdown alongside network timeouts.
package errors
