// Package message defines the structured record model for the pipeline.
//
// A LogEvent is a flat map of named fields, one of which (the message key,
// "message" by default) carries the textual log line. Transforms receive
// events, may replace the message field, and pass every other field through
// unchanged. Events serialize to and from flat JSON objects on the wire.
//
// A Discriminant partitions the event stream into independent sub-streams
// for stateful transforms: events whose configured group-by fields compare
// equal share a discriminant and therefore share transform state.
package message
