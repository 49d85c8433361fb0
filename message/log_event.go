package message

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xperimental/vector/errors"
)

// DefaultMessageKey is the field that holds the textual log line unless a
// component is configured otherwise.
const DefaultMessageKey = "message"

// LogEvent is the structured record flowing through the pipeline: a flat
// set of named fields, one of which (the message key) carries the textual
// log line. All fields survive a transform untouched unless the transform
// explicitly replaces them.
//
// LogEvent is not safe for concurrent mutation; each event has exactly one
// owner at any point in the pipeline.
type LogEvent struct {
	fields map[string]any
}

// NewLogEvent creates a log event carrying the given line under the default
// message key, stamped with an event ID and ingest timestamp.
func NewLogEvent(line string) *LogEvent {
	return &LogEvent{
		fields: map[string]any{
			DefaultMessageKey: line,
			"event_id":        uuid.New().String(),
			"timestamp":       time.Now().UTC().Format(time.RFC3339Nano),
		},
	}
}

// FromFields creates a log event from an existing field map. The map is
// owned by the event after this call.
func FromFields(fields map[string]any) *LogEvent {
	if fields == nil {
		fields = map[string]any{}
	}
	return &LogEvent{fields: fields}
}

// Get returns the value of a field and whether it is present.
func (e *LogEvent) Get(field string) (any, bool) {
	v, ok := e.fields[field]
	return v, ok
}

// Insert sets a field, replacing any existing value.
func (e *LogEvent) Insert(field string, value any) {
	e.fields[field] = value
}

// Message returns the string form of the field at the given key. Non-string
// values are rendered with fmt.Sprint so numeric log lines still classify.
// The second return is false when the field is absent.
func (e *LogEvent) Message(key string) (string, bool) {
	v, ok := e.fields[key]
	if !ok {
		return "", false
	}
	if s, isString := v.(string); isString {
		return s, true
	}
	return fmt.Sprint(v), true
}

// Fields returns the underlying field map. Callers must not mutate it while
// the event is owned by another component.
func (e *LogEvent) Fields() map[string]any {
	return e.fields
}

// Clone returns a shallow copy of the event with an independent field map.
func (e *LogEvent) Clone() *LogEvent {
	fields := make(map[string]any, len(e.fields))
	for k, v := range e.fields {
		fields[k] = v
	}
	return &LogEvent{fields: fields}
}

// MarshalJSON serializes the event as a flat JSON object.
func (e *LogEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.fields)
}

// UnmarshalJSON deserializes a flat JSON object into the event.
func (e *LogEvent) UnmarshalJSON(data []byte) error {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return errors.WrapInvalid(err, "LogEvent", "UnmarshalJSON", "field unmarshal")
	}
	e.fields = fields
	return nil
}

// Validate performs basic validation on the event.
func (e *LogEvent) Validate() error {
	if e.fields == nil {
		return errors.WrapInvalid(errors.ErrInvalidData, "LogEvent", "Validate", "fields cannot be nil")
	}
	return nil
}
