package message

import (
	"fmt"
	"strings"
)

// Discriminant is the grouping key that partitions the record stream into
// independent per-source sub-streams. Two events with equal values for all
// configured group-by fields map to the same discriminant; an empty field
// list maps every event to the same (global) discriminant.
//
// The value is an opaque string so it can key a map directly.
type Discriminant string

// NewDiscriminant derives the grouping key for an event from an ordered
// list of field names. Absent fields are encoded distinctly from any
// present value, so {"host": nil} and {} group separately from {"host": "a"}.
func NewDiscriminant(e *LogEvent, groupBy []string) Discriminant {
	if len(groupBy) == 0 {
		return Discriminant("")
	}

	var b strings.Builder
	for i, field := range groupBy {
		if i > 0 {
			b.WriteByte('|')
		}
		v, ok := e.Get(field)
		if !ok {
			b.WriteByte('-')
			continue
		}
		// %q escapes the separator characters inside values
		fmt.Fprintf(&b, "%q", fmt.Sprint(v))
	}
	return Discriminant(b.String())
}
