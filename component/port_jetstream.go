package component

import (
	"fmt"
	"strings"
)

// JetStreamPort - persistent stream publish/consume
type JetStreamPort struct {
	StreamName string             `json:"stream_name"`
	Subjects   []string           `json:"subjects"`
	Consumer   string             `json:"consumer,omitempty"`
	Interface  *InterfaceContract `json:"interface,omitempty"`
}

// ResourceID returns unique identifier for JetStream ports
func (j JetStreamPort) ResourceID() string {
	return fmt.Sprintf("jetstream:%s:%s", j.StreamName, strings.Join(j.Subjects, ","))
}

// IsExclusive returns true as stream consumers own their cursor
func (j JetStreamPort) IsExclusive() bool {
	return j.Consumer != ""
}

// Type returns the port type identifier
func (j JetStreamPort) Type() string {
	return "jetstream"
}
