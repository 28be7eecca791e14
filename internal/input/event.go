package input

import "time"

// EventType identifies a raw notification from an input transport.
type EventType string

const (
	// EventDetected announces a new source.
	EventDetected EventType = "source_detected"
	// EventLost announces that a source went away.
	EventLost EventType = "source_lost"
	// EventDown is a press on a tracked source.
	EventDown EventType = "input_down"
	// EventUp is a release on a tracked source.
	EventUp EventType = "input_up"
)

// Event is a raw notification produced by an input transport.
type Event struct {
	Type   EventType
	Source *Source
	Time   time.Time
}

// Sink receives raw input events. Implementations must be safe to call from
// the transport's goroutine.
type Sink interface {
	Submit(ev Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ev Event)

// Submit calls f(ev).
func (f SinkFunc) Submit(ev Event) { f(ev) }
