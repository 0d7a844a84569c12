package events

// Event represents a structured state change emitted by the exchange.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events.
// It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Recorder collects emitted events in order. It backs tests and the RPC
// layer, which returns the events produced by a single operation.
type Recorder struct {
	Events []Event
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(evt Event) {
	if r == nil || evt == nil {
		return
	}
	r.Events = append(r.Events, evt)
}

// Reset discards previously recorded events.
func (r *Recorder) Reset() {
	if r != nil {
		r.Events = r.Events[:0]
	}
}
