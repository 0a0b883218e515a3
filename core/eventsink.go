package core

import "pkt.systems/sigdeck/schema"

// EventSink receives state change events from the store. Each event carries
// the full snapshot taken at the moment of the change.
type EventSink interface {
	OnStateEvent(event schema.StateEvent)
}
