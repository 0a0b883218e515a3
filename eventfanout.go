package sigdeck

import (
	"pkt.systems/sigdeck/core"
	"pkt.systems/sigdeck/schema"
)

type eventFanout struct {
	sinks []core.EventSink
}

func (f eventFanout) OnStateEvent(event schema.StateEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnStateEvent(event)
	}
}
