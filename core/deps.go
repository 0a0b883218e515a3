package core

import "pkt.systems/pslog"

// StoreDeps captures optional dependencies for the state store.
type StoreDeps struct {
	EventSink EventSink
	Logger    pslog.Logger
}
