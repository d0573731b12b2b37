package core

import "github.com/rs/zerolog"

// Dispatcher fans a persisted message out to the members of its room.
type Dispatcher struct {
	registry  *Registry
	transport Transport
	log       *zerolog.Logger
}

// NewDispatcher builds a dispatcher over registry membership and a transport.
func NewDispatcher(registry *Registry, transport Transport, logger *zerolog.Logger) *Dispatcher {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Dispatcher{registry: registry, transport: transport, log: logger}
}

// Dispatch delivers msg to every member of room at the instant of the call.
// Failed deliveries are logged and skipped. Returns how many members accepted the event.
func (d *Dispatcher) Dispatch(room string, msg Message) int {
	members := d.registry.MembersOf(room)
	ev := messageEvent(msg)

	delivered := 0
	for _, connID := range members {
		if err := d.transport.Send(connID, ev); err != nil {
			d.log.Warn().Err(err).Str("conn_id", connID).Str("room", room).Msg("drop message for recipient")
			continue
		}
		delivered++
	}
	return delivered
}
