package adapter

import "arcana-reading-server/internal/domain/event"

// EventSink receives outbound events addressed to a connection session.
// Delivery is best effort: if the session has no live connection the event
// is dropped and the producing job keeps running.
type EventSink interface {
	Deliver(sessionID string, ev event.Event)
}
