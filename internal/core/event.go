package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventRoomMessage delivers a persisted chat message to room members.
	EventRoomMessage EventKind = iota
	// EventError notifies a single connection that its operation failed.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventRoomMessage:
		return "receive_message"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind    EventKind
	Room    string
	Message Message
	Error   *CoreError
}

func messageEvent(msg Message) *Event {
	return &Event{Kind: EventRoomMessage, Room: msg.Room, Message: msg}
}

func errorEvent(err *CoreError) *Event {
	return &Event{Kind: EventError, Error: err}
}
