package ws

// EventKind discriminates the connection lifecycle events.
type EventKind int

const (
	// EventOpened fires once after a successful handshake.
	EventOpened EventKind = iota
	// EventMessage fires for every data frame received on an open connection.
	EventMessage
	// EventEchoed fires after a data frame was sent back successfully.
	EventEchoed
	// EventClosed fires once when the connection ends, for any reason.
	EventClosed
	// EventTransportError fires when a frame fails to decode or a send fails.
	// It may be followed by EventClosed depending on the endpoint policy.
	EventTransportError
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventOpened:
		return "opened"
	case EventMessage:
		return "message"
	case EventEchoed:
		return "echoed"
	case EventClosed:
		return "closed"
	case EventTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Event is the single closed variant type through which all per-connection
// callbacks are dispatched. Exactly the fields matching Kind are populated:
// Opcode and Payload for EventMessage/EventEchoed, Code and Reason for
// EventClosed, Err for EventTransportError.
type Event struct {
	Kind         EventKind
	ConnectionID string
	RemoteAddr   string

	Opcode  Opcode
	Payload []byte

	Code   CloseCode
	Reason string

	Err error
}

// EventHandler consumes connection events. Handlers run synchronously on the
// connection's goroutine and must not block the frame cycle.
type EventHandler func(Event)
