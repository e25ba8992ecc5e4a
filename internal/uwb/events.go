package uwb

type EventKind int

const (
	EventEndpointFound EventKind = iota + 1
	EventEndpointLost
	EventPositionUpdated
	EventUwbDisconnected
	EventEndpointMessage
)

func (k EventKind) String() string {
	switch k {
	case EventEndpointFound:
		return "endpoint_found"
	case EventEndpointLost:
		return "endpoint_lost"
	case EventPositionUpdated:
		return "position_updated"
	case EventUwbDisconnected:
		return "uwb_disconnected"
	case EventEndpointMessage:
		return "endpoint_message"
	default:
		return "unknown"
	}
}

// EndpointEvent is what the application observes. Position is set for
// EventPositionUpdated, Message for EventEndpointMessage.
type EndpointEvent struct {
	Kind     EventKind
	Endpoint Endpoint
	Position Position
	Message  []byte
}

func EndpointFound(e Endpoint) EndpointEvent {
	return EndpointEvent{Kind: EventEndpointFound, Endpoint: e}
}

func EndpointLost(e Endpoint) EndpointEvent {
	return EndpointEvent{Kind: EventEndpointLost, Endpoint: e}
}

func PositionUpdated(e Endpoint, p Position) EndpointEvent {
	return EndpointEvent{Kind: EventPositionUpdated, Endpoint: e, Position: p}
}

func UwbDisconnected(e Endpoint) EndpointEvent {
	return EndpointEvent{Kind: EventUwbDisconnected, Endpoint: e}
}

func EndpointMessage(e Endpoint, msg []byte) EndpointEvent {
	return EndpointEvent{Kind: EventEndpointMessage, Endpoint: e, Message: cloneBytes(msg)}
}
