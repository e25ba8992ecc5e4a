package negotiator

import (
	"github.com/danmuck/uwbranging/internal/uwb"
	"github.com/google/uuid"
)

// AttemptID names one negotiation on one transport id. A reconnect of the
// same endpoint gets a new attempt.
type AttemptID string

func newAttemptID() AttemptID {
	return AttemptID(uuid.NewString())
}

type EventKind int

const (
	EventFound EventKind = iota + 1
	EventLost
	EventMessage
)

func (k EventKind) String() string {
	switch k {
	case EventFound:
		return "found"
	case EventLost:
		return "lost"
	case EventMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Event is what the negotiator hands to the multiplexer. Params and Handle
// are set for EventFound, Message for EventMessage. The receiver of an
// EventFound owns Handle.
type Event struct {
	Kind     EventKind
	Endpoint uwb.Endpoint
	Attempt  AttemptID
	Params   uwb.SessionParameters
	Handle   uwb.SessionHandle
	Message  []byte
}

func Found(e uwb.Endpoint, attempt AttemptID, params uwb.SessionParameters, h uwb.SessionHandle) Event {
	return Event{Kind: EventFound, Endpoint: e, Attempt: attempt, Params: params, Handle: h}
}

func Lost(e uwb.Endpoint, attempt AttemptID) Event {
	return Event{Kind: EventLost, Endpoint: e, Attempt: attempt}
}

func MessageReceived(e uwb.Endpoint, attempt AttemptID, msg []byte) Event {
	return Event{Kind: EventMessage, Endpoint: e, Attempt: attempt, Message: msg}
}
