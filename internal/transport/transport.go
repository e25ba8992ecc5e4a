// Package transport defines the peer-discovery transport the negotiation
// pipeline runs on.
//
// Ownership boundary:
// - discovery/advertising lifecycle
// - opaque payload delivery keyed by transport endpoint id
// - no knowledge of ranging or negotiation semantics
package transport

import (
	"context"
	"errors"
)

var (
	ErrUnknownTransportID = errors.New("transport: unknown transport endpoint id")
	ErrAlreadyStarted     = errors.New("transport: already started")
	ErrNotStarted         = errors.New("transport: not started")
)

// Mode selects which side of discovery this node plays. Controllers
// discover, controlees advertise.
type Mode int

const (
	ModeDiscover Mode = iota + 1
	ModeAdvertise
)

func (m Mode) String() string {
	switch m {
	case ModeDiscover:
		return "discover"
	case ModeAdvertise:
		return "advertise"
	default:
		return "unknown"
	}
}

// Opposite reports whether two modes pair with each other.
func (m Mode) Opposite(other Mode) bool {
	return (m == ModeDiscover && other == ModeAdvertise) ||
		(m == ModeAdvertise && other == ModeDiscover)
}

type EventKind int

const (
	EndpointConnected EventKind = iota + 1
	EndpointLost
	PayloadReceived
)

func (k EventKind) String() string {
	switch k {
	case EndpointConnected:
		return "endpoint_connected"
	case EndpointLost:
		return "endpoint_lost"
	case PayloadReceived:
		return "payload_received"
	default:
		return "unknown"
	}
}

// Event is one transport notification. TransportID is only meaningful to the
// transport that produced it. Payload is set for PayloadReceived.
type Event struct {
	Kind        EventKind
	TransportID string
	Payload     []byte
}

// PeerTransport is an unreliable peer link. Payloads may be lost,
// connections may drop at any time, and the same remote may reappear under a
// new transport id.
type PeerTransport interface {
	// Start begins discovery or advertising. The returned channel is closed
	// when ctx is cancelled.
	Start(ctx context.Context, mode Mode) (<-chan Event, error)
	// SendPayload is fire-and-forget; a nil error does not imply delivery.
	SendPayload(ctx context.Context, tid string, payload []byte) error
}
