package negotiator

import "github.com/danmuck/uwbranging/internal/uwb"

// State is the per-transport-id negotiation progress.
type State int

const (
	StateConnected State = iota + 1
	StateCapabilitiesKnown
	StateConfigured
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateCapabilitiesKnown:
		return "capabilities_known"
	case StateConfigured:
		return "configured"
	default:
		return "unknown"
	}
}

// conn is loop-owned state for one transport id.
type conn struct {
	state     State
	attempt   AttemptID
	handle    uwb.SessionHandle
	handedOff bool
}

// release stops a handle that never reached the multiplexer.
func (c *conn) release() {
	if c.handle != nil && !c.handedOff {
		_ = c.handle.Stop()
		c.handle = nil
	}
}
