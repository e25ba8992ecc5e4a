package uwb

import "context"

// Engine is the native ranging stack. Session creation may block on device I/O.
type Engine interface {
	// NewControllerSession allocates a controller session for configID. The
	// handle carries the local address and the complex channel the controller
	// will offer.
	NewControllerSession(ctx context.Context, configID int) (SessionHandle, error)
	// NewControleeSession allocates a controlee session. The handle carries the
	// local address and angle capabilities.
	NewControleeSession(ctx context.Context) (SessionHandle, error)
}

// SessionHandle is exclusively owned by one component at a time: the
// negotiator until handoff, then the multiplexer entry that started it.
type SessionHandle interface {
	LocalAddress() Address
	// ComplexChannel is meaningful for controller handles only.
	ComplexChannel() ComplexChannel
	Capabilities() Capabilities
	// StartRanging starts the physical session. The returned channel is closed
	// when ranging ends or ctx is cancelled.
	StartRanging(ctx context.Context, params SessionParameters) (<-chan RangingSample, error)
	// Stop releases the session. It must be safe to call more than once.
	Stop() error
}
