// Package negotiator runs the out-of-band (OOB) session negotiation between a
// controller and its controlees over a PeerTransport.
//
// Ownership boundary:
// - per-transport-id negotiation state and attempt ids
// - the endpoint registry (transport id <-> endpoint)
// - session handles until they are handed off in a Found event
// - no ranging lifecycle; that belongs to the multiplexer
package negotiator
