// Package registry holds the identity mappings the negotiation pipeline keys
// its state on.
//
// Ownership boundary:
// - transport id <-> endpoint bindings (negotiator-owned)
// - ranging address -> endpoint bindings (multiplexer-owned)
// - no I/O, no event emission
package registry
