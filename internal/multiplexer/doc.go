// Package multiplexer turns negotiated sessions into running ranging tasks
// and republishes their telemetry as per-endpoint application events.
//
// Ownership boundary:
// - one active ranging session per endpoint
// - ranging address -> endpoint resolution
// - session handles after handoff from the negotiator
// - no transport or wire-format knowledge
package multiplexer
