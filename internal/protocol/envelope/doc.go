// Package envelope owns the OOB message contract carried in transport
// payloads.
//
// Ownership boundary:
// - control (capabilities, configuration) and data message shapes
// - encode through schema validation into frames
// - the control-first decode policy
package envelope
