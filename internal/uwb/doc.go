// Package uwb owns the ranging-domain vocabulary shared by every layer.
//
// Ownership boundary:
// - endpoint identity, addresses, session parameters
// - ranging engine contract (external collaborator)
// - application-facing endpoint events
package uwb
