// Package observability owns prometheus metrics and gin middleware.
//
// Ownership boundary:
// - metric registration and Record* helpers
// - admin request logging and request metrics
package observability
