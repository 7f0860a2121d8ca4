// Package query answers structural questions about an instantiated asset: its objects
// and their transforms, node paths, groups, parameters and instancer conventions.
//
// Queries never panic on bad input. A negative node id is rejected before any engine
// call, and failures come back as classified engine errors (not_found for absence) so
// callers can decide whether absence is normal.
package query
