// Package permission defines the closed set of platform roles, a compact
// role-set bitmask, and the capability table that maps every protected action
// to the minimal set of roles allowed to invoke it.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import mentorbridge, jwt, or booking.
//   - Decide ownership. Party checks on a booking belong to the booking package.
package permission
