// Package client is a Go client for the MentorBridge API that keeps the
// caller's session in a [Cache].
//
// Protected calls attach the cached token as a bearer credential through an
// oauth2 transport. Any 401 response clears the cache and surfaces
// [ErrUnauthenticated]: the server does not revoke tokens by default, so an
// expired or rejected token is the signal to log out locally. Requests are
// never retried.
package client
