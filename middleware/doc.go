// Package middleware exposes net/http adapters over [mentorbridge.Engine]
// authorization for embedders that do not use the gin router.
//
// # Guards
//
//   - [Guard] admits a bearer token whose stored role is in a role set.
//   - [RequireAction] admits a bearer token allowed by the capability table.
//
// Both write a JSON body {"detail", "code"} with 401, 403 or 500 on
// rejection, and place the [mentorbridge.Identity] on the request context
// where [mentorbridge.IdentityFromContext] finds it.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis or the credential store.
//   - Decide ownership of bookings or messages. Handlers ask the Engine.
package middleware
