// Package mentorbridge is the session lifecycle and access control engine of
// the MentorBridge mentorship platform: it issues and validates bearer tokens,
// guards every protected action by role, and runs the booking state machine
// that carries a mentorship session from request to completion.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// mentorbridge is the public surface. It exposes [Engine], [Builder], [Config]
// and value types ([User], [Identity], [SessionView], [Stats]). Booking
// storage, rate limiting and audit dispatch live in sub-packages; persistence
// of users, messages and feedback is supplied by the caller through
// [CredentialStore], [MessageStore] and [FeedbackStore].
//
// # Error kinds
//
// Every error an Engine method returns matches one of [ErrUnauthenticated],
// [ErrForbidden], [ErrNotFound], [ErrInvalidInput], [ErrInvalidTransition],
// [ErrConflict] or [ErrRateLimited] under errors.Is, or wraps
// [ErrBackendUnavailable]. Boundary layers map kinds to transport codes; the
// engine never retries.
//
// # What this package must NOT do
//
//   - Hold a "current user" between calls. Identity travels with each call.
//   - Expose password hashes outside [CredentialStore].
//   - Import any sub-package that re-imports mentorbridge (no import cycles).
package mentorbridge
