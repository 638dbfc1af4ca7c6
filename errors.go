package mentorbridge

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/mentorbridge/mentorbridge/booking"
	"github.com/mentorbridge/mentorbridge/permission"
)

// Error kinds. Every error returned by the Engine matches exactly one of
// these with errors.Is, or is an internal backend failure.
var (
	// ErrUnauthenticated covers a missing, malformed, expired or revoked
	// token, a token whose user no longer exists, and bad login credentials.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is returned when the identity's role or ownership does not
	// permit the action.
	ErrForbidden = permission.ErrForbidden
	// ErrNotFound is returned for unknown entity ids.
	ErrNotFound = booking.ErrNotFound
	// ErrInvalidInput is returned for malformed request fields.
	ErrInvalidInput = booking.ErrInvalidInput
	// ErrInvalidTransition is returned when a booking has no edge from its
	// current status to the requested one.
	ErrInvalidTransition = booking.ErrInvalidTransition
	// ErrConflict is returned when a concurrent request won a race, or a
	// one-per-entity record already exists.
	ErrConflict = booking.ErrConflict
	// ErrRateLimited is returned when a login or registration window is
	// exhausted.
	ErrRateLimited = errors.New("rate limited")
)

var (
	// ErrInvalidCredentials is returned by Login for an unknown email or a
	// wrong password. Both cases share one message.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)
	// ErrTokenRevoked is returned when a token predates the user's last
	// RevokeAll.
	ErrTokenRevoked = fmt.Errorf("%w: token revoked", ErrUnauthenticated)
	// ErrUserNotFound is returned by a [CredentialStore] for a missing user.
	ErrUserNotFound = fmt.Errorf("%w: user", ErrNotFound)
	// ErrAccountExists is returned when an email is already registered.
	ErrAccountExists = fmt.Errorf("%w: email already registered", ErrInvalidInput)
	// ErrRoleNotSelfAssignable is returned when registration asks for admin.
	ErrRoleNotSelfAssignable = fmt.Errorf("%w: role must be student or mentor", ErrInvalidInput)
	// ErrMentorFieldsNotAllowed is returned when a non-mentor sends
	// expertise or years of experience.
	ErrMentorFieldsNotAllowed = fmt.Errorf("%w: expertise and years_experience are mentor-only fields", ErrInvalidInput)
	// ErrInvalidMentor is returned by BookSession for a mentor id that is
	// missing, not a mentor, or the caller.
	ErrInvalidMentor = booking.ErrInvalidMentor
	// ErrInvalidSchedule is returned by BookSession for an unparsable date or time.
	ErrInvalidSchedule = booking.ErrInvalidSchedule
	// ErrFeedbackExists is returned on a second feedback for one session.
	ErrFeedbackExists = fmt.Errorf("%w: feedback already submitted for this session", ErrConflict)
	// ErrLoginRateLimited is returned when the login window is exhausted.
	ErrLoginRateLimited = fmt.Errorf("%w: login", ErrRateLimited)
	// ErrRegisterRateLimited is returned when the registration window is exhausted.
	ErrRegisterRateLimited = fmt.Errorf("%w: registration", ErrRateLimited)
)

var (
	// ErrRevocationDisabled is returned by RevokeAll when token versions are
	// not tracked. Logout is then client-side only.
	ErrRevocationDisabled = errors.New("token revocation disabled")
	// ErrBackendUnavailable wraps Redis and database failures.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrStoreNotConfigured is returned by message and feedback operations
	// when the Engine was built without the matching store.
	ErrStoreNotConfigured = errors.New("store not configured")
	// ErrEngineNotReady is returned when methods run on a nil Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ErrorKind is the caller-facing class of an Engine error.
type ErrorKind string

const (
	KindUnauthenticated   ErrorKind = "unauthenticated"
	KindForbidden         ErrorKind = "forbidden"
	KindNotFound          ErrorKind = "not_found"
	KindInvalidInput      ErrorKind = "invalid_input"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindConflict          ErrorKind = "conflict"
	KindRateLimited       ErrorKind = "rate_limited"
	KindUnsupported       ErrorKind = "unsupported"
	KindInternal          ErrorKind = "internal"
)

// KindOf classifies err. nil yields the empty kind.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrRevocationDisabled):
		return KindUnsupported
	default:
		return KindInternal
	}
}

// HTTPStatus maps the kind to a transport status code.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case "":
		return http.StatusOK
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidInput, KindInvalidTransition:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUnsupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
