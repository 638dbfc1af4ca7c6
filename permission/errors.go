package permission

import "errors"

var (
	// ErrForbidden is returned when an authenticated identity is not allowed
	// to perform an action, either by role or by ownership.
	ErrForbidden = errors.New("forbidden")
	// ErrUnknownRole is returned when a role name is outside the closed set.
	ErrUnknownRole = errors.New("unknown role")
	// ErrUnknownAction is returned by [Table.Require] for unregistered actions.
	ErrUnknownAction = errors.New("unknown action")
)
