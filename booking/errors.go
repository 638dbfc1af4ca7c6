package booking

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a booking id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput covers malformed booking fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidMentor is returned when the mentor id does not resolve to a
	// user with role mentor, or equals the student id.
	ErrInvalidMentor = fmt.Errorf("%w: mentor must be an existing mentor other than the student", ErrInvalidInput)
	// ErrInvalidSchedule is returned when date or time cannot be parsed.
	ErrInvalidSchedule = fmt.Errorf("%w: date must be YYYY-MM-DD and time HH:MM", ErrInvalidInput)
	// ErrInvalidStatus is returned for a status outside the closed set.
	ErrInvalidStatus = fmt.Errorf("%w: unknown status", ErrInvalidInput)
	// ErrInvalidTransition is returned when no edge exists from the current
	// status to the requested one.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrConflict is returned when a concurrent transition won the race.
	ErrConflict = errors.New("conflict")
	// ErrUnknownUser is returned by a [Directory] for a missing user id.
	ErrUnknownUser = errors.New("user not found")

	// ErrStatusChanged is returned by [Store.CompareAndSetStatus] when the
	// stored status no longer matches the expected one.
	ErrStatusChanged = errors.New("stored status does not match")
	// ErrRedisUnavailable wraps Redis transport failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrCorruptRecord is returned when a stored booking cannot be decoded.
	ErrCorruptRecord = errors.New("booking record corrupt")
)
