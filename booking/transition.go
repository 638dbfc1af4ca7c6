package booking

import (
	"fmt"
	"strings"

	"github.com/mentorbridge/mentorbridge/permission"
)

// Actor is the authenticated caller requesting a change.
type Actor struct {
	UserID string
	Role   permission.Role
}

// CompletionActors selects who may mark a confirmed booking completed.
type CompletionActors string

const (
	CompleteByParticipants CompletionActors = "participants"
	CompleteByMentor       CompletionActors = "mentor"
)

// Policy holds the configurable parts of the edge table.
type Policy struct {
	StudentMayCancelPending bool
	CompletionActors        CompletionActors
}

// DefaultPolicy lets a student withdraw a pending request and lets either
// participant mark a confirmed session completed.
func DefaultPolicy() Policy {
	return Policy{
		StudentMayCancelPending: true,
		CompletionActors:        CompleteByParticipants,
	}
}

// Validate rejects unknown completion settings.
func (p Policy) Validate() error {
	switch CompletionActors(strings.ToLower(string(p.CompletionActors))) {
	case CompleteByParticipants, CompleteByMentor:
		return nil
	}
	return fmt.Errorf("unknown completion actors %q", p.CompletionActors)
}

type edge struct {
	from Status
	to   Status
}

type actorRule func(p Policy, b *Booking, a Actor) bool

func isMentorOf(b *Booking, a Actor) bool {
	return a.Role == permission.RoleMentor && a.UserID == b.MentorID
}

func isStudentOf(b *Booking, a Actor) bool {
	return a.Role == permission.RoleStudent && a.UserID == b.StudentID
}

var edges = map[edge]actorRule{
	{StatusPending, StatusConfirmed}: func(_ Policy, b *Booking, a Actor) bool {
		return isMentorOf(b, a)
	},
	{StatusPending, StatusCancelled}: func(p Policy, b *Booking, a Actor) bool {
		return isMentorOf(b, a) || (p.StudentMayCancelPending && isStudentOf(b, a))
	},
	{StatusConfirmed, StatusCompleted}: func(p Policy, b *Booking, a Actor) bool {
		if isMentorOf(b, a) {
			return true
		}
		return CompletionActors(strings.ToLower(string(p.CompletionActors))) == CompleteByParticipants && isStudentOf(b, a)
	},
}

// EdgeExists reports whether the table has an edge from -> to.
func EdgeExists(from, to Status) bool {
	_, ok := edges[edge{from, to}]
	return ok
}

// Next returns the statuses reachable from s in one step.
func Next(s Status) []Status {
	out := make([]Status, 0, 2)
	for _, st := range Statuses() {
		if EdgeExists(s, st) {
			out = append(out, st)
		}
	}
	return out
}

// Check applies the edge table to b without mutating it. It returns
// [permission.ErrForbidden] when the actor is not a party or not allowed on
// the edge, and [ErrInvalidTransition] when the edge does not exist.
func Check(p Policy, b *Booking, a Actor, to Status) error {
	if !b.IsParty(a.UserID) {
		return fmt.Errorf("%w: not a party to session %s", permission.ErrForbidden, b.ID)
	}

	rule, ok := edges[edge{b.Status, to}]
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, to)
	}

	if !rule(p, b, a) {
		return fmt.Errorf("%w: %s may not move session from %s to %s", permission.ErrForbidden, a.Role, b.Status, to)
	}

	return nil
}
