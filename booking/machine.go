package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mentorbridge/mentorbridge/permission"
)

// Directory resolves user ids to roles. It returns [ErrUnknownUser] when the
// id does not exist.
type Directory interface {
	LookupRole(ctx context.Context, userID string) (permission.Role, error)
}

// CreateRequest carries the caller-supplied booking fields.
type CreateRequest struct {
	MentorID string
	Date     string
	Time     string
	Notes    string
}

// Machine applies the booking lifecycle on top of a [Store].
type Machine struct {
	store     Store
	directory Directory
	policy    Policy
	now       func() time.Time
	newID     func() string
}

// Option customizes a [Machine].
type Option func(*Machine)

// WithClock overrides the time source used for created_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// WithIDGenerator overrides booking id generation.
func WithIDGenerator(gen func() string) Option {
	return func(m *Machine) {
		if gen != nil {
			m.newID = gen
		}
	}
}

// NewMachine wires a store, a user directory and a policy.
func NewMachine(store Store, directory Directory, policy Policy, opts ...Option) (*Machine, error) {
	if store == nil {
		return nil, errors.New("booking store required")
	}
	if directory == nil {
		return nil, errors.New("user directory required")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	m := &Machine{
		store:     store,
		directory: directory,
		policy:    policy,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Policy returns the active policy.
func (m *Machine) Policy() Policy {
	return m.policy
}

// Create books a pending session for student actor with req.MentorID.
func (m *Machine) Create(ctx context.Context, actor Actor, req CreateRequest) (*Booking, error) {
	if actor.Role != permission.RoleStudent {
		return nil, fmt.Errorf("%w: only students may book sessions", permission.ErrForbidden)
	}

	mentorID := strings.TrimSpace(req.MentorID)
	if mentorID == "" || mentorID == actor.UserID {
		return nil, ErrInvalidMentor
	}

	date, clock, err := ParseSchedule(req.Date, req.Time)
	if err != nil {
		return nil, err
	}

	notes := strings.TrimSpace(req.Notes)
	if len(notes) > maxNotesLength {
		return nil, fmt.Errorf("%w: notes exceed %d bytes", ErrInvalidInput, maxNotesLength)
	}

	role, err := m.directory.LookupRole(ctx, mentorID)
	if err != nil {
		if errors.Is(err, ErrUnknownUser) {
			return nil, ErrInvalidMentor
		}
		return nil, err
	}
	if role != permission.RoleMentor {
		return nil, ErrInvalidMentor
	}

	now := m.now().UTC()
	b := &Booking{
		ID:        m.newID(),
		StudentID: actor.UserID,
		MentorID:  mentorID,
		Date:      date,
		Time:      clock,
		Notes:     notes,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := m.store.Insert(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Transition moves booking id to target on behalf of actor.
//
// The edge check runs against a fresh read and the write is a compare-and-set
// on that read's status, so a concurrent winner surfaces here as [ErrConflict].
func (m *Machine) Transition(ctx context.Context, id string, actor Actor, target Status) (*Booking, error) {
	b, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := Check(m.policy, b, actor, target); err != nil {
		return nil, err
	}

	at := m.now().UTC()
	if err := m.store.CompareAndSetStatus(ctx, id, b.Status, target, at); err != nil {
		if errors.Is(err, ErrStatusChanged) {
			return nil, fmt.Errorf("%w: session %s changed concurrently", ErrConflict, id)
		}
		return nil, err
	}

	b.Status = target
	b.UpdatedAt = at
	return b, nil
}

// Get returns booking id if actor is a party to it. Admins may read any
// booking.
func (m *Machine) Get(ctx context.Context, id string, actor Actor) (*Booking, error) {
	b, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != permission.RoleAdmin && !b.IsParty(actor.UserID) {
		return nil, fmt.Errorf("%w: not a party to session %s", permission.ErrForbidden, id)
	}
	return b, nil
}

// ListFor returns the bookings visible to actor, newest first: students see
// the ones they booked, mentors the ones booked with them, admins all.
func (m *Machine) ListFor(ctx context.Context, actor Actor) ([]*Booking, error) {
	var (
		out []*Booking
		err error
	)

	switch actor.Role {
	case permission.RoleStudent:
		out, err = m.store.ListByStudent(ctx, actor.UserID)
	case permission.RoleMentor:
		out, err = m.store.ListByMentor(ctx, actor.UserID)
	case permission.RoleAdmin:
		out, err = m.store.ListAll(ctx)
	default:
		return nil, fmt.Errorf("%w: %s", permission.ErrUnknownRole, actor.Role)
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// CountByStatus returns booking totals per status.
func (m *Machine) CountByStatus(ctx context.Context) (map[Status]int64, error) {
	return m.store.CountByStatus(ctx)
}
