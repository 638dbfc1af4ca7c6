package mentorbridge

import (
	"context"
	"errors"
	"time"

	"github.com/mentorbridge/mentorbridge/booking"
	"github.com/mentorbridge/mentorbridge/permission"
)

const unknownName = "Unknown"

// BookSession creates a pending booking from student id with req.MentorID.
func (e *Engine) BookSession(ctx context.Context, id *Identity, req BookingRequest) (*SessionView, error) {
	if err := e.require(id, permission.ActionBookSession); err != nil {
		return nil, err
	}

	b, err := e.bookings.Create(ctx, id.actor(), req)
	if err != nil {
		if errors.Is(err, ErrForbidden) {
			e.metricInc(MetricBookingDenied)
		}
		return nil, e.backendError("booking.create", err)
	}

	e.metricInc(MetricBookingCreated)
	e.emitAudit(ctx, auditEventBookingCreated, true, id.UserID, id.Role, b.ID, nil, func() map[string]string {
		return map[string]string{"mentor_id": b.MentorID}
	})

	return e.view(ctx, b, nil), nil
}

// TransitionSession moves booking sessionID to target for id. The read, the
// edge check and the write act as one compare-and-set: of two racing
// requests at most one succeeds, the other fails with [ErrConflict] or
// [ErrInvalidTransition].
func (e *Engine) TransitionSession(ctx context.Context, id *Identity, sessionID string, target string) (*SessionView, error) {
	if err := e.require(id, permission.ActionTransitionSession); err != nil {
		return nil, err
	}
	start := time.Now()
	defer e.observe(MetricTransitionLatency, start)

	to, err := booking.ParseStatus(target)
	if err != nil {
		return nil, err
	}

	b, err := e.bookings.Transition(ctx, sessionID, id.actor(), to)
	if err != nil {
		switch {
		case errors.Is(err, ErrForbidden):
			e.metricInc(MetricBookingDenied)
		case errors.Is(err, ErrConflict):
			e.metricInc(MetricBookingConflict)
		}
		e.emitAudit(ctx, auditEventBookingTransitionErr, false, id.UserID, id.Role, sessionID, err, func() map[string]string {
			return map[string]string{"target": string(to)}
		})
		return nil, e.backendError("booking.transition", err)
	}

	e.metricInc(transitionMetric(b.Status))
	e.emitAudit(ctx, auditEventBookingTransition, true, id.UserID, id.Role, b.ID, nil, func() map[string]string {
		return map[string]string{"status": string(b.Status)}
	})

	return e.view(ctx, b, nil), nil
}

func transitionMetric(to booking.Status) MetricID {
	switch to {
	case booking.StatusConfirmed:
		return MetricBookingConfirmed
	case booking.StatusCompleted:
		return MetricBookingCompleted
	default:
		return MetricBookingCancelled
	}
}

// GetSession returns one booking visible to id.
func (e *Engine) GetSession(ctx context.Context, id *Identity, sessionID string) (*SessionView, error) {
	if err := e.require(id, permission.ActionListSessions); err != nil {
		return nil, err
	}
	b, err := e.bookings.Get(ctx, sessionID, id.actor())
	if err != nil {
		return nil, e.backendError("booking.get", err)
	}
	return e.view(ctx, b, nil), nil
}

// ListSessions returns the caller's bookings, newest first. Admins see all.
func (e *Engine) ListSessions(ctx context.Context, id *Identity) ([]SessionView, error) {
	if err := e.require(id, permission.ActionListSessions); err != nil {
		return nil, err
	}
	list, err := e.bookings.ListFor(ctx, id.actor())
	if err != nil {
		return nil, e.backendError("booking.list", err)
	}

	names := make(map[string]string)
	out := make([]SessionView, 0, len(list))
	for _, b := range list {
		out = append(out, *e.view(ctx, b, names))
	}
	return out, nil
}

// view attaches participant names. names caches lookups across a list.
func (e *Engine) view(ctx context.Context, b *booking.Booking, names map[string]string) *SessionView {
	if names == nil {
		names = make(map[string]string, 2)
	}
	return &SessionView{
		Booking:     *b,
		StudentName: e.displayName(ctx, b.StudentID, names),
		MentorName:  e.displayName(ctx, b.MentorID, names),
	}
}

func (e *Engine) displayName(ctx context.Context, userID string, names map[string]string) string {
	if n, ok := names[userID]; ok {
		return n
	}
	name := unknownName
	rec, err := e.credentials.GetUserByID(ctx, userID)
	switch {
	case err == nil && rec.Name != "":
		name = rec.Name
	case err != nil && !errors.Is(err, ErrNotFound):
		e.logger.WithField("error", err.Error()).Warn("participant name lookup failed")
	}
	names[userID] = name
	return name
}
