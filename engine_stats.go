package mentorbridge

import (
	"context"

	"github.com/mentorbridge/mentorbridge/booking"
	"github.com/mentorbridge/mentorbridge/permission"
)

// Stats returns user counts per role and booking counts per status. Every
// role and status is present, zero-filled.
func (e *Engine) Stats(ctx context.Context, id *Identity) (Stats, error) {
	if err := e.require(id, permission.ActionViewStats); err != nil {
		return Stats{}, err
	}

	users, err := e.credentials.CountUsersByRole(ctx)
	if err != nil {
		return Stats{}, e.backendError("stats.users", err)
	}
	sessions, err := e.bookings.CountByStatus(ctx)
	if err != nil {
		return Stats{}, e.backendError("stats.sessions", err)
	}

	out := Stats{
		UsersByRole:      make(map[Role]int64, 3),
		SessionsByStatus: make(map[booking.Status]int64, 4),
	}
	for _, r := range permission.Roles() {
		out.UsersByRole[r] = users[r]
	}
	for _, s := range booking.Statuses() {
		out.SessionsByStatus[s] = sessions[s]
	}
	return out, nil
}
