package mentorbridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mentorbridge/mentorbridge/booking"
	"github.com/mentorbridge/mentorbridge/permission"
	"github.com/sirupsen/logrus"
)

const maxCommentLength = 2000

// SubmitFeedback records the caller's rating of a completed booking and
// refreshes the mentor's derived rating. One feedback per booking.
func (e *Engine) SubmitFeedback(ctx context.Context, id *Identity, req FeedbackRequest) (Feedback, error) {
	if err := e.require(id, permission.ActionSubmitFeedback); err != nil {
		return Feedback{}, err
	}
	if e.feedback == nil {
		return Feedback{}, ErrStoreNotConfigured
	}
	if req.Rating < 1 || req.Rating > 5 {
		return Feedback{}, fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput)
	}
	comment := strings.TrimSpace(req.Comment)
	if len(comment) > maxCommentLength {
		return Feedback{}, fmt.Errorf("%w: comment exceeds %d bytes", ErrInvalidInput, maxCommentLength)
	}

	b, err := e.bookings.Get(ctx, req.SessionID, id.actor())
	if err != nil {
		return Feedback{}, e.backendError("feedback.session", err)
	}
	if b.StudentID != id.UserID {
		return Feedback{}, fmt.Errorf("%w: only the session's student may leave feedback", ErrForbidden)
	}
	if b.Status != booking.StatusCompleted {
		return Feedback{}, fmt.Errorf("%w: session is %s, not completed", ErrInvalidInput, b.Status)
	}

	fb := Feedback{
		ID:         uuid.NewString(),
		SessionID:  b.ID,
		FromUserID: id.UserID,
		ToUserID:   b.MentorID,
		Rating:     req.Rating,
		Comment:    comment,
		CreatedAt:  e.now().UTC(),
	}
	if err := e.feedback.CreateFeedback(ctx, fb); err != nil {
		return Feedback{}, e.backendError("feedback.create", err)
	}

	e.refreshRating(ctx, b.MentorID)

	e.metricInc(MetricFeedbackSubmitted)
	e.emitAudit(ctx, auditEventFeedbackSubmitted, true, id.UserID, id.Role, b.ID, nil, nil)
	return fb, nil
}

// refreshRating is best effort: the feedback is already stored.
func (e *Engine) refreshRating(ctx context.Context, mentorID string) {
	if err := e.feedback.RefreshMentorRating(ctx, mentorID); err != nil {
		e.logger.WithFields(logrus.Fields{
			"mentor_id": mentorID,
			"error":     err.Error(),
		}).Warn("mentor rating refresh failed")
	}
}

// ListFeedback returns feedback received by userID, newest first, with each
// author's name. Authors that no longer exist are named "Unknown".
func (e *Engine) ListFeedback(ctx context.Context, userID string) ([]FeedbackView, error) {
	if e == nil || e.feedback == nil {
		return nil, ErrStoreNotConfigured
	}
	list, err := e.feedback.ListFeedbackFor(ctx, strings.TrimSpace(userID))
	if err != nil {
		return nil, e.backendError("feedback.list", err)
	}

	names := make(map[string]string)
	out := make([]FeedbackView, 0, len(list))
	for _, fb := range list {
		out = append(out, FeedbackView{
			Feedback:     fb,
			FromUserName: e.displayName(ctx, fb.FromUserID, names),
		})
	}
	return out, nil
}
