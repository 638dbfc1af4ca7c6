package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/mentorbridge/mentorbridge"
	"gorm.io/gorm"
)

// CreateFeedback inserts fb. A second entry for the same session and author
// yields [mentorbridge.ErrFeedbackExists].
func (s *Store) CreateFeedback(ctx context.Context, fb mentorbridge.Feedback) error {
	row := feedbackRow{
		ID:         fb.ID,
		SessionID:  fb.SessionID,
		FromUserID: fb.FromUserID,
		ToUserID:   fb.ToUserID,
		Rating:     fb.Rating,
		Comment:    fb.Comment,
		CreatedAt:  fb.CreatedAt.UTC(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		err := tx.Model(&feedbackRow{}).
			Where("session_id = ? AND from_user_id = ?", fb.SessionID, fb.FromUserID).
			Count(&n).Error
		if err != nil {
			return err
		}
		if n > 0 {
			return mentorbridge.ErrFeedbackExists
		}
		return tx.Create(&row).Error
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mentorbridge.ErrFeedbackExists), errors.Is(err, gorm.ErrDuplicatedKey):
		return mentorbridge.ErrFeedbackExists
	default:
		return fmt.Errorf("create feedback: %w", err)
	}
}

// ListFeedbackFor returns feedback received by toUserID, newest first.
func (s *Store) ListFeedbackFor(ctx context.Context, toUserID string) ([]mentorbridge.Feedback, error) {
	var rows []feedbackRow
	err := s.db.WithContext(ctx).Where("to_user_id = ?", toUserID).
		Order("created_at DESC").Order("id ASC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}

	out := make([]mentorbridge.Feedback, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.feedback())
	}
	return out, nil
}

// RefreshMentorRating recomputes the rating of mentorID from every feedback
// row in one UPDATE, so concurrent submissions cannot store a stale mean.
// A mentor without feedback keeps the current rating.
func (s *Store) RefreshMentorRating(ctx context.Context, mentorID string) error {
	mean := s.db.Model(&feedbackRow{}).
		Select("ROUND(AVG(rating), 1)").
		Where("to_user_id = ?", mentorID)

	res := s.db.WithContext(ctx).Model(&userRow{}).
		Where("id = ? AND role = ?", mentorID, string(mentorbridge.RoleMentor)).
		Update("rating", gorm.Expr("COALESCE((?), rating)", mean))
	if res.Error != nil {
		return fmt.Errorf("refresh mentor rating: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return mentorbridge.ErrUserNotFound
	}
	return nil
}

var (
	_ mentorbridge.CredentialStore = (*Store)(nil)
	_ mentorbridge.MessageStore    = (*Store)(nil)
	_ mentorbridge.FeedbackStore   = (*Store)(nil)
)
