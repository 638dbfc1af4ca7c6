package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mentorbridge/mentorbridge"
	"gorm.io/gorm"
)

// CreateMessage inserts msg as given.
func (s *Store) CreateMessage(ctx context.Context, msg mentorbridge.Message) error {
	row := messageRow{
		ID:         msg.ID,
		FromUserID: msg.FromUserID,
		ToUserID:   msg.ToUserID,
		Content:    msg.Content,
		CreatedAt:  msg.CreatedAt.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

// LatestMessageAt returns the created_at of the sender's newest message, or
// the zero time.
func (s *Store) LatestMessageAt(ctx context.Context, fromUserID string) (time.Time, error) {
	var row messageRow
	err := s.db.WithContext(ctx).Where("from_user_id = ?", fromUserID).
		Order("created_at DESC").Order("seq DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("latest message: %w", err)
	}
	return row.CreatedAt.UTC(), nil
}

// ListMessages returns userID's messages oldest first, optionally only the
// conversation with withUserID.
func (s *Store) ListMessages(ctx context.Context, userID, withUserID string) ([]mentorbridge.Message, error) {
	q := s.db.WithContext(ctx).Model(&messageRow{})
	if withUserID != "" {
		q = q.Where("(from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?)",
			userID, withUserID, withUserID, userID)
	} else {
		q = q.Where("from_user_id = ? OR to_user_id = ?", userID, userID)
	}

	var rows []messageRow
	if err := q.Order("created_at ASC").Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	out := make([]mentorbridge.Message, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.message())
	}
	return out, nil
}
