package store

import (
	"strings"
	"time"

	"github.com/mentorbridge/mentorbridge"
)

const tagSeparator = ","

type userRow struct {
	ID              string `gorm:"primaryKey;size:36"`
	Name            string `gorm:"size:200;not null"`
	Email           string `gorm:"size:254;uniqueIndex;not null"`
	PasswordHash    string `gorm:"size:255;not null"`
	Role            string `gorm:"size:16;index;not null"`
	College         string `gorm:"size:200"`
	Bio             string `gorm:"type:text"`
	Skills          string `gorm:"type:text"`
	Expertise       string `gorm:"type:text"`
	YearsExperience int
	Rating          float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (userRow) TableName() string { return "users" }

type messageRow struct {
	Seq        uint      `gorm:"primaryKey;autoIncrement"`
	ID         string    `gorm:"size:36;uniqueIndex;not null"`
	FromUserID string    `gorm:"size:36;index;not null"`
	ToUserID   string    `gorm:"size:36;index;not null"`
	Content    string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"index;autoCreateTime:false"`
}

func (messageRow) TableName() string { return "messages" }

type feedbackRow struct {
	ID         string    `gorm:"primaryKey;size:36"`
	SessionID  string    `gorm:"size:36;uniqueIndex:idx_feedback_session_author;not null"`
	FromUserID string    `gorm:"size:36;uniqueIndex:idx_feedback_session_author;not null"`
	ToUserID   string    `gorm:"size:36;index;not null"`
	Rating     int       `gorm:"not null"`
	Comment    string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"autoCreateTime:false"`
}

func (feedbackRow) TableName() string { return "feedback" }

func joinTags(tags []string) string {
	clean := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(strings.ReplaceAll(t, tagSeparator, " "))
		if t != "" {
			clean = append(clean, t)
		}
	}
	return strings.Join(clean, tagSeparator)
}

func splitTags(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, tagSeparator)
}

func (r userRow) record() (mentorbridge.UserRecord, error) {
	role, err := mentorbridge.ParseRole(r.Role)
	if err != nil {
		return mentorbridge.UserRecord{}, err
	}

	var profile mentorbridge.Profile
	switch role {
	case mentorbridge.RoleMentor:
		profile = mentorbridge.MentorProfile{
			Expertise:       splitTags(r.Expertise),
			YearsExperience: r.YearsExperience,
			Rating:          r.Rating,
		}
	default:
		profile, err = mentorbridge.NewProfile(role)
		if err != nil {
			return mentorbridge.UserRecord{}, err
		}
	}

	return mentorbridge.UserRecord{
		User: mentorbridge.User{
			ID:        r.ID,
			Name:      r.Name,
			Email:     r.Email,
			College:   r.College,
			Bio:       r.Bio,
			Skills:    splitTags(r.Skills),
			CreatedAt: r.CreatedAt.UTC(),
			Profile:   profile,
		},
		PasswordHash: r.PasswordHash,
	}, nil
}

func (r messageRow) message() mentorbridge.Message {
	return mentorbridge.Message{
		ID:         r.ID,
		FromUserID: r.FromUserID,
		ToUserID:   r.ToUserID,
		Content:    r.Content,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

func (r feedbackRow) feedback() mentorbridge.Feedback {
	return mentorbridge.Feedback{
		ID:         r.ID,
		SessionID:  r.SessionID,
		FromUserID: r.FromUserID,
		ToUserID:   r.ToUserID,
		Rating:     r.Rating,
		Comment:    r.Comment,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}
