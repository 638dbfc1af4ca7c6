package httpapi

import (
	"time"

	"github.com/mentorbridge/mentorbridge"
)

type registerRequest struct {
	Name            string   `json:"name" validate:"required,max=200"`
	Email           string   `json:"email" validate:"required,email,max=254"`
	Password        string   `json:"password" validate:"required"`
	Role            string   `json:"role"`
	College         string   `json:"college" validate:"max=200"`
	Bio             string   `json:"bio"`
	Skills          []string `json:"skills"`
	Expertise       []string `json:"expertise"`
	YearsExperience *int     `json:"years_experience" validate:"omitempty,gte=0"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type profileRequest struct {
	Name            *string   `json:"name"`
	College         *string   `json:"college"`
	Bio             *string   `json:"bio"`
	Skills          *[]string `json:"skills"`
	Expertise       *[]string `json:"expertise"`
	YearsExperience *int      `json:"years_experience"`
}

type bookingRequest struct {
	MentorID string `json:"mentor_id" validate:"required"`
	Date     string `json:"date" validate:"required"`
	Time     string `json:"time" validate:"required"`
	Notes    string `json:"notes" validate:"max=2000"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type messageRequest struct {
	ToUserID string `json:"to_user_id" validate:"required"`
	Content  string `json:"content" validate:"required"`
}

type feedbackRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Rating    int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment   string `json:"comment"`
}

type userResponse struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	Role            string    `json:"role"`
	College         string    `json:"college,omitempty"`
	Bio             string    `json:"bio,omitempty"`
	Skills          []string  `json:"skills"`
	Expertise       []string  `json:"expertise,omitempty"`
	YearsExperience *int      `json:"years_experience,omitempty"`
	Rating          *float64  `json:"rating,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func newUserResponse(u mentorbridge.User) userResponse {
	out := userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      string(u.Role()),
		College:   u.College,
		Bio:       u.Bio,
		Skills:    u.Skills,
		CreatedAt: u.CreatedAt,
	}
	if out.Skills == nil {
		out.Skills = []string{}
	}
	if m, ok := u.Mentor(); ok {
		years, rating := m.YearsExperience, m.Rating
		out.Expertise = m.Expertise
		out.YearsExperience = &years
		out.Rating = &rating
	}
	return out
}

type authResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      userResponse `json:"user"`
}

func newAuthResponse(tok mentorbridge.AuthToken, u mentorbridge.User) authResponse {
	return authResponse{
		Token:     tok.Value,
		TokenType: "bearer",
		ExpiresAt: tok.ExpiresAt,
		User:      newUserResponse(u),
	}
}

type sessionResponse struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id"`
	MentorID    string    `json:"mentor_id"`
	StudentName string    `json:"student_name"`
	MentorName  string    `json:"mentor_name"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Notes       string    `json:"notes,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newSessionResponse(v mentorbridge.SessionView) sessionResponse {
	return sessionResponse{
		ID:          v.ID,
		StudentID:   v.StudentID,
		MentorID:    v.MentorID,
		StudentName: v.StudentName,
		MentorName:  v.MentorName,
		Date:        v.Date,
		Time:        v.Time,
		Notes:       v.Notes,
		Status:      string(v.Status),
		CreatedAt:   v.CreatedAt,
		UpdatedAt:   v.UpdatedAt,
	}
}

type messageResponse struct {
	ID           string    `json:"id"`
	FromUserID   string    `json:"from_user_id"`
	FromUserName string    `json:"from_user_name,omitempty"`
	ToUserID     string    `json:"to_user_id"`
	ToUserName   string    `json:"to_user_name,omitempty"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
}

func newMessageResponse(v mentorbridge.MessageView) messageResponse {
	return messageResponse{
		ID:           v.ID,
		FromUserID:   v.FromUserID,
		FromUserName: v.FromUserName,
		ToUserID:     v.ToUserID,
		ToUserName:   v.ToUserName,
		Content:      v.Content,
		CreatedAt:    v.CreatedAt,
	}
}

type feedbackResponse struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	FromUserID   string    `json:"from_user_id"`
	FromUserName string    `json:"from_user_name,omitempty"`
	ToUserID     string    `json:"to_user_id"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func newFeedbackResponse(v mentorbridge.FeedbackView) feedbackResponse {
	return feedbackResponse{
		ID:           v.ID,
		SessionID:    v.SessionID,
		FromUserID:   v.FromUserID,
		FromUserName: v.FromUserName,
		ToUserID:     v.ToUserID,
		Rating:       v.Rating,
		Comment:      v.Comment,
		CreatedAt:    v.CreatedAt,
	}
}

type statsResponse struct {
	UsersByRole      map[string]int64 `json:"users_by_role"`
	SessionsByStatus map[string]int64 `json:"sessions_by_status"`
}

func newStatsResponse(s mentorbridge.Stats) statsResponse {
	out := statsResponse{
		UsersByRole:      make(map[string]int64, len(s.UsersByRole)),
		SessionsByStatus: make(map[string]int64, len(s.SessionsByStatus)),
	}
	for role, n := range s.UsersByRole {
		out.UsersByRole[string(role)] = n
	}
	for status, n := range s.SessionsByStatus {
		out.SessionsByStatus[string(status)] = n
	}
	return out
}

func mapSlice[T, R any](in []T, f func(T) R) []R {
	out := make([]R, 0, len(in))
	for _, v := range in {
		out = append(out, f(v))
	}
	return out
}
