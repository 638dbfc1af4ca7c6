package mentorbridge

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/mentorbridge/mentorbridge/booking"
	internalaudit "github.com/mentorbridge/mentorbridge/internal/audit"
	"github.com/mentorbridge/mentorbridge/permission"
	"github.com/sirupsen/logrus"
)

// Role is one of student, mentor or admin.
type Role = permission.Role

// RoleSet is the set of roles allowed to perform an action.
type RoleSet = permission.RoleSet

// Action names a protected operation in the capability table.
type Action = permission.Action

const (
	RoleStudent = permission.RoleStudent
	RoleMentor  = permission.RoleMentor
	RoleAdmin   = permission.RoleAdmin
)

// Profile is the role-specific part of a [User]. Exactly one of
// [StudentProfile], [MentorProfile] or [AdminProfile]; the set is closed.
type Profile interface {
	Role() Role
	isProfile()
}

// StudentProfile carries no student-only fields.
type StudentProfile struct{}

// MentorProfile holds fields that exist only for mentors. Rating is derived
// from feedback and never written by the mentor.
type MentorProfile struct {
	Expertise       []string
	YearsExperience int
	Rating          float64
}

// AdminProfile carries no admin-only fields.
type AdminProfile struct{}

func (StudentProfile) Role() Role { return RoleStudent }
func (MentorProfile) Role() Role  { return RoleMentor }
func (AdminProfile) Role() Role   { return RoleAdmin }

func (StudentProfile) isProfile() {}
func (MentorProfile) isProfile()  {}
func (AdminProfile) isProfile()   {}

// NewProfile returns the empty profile for role.
func NewProfile(role Role) (Profile, error) {
	switch role {
	case RoleStudent:
		return StudentProfile{}, nil
	case RoleMentor:
		return MentorProfile{Expertise: []string{}}, nil
	case RoleAdmin:
		return AdminProfile{}, nil
	}
	return nil, permission.ErrUnknownRole
}

// User is a platform account without its credential.
type User struct {
	ID        string
	Name      string
	Email     string
	College   string
	Bio       string
	Skills    []string
	CreatedAt time.Time
	Profile   Profile
}

// Role returns the role implied by the profile variant.
func (u User) Role() Role {
	if u.Profile == nil {
		return ""
	}
	return u.Profile.Role()
}

// Mentor returns the mentor fields when u is a mentor.
func (u User) Mentor() (MentorProfile, bool) {
	m, ok := u.Profile.(MentorProfile)
	return m, ok
}

// UserRecord is a [User] plus its password hash, as held by a
// [CredentialStore]. It never leaves the Engine.
type UserRecord struct {
	User
	PasswordHash string
}

// Identity is the resolved (user id, role) pair of a valid token.
type Identity struct {
	UserID    string
	Role      Role
	TokenID   string
	ExpiresAt time.Time
}

func (i Identity) actor() booking.Actor {
	return booking.Actor{UserID: i.UserID, Role: i.Role}
}

// AuthToken is an issued bearer credential.
type AuthToken struct {
	Value     string
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// AuthResponse is returned by Login and Register.
type AuthResponse struct {
	Token AuthToken
	User  User
}

// RegisterRequest is the self-service signup payload. Expertise and
// YearsExperience are accepted only with Role mentor.
type RegisterRequest struct {
	Name            string
	Email           string
	Password        string
	Role            string
	College         string
	Bio             string
	Skills          []string
	Expertise       []string
	YearsExperience int
}

// CreateUserInput is what the Engine hands a [CredentialStore] on signup.
type CreateUserInput struct {
	Name         string
	Email        string
	PasswordHash string
	College      string
	Bio          string
	Skills       []string
	Profile      Profile
}

// ProfileUpdate is a partial update. Nil fields are left unchanged.
type ProfileUpdate struct {
	Name            *string
	College         *string
	Bio             *string
	Skills          *[]string
	Expertise       *[]string
	YearsExperience *int
}

// MentorFilter narrows a directory search. Search matches name or expertise,
// case-insensitively; Expertise matches one expertise tag.
type MentorFilter struct {
	Search    string
	Expertise string
	Limit     int
}

// CredentialStore persists users and their password hashes. Lookups of a
// missing user return [ErrUserNotFound]; CreateUser returns
// [ErrAccountExists] for a taken email.
type CredentialStore interface {
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
	UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (UserRecord, error)
	SearchMentors(ctx context.Context, filter MentorFilter) ([]User, error)
	CountUsersByRole(ctx context.Context) (map[Role]int64, error)
}

// Message is an immutable note from one user to another.
type Message struct {
	ID         string
	FromUserID string
	ToUserID   string
	Content    string
	CreatedAt  time.Time
}

// MessageStore persists messages. ListMessages returns messages sent or
// received by userID, optionally only those exchanged with withUserID,
// ordered by CreatedAt ascending.
type MessageStore interface {
	CreateMessage(ctx context.Context, msg Message) error
	LatestMessageAt(ctx context.Context, fromUserID string) (time.Time, error)
	ListMessages(ctx context.Context, userID, withUserID string) ([]Message, error)
}

// Feedback is a student's rating of a completed session.
type Feedback struct {
	ID         string
	SessionID  string
	FromUserID string
	ToUserID   string
	Rating     int
	Comment    string
	CreatedAt  time.Time
}

// FeedbackRequest is the student-supplied part of a [Feedback].
type FeedbackRequest struct {
	SessionID string
	Rating    int
	Comment   string
}

// FeedbackStore persists feedback. CreateFeedback returns
// [ErrFeedbackExists] when the session already has feedback from the user.
// RefreshMentorRating sets the mentor's stored rating to the mean of all
// feedback they received, rounded to one decimal, as a single atomic step;
// it returns [ErrUserNotFound] when mentorID is not a mentor.
type FeedbackStore interface {
	CreateFeedback(ctx context.Context, fb Feedback) error
	ListFeedbackFor(ctx context.Context, toUserID string) ([]Feedback, error)
	RefreshMentorRating(ctx context.Context, mentorID string) error
}

// SessionView is a booking enriched with participant display names.
type SessionView struct {
	booking.Booking
	StudentName string
	MentorName  string
}

// MessageView is a message enriched with both participants' display names.
type MessageView struct {
	Message
	FromUserName string
	ToUserName   string
}

// FeedbackView is feedback enriched with its author's display name.
type FeedbackView struct {
	Feedback
	FromUserName string
}

// BookingRequest is the student-supplied part of a new booking.
type BookingRequest = booking.CreateRequest

// Stats is the admin overview: plain counts, no analytics.
type Stats struct {
	UsersByRole      map[Role]int64
	SessionsByStatus map[booking.Status]int64
}

// AuditEvent is the structured event passed to an [AuditSink].
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the Engine's dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink drops audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink forwards audit events to a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per audit event.
type JSONWriterSink = internalaudit.JSONWriterSink

// LogrusSink writes audit events as structured log entries.
type LogrusSink = internalaudit.LogrusSink

// NewChannelSink creates a [ChannelSink] with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] over w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewLogrusSink creates a [LogrusSink] over logger.
func NewLogrusSink(logger logrus.FieldLogger) *LogrusSink {
	return internalaudit.NewLogrusSink(logger)
}

// ParseRole normalizes s and returns the matching role.
func ParseRole(s string) (Role, error) {
	return permission.ParseRole(s)
}

// Roles builds a [RoleSet] for Authorize.
func Roles(roles ...Role) RoleSet {
	return permission.NewRoleSet(roles...)
}

// cleanTags trims tags, drops empties and duplicates, and keeps order.
func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}
