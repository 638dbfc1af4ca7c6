package booking

import (
	"fmt"
	"strings"
	"time"
)

// Status is the closed set of booking states.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled}
}

// ParseStatus normalizes s and returns the matching status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Terminal reports whether no edge leaves s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s Status) String() string {
	return string(s)
}

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"

	maxNotesLength = 2000
)

// Booking is a mentorship session between one student and one mentor.
type Booking struct {
	ID        string
	StudentID string
	MentorID  string
	Date      string
	Time      string
	Notes     string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScheduledAt returns the booking start as a UTC instant.
func (b *Booking) ScheduledAt() time.Time {
	t, err := time.Parse(DateLayout+" "+TimeLayout, b.Date+" "+b.Time)
	if err != nil {
		return time.Time{}
	}
	return t
}

// IsParty reports whether userID is the booking's student or mentor.
func (b *Booking) IsParty(userID string) bool {
	return userID != "" && (userID == b.StudentID || userID == b.MentorID)
}

// ParseSchedule validates and normalizes a date and a time-of-day.
// Times with seconds are accepted and truncated to minutes.
func ParseSchedule(date, clock string) (string, string, error) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)

	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", "", fmt.Errorf("%w: date %q", ErrInvalidSchedule, date)
	}

	c, err := time.Parse(TimeLayout, clock)
	if err != nil {
		c, err = time.Parse("15:04:05", clock)
		if err != nil {
			return "", "", fmt.Errorf("%w: time %q", ErrInvalidSchedule, clock)
		}
	}

	return d.Format(DateLayout), c.Format(TimeLayout), nil
}
