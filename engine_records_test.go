package mentorbridge

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mentorbridge/mentorbridge/booking"
)

func TestSendAndListMessages(t *testing.T) {
	env := newTestEnv(t, nil)
	p := newBookingParties(t, env)
	ctx := context.Background()

	if _, err := env.engine.SendMessage(ctx, p.student, p.mentorID, "  hello  "); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	env.clock.Advance(time.Second)
	if _, err := env.engine.SendMessage(ctx, p.mentor, p.student.UserID, "hi back"); err != nil {
		t.Fatalf("reply failed: %v", err)
	}
	if _, err := env.engine.SendMessage(ctx, p.outsider, p.mentorID, "unrelated"); err != nil {
		t.Fatalf("outsider send failed: %v", err)
	}

	conv, err := env.engine.ListMessages(ctx, p.mentor, p.student.UserID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(conv) != 2 || conv[0].Content != "hello" || conv[1].Content != "hi back" {
		t.Fatalf("unexpected conversation %+v", conv)
	}
	if conv[0].FromUserName != "Sam" || conv[0].ToUserName != "Maya" || conv[1].FromUserName != "Maya" {
		t.Fatalf("unexpected participant names %+v", conv)
	}

	all, _ := env.engine.ListMessages(ctx, p.mentor, "")
	if len(all) != 3 {
		t.Fatalf("expected 3 messages for mentor, got %d", len(all))
	}
}

func TestSendMessageValidation(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Messages.MaxLength = 10 })
	p := newBookingParties(t, env)
	ctx := context.Background()

	tests := []struct {
		name    string
		to      string
		content string
		want    error
	}{
		{"empty content", p.mentorID, "   ", ErrInvalidInput},
		{"too long", p.mentorID, strings.Repeat("x", 11), ErrInvalidInput},
		{"self", p.student.UserID, "hello", ErrInvalidInput},
		{"unknown recipient", "nobody", "hello", ErrNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.engine.SendMessage(ctx, p.student, tc.to, tc.content); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestMessageTimestampsNeverDecreasePerSender(t *testing.T) {
	env := newTestEnv(t, nil)
	p := newBookingParties(t, env)
	ctx := context.Background()

	first, err := env.engine.SendMessage(ctx, p.student, p.mentorID, "one")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	env.clock.Advance(-time.Hour)
	second, err := env.engine.SendMessage(ctx, p.student, p.mentorID, "two")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if second.CreatedAt.Before(first.CreatedAt) {
		t.Fatalf("created_at went backwards: %v then %v", first.CreatedAt, second.CreatedAt)
	}
}

func TestMessagesRequireStore(t *testing.T) {
	_, rdb := newTestRedis(t)
	engine, err := New().WithConfig(testConfig()).WithRedis(rdb).WithCredentialStore(newMemStore()).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	id := &Identity{UserID: "u1", Role: RoleStudent}
	if _, err := engine.SendMessage(context.Background(), id, "u2", "hello"); !errors.Is(err, ErrStoreNotConfigured) {
		t.Fatalf("expected ErrStoreNotConfigured, got %v", err)
	}
}

func completedSession(t *testing.T, env *testEnv, p bookingParties) *SessionView {
	t.Helper()

	ctx := context.Background()
	s, err := env.engine.BookSession(ctx, p.student, BookingRequest{MentorID: p.mentorID, Date: "2024-06-01", Time: "14:00"})
	if err != nil {
		t.Fatalf("book failed: %v", err)
	}
	if _, err := env.engine.TransitionSession(ctx, p.mentor, s.ID, "confirmed"); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	done, err := env.engine.TransitionSession(ctx, p.mentor, s.ID, "completed")
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	return done
}

func TestSubmitFeedbackUpdatesMentorRating(t *testing.T) {
	env := newTestEnv(t, nil)
	p := newBookingParties(t, env)
	ctx := context.Background()

	for _, rating := range []int{5, 4, 4} {
		s := completedSession(t, env, p)
		if _, err := env.engine.SubmitFeedback(ctx, p.student, FeedbackRequest{SessionID: s.ID, Rating: rating, Comment: "great"}); err != nil {
			t.Fatalf("feedback failed: %v", err)
		}
	}

	mentor, err := env.engine.GetUser(ctx, p.mentorID)
	if err != nil {
		t.Fatalf("get mentor failed: %v", err)
	}
	m, _ := mentor.Mentor()
	if m.Rating != 4.3 {
		t.Fatalf("expected rating 4.3, got %v", m.Rating)
	}

	list, err := env.engine.ListFeedback(ctx, p.mentorID)
	if err != nil || len(list) != 3 {
		t.Fatalf("expected 3 feedback entries, got %d, %v", len(list), err)
	}
	if list[0].FromUserName != "Sam" {
		t.Fatalf("expected author name Sam, got %q", list[0].FromUserName)
	}

	env.store.deleteUser(p.student.UserID)
	list, err = env.engine.ListFeedback(ctx, p.mentorID)
	if err != nil {
		t.Fatalf("list after author removal failed: %v", err)
	}
	for _, fb := range list {
		if fb.FromUserName != "Unknown" {
			t.Fatalf("expected Unknown for removed author, got %q", fb.FromUserName)
		}
	}
}

func TestSubmitFeedbackRules(t *testing.T) {
	env := newTestEnv(t, nil)
	p := newBookingParties(t, env)
	ctx := context.Background()

	done := completedSession(t, env, p)
	pending, _ := env.engine.BookSession(ctx, p.student, BookingRequest{MentorID: p.mentorID, Date: "2024-06-03", Time: "10:00"})

	if _, err := env.engine.SubmitFeedback(ctx, p.student, FeedbackRequest{SessionID: done.ID, Rating: 6}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected InvalidInput for rating 6, got %v", err)
	}
	if _, err := env.engine.SubmitFeedback(ctx, p.student, FeedbackRequest{SessionID: pending.ID, Rating: 5}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected InvalidInput for pending session, got %v", err)
	}
	if _, err := env.engine.SubmitFeedback(ctx, p.mentor, FeedbackRequest{SessionID: done.ID, Rating: 5}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected Forbidden for mentor, got %v", err)
	}
	if _, err := env.engine.SubmitFeedback(ctx, p.outsider, FeedbackRequest{SessionID: done.ID, Rating: 5}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected Forbidden for outsider, got %v", err)
	}
	if _, err := env.engine.SubmitFeedback(ctx, p.student, FeedbackRequest{SessionID: done.ID, Rating: 5}); err != nil {
		t.Fatalf("feedback failed: %v", err)
	}
	_, err := env.engine.SubmitFeedback(ctx, p.student, FeedbackRequest{SessionID: done.ID, Rating: 4})
	if !errors.Is(err, ErrFeedbackExists) || !errors.Is(err, ErrConflict) {
		t.Fatalf("expected duplicate feedback Conflict, got %v", err)
	}
}

func TestMeAndUpdateProfile(t *testing.T) {
	env := newTestEnv(t, nil)
	p := newBookingParties(t, env)
	ctx := context.Background()

	me, err := env.engine.Me(ctx, p.student)
	if err != nil || me.Name != "Sam" {
		t.Fatalf("me failed: %+v, %v", me, err)
	}

	bio := "  learning Go  "
	skills := []string{"go", "go", "redis"}
	updated, err := env.engine.UpdateProfile(ctx, p.student, ProfileUpdate{Bio: &bio, Skills: &skills})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Bio != "learning Go" || len(updated.Skills) != 2 || updated.Name != "Sam" {
		t.Fatalf("unexpected profile %+v", updated)
	}

	years := 3
	if _, err := env.engine.UpdateProfile(ctx, p.student, ProfileUpdate{YearsExperience: &years}); !errors.Is(err, ErrMentorFieldsNotAllowed) {
		t.Fatalf("expected mentor-only rejection, got %v", err)
	}

	blank := " "
	if _, err := env.engine.UpdateProfile(ctx, p.student, ProfileUpdate{Name: &blank}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected blank name rejection, got %v", err)
	}

	expertise := []string{"kubernetes"}
	mentor, err := env.engine.UpdateProfile(ctx, p.mentor, ProfileUpdate{Expertise: &expertise, YearsExperience: &years})
	if err != nil {
		t.Fatalf("mentor update failed: %v", err)
	}
	m, ok := mentor.Mentor()
	if !ok || m.YearsExperience != 3 || m.Expertise[0] != "kubernetes" {
		t.Fatalf("unexpected mentor profile %+v", mentor.Profile)
	}
}

func TestSearchMentors(t *testing.T) {
	env := newTestEnv(t, nil)
	newBookingParties(t, env)
	env.register(t, "Zed", "mentor")
	ctx := context.Background()

	all, err := env.engine.SearchMentors(ctx, MentorFilter{})
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 mentors, got %d, %v", len(all), err)
	}
	byName, _ := env.engine.SearchMentors(ctx, MentorFilter{Search: " may "})
	if len(byName) != 1 || byName[0].Name != "Maya" {
		t.Fatalf("expected Maya, got %+v", byName)
	}
	byTag, _ := env.engine.SearchMentors(ctx, MentorFilter{Expertise: "GO"})
	if len(byTag) != 2 {
		t.Fatalf("expected 2 go mentors, got %d", len(byTag))
	}
}

func TestStatsAdminOnly(t *testing.T) {
	env := newTestEnv(t, nil)
	p := newBookingParties(t, env)
	admin := env.addAdmin(t)
	ctx := context.Background()

	completedSession(t, env, p)
	if _, err := env.engine.BookSession(ctx, p.student, BookingRequest{MentorID: p.mentorID, Date: "2024-06-05", Time: "08:00"}); err != nil {
		t.Fatalf("book failed: %v", err)
	}

	if _, err := env.engine.Stats(ctx, p.student); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected Forbidden for student, got %v", err)
	}

	stats, err := env.engine.Stats(ctx, admin)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.UsersByRole[RoleStudent] != 2 || stats.UsersByRole[RoleMentor] != 1 || stats.UsersByRole[RoleAdmin] != 1 {
		t.Fatalf("unexpected user counts %v", stats.UsersByRole)
	}
	if stats.SessionsByStatus[booking.StatusCompleted] != 1 || stats.SessionsByStatus[booking.StatusPending] != 1 {
		t.Fatalf("unexpected session counts %v", stats.SessionsByStatus)
	}
	if _, ok := stats.SessionsByStatus[booking.StatusCancelled]; !ok {
		t.Fatal("expected zero-filled cancelled count")
	}
}

func TestSenderStripeIsStable(t *testing.T) {
	ids := []string{"", "u-1", "u-2", "0d3c7a9e-5b5e-4f0e-9c1a-1f2d3e4f5a6b"}
	for _, id := range ids {
		s := senderStripe(id)
		if s >= senderLockStripes {
			t.Fatalf("stripe %d out of range for %q", s, id)
		}
		if again := senderStripe(id); again != s {
			t.Fatalf("stripe for %q moved from %d to %d", id, s, again)
		}
	}

	var e Engine
	if e.senderLock("u-1") != e.senderLock("u-1") {
		t.Fatal("expected one sender to always get the same lock")
	}
}
