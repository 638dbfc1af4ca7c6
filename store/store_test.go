package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mentorbridge/mentorbridge"
	"github.com/mentorbridge/mentorbridge/booking"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(Config{Driver: DriverSQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open store failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createUser(t *testing.T, s *Store, name, email string, profile mentorbridge.Profile) mentorbridge.UserRecord {
	t.Helper()

	rec, err := s.CreateUser(context.Background(), mentorbridge.CreateUserInput{
		Name:         name,
		Email:        email,
		PasswordHash: "$argon2id$placeholder",
		Skills:       []string{"go", "sql"},
		Profile:      profile,
	})
	if err != nil {
		t.Fatalf("create %s failed: %v", email, err)
	}
	return rec
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "oracle", DSN: "x"}); !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("expected ErrUnknownDriver, got %v", err)
	}
	if _, err := Open(Config{Driver: DriverSQLite}); !errors.Is(err, ErrEmptyDSN) {
		t.Fatalf("expected ErrEmptyDSN, got %v", err)
	}
}

func TestCreateAndLookupUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := createUser(t, s, "Maya", "Maya@Example.com", mentorbridge.MentorProfile{
		Expertise:       []string{"go", "distributed systems"},
		YearsExperience: 7,
	})
	if created.ID == "" || created.Email != "maya@example.com" {
		t.Fatalf("unexpected created record: %+v", created.User)
	}

	byEmail, err := s.GetUserByEmail(ctx, "MAYA@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if byEmail.ID != created.ID || byEmail.PasswordHash != "$argon2id$placeholder" {
		t.Fatalf("unexpected lookup result: %+v", byEmail)
	}

	byID, err := s.GetUserByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	m, ok := byID.Mentor()
	if !ok {
		t.Fatalf("expected mentor profile, got %T", byID.Profile)
	}
	if len(m.Expertise) != 2 || m.Expertise[1] != "distributed systems" || m.YearsExperience != 7 {
		t.Fatalf("unexpected mentor profile: %+v", m)
	}
	if len(byID.Skills) != 2 || byID.Skills[0] != "go" {
		t.Fatalf("unexpected skills: %v", byID.Skills)
	}

	if _, err := s.GetUserByID(ctx, "missing"); !errors.Is(err, mentorbridge.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := s.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, mentorbridge.ErrNotFound) {
		t.Fatalf("expected ErrNotFound kind, got %v", err)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := newTestStore(t)

	createUser(t, s, "Sam", "sam@example.com", mentorbridge.StudentProfile{})
	_, err := s.CreateUser(context.Background(), mentorbridge.CreateUserInput{
		Name:         "Other Sam",
		Email:        "sam@example.com",
		PasswordHash: "x",
		Profile:      mentorbridge.StudentProfile{},
	})
	if !errors.Is(err, mentorbridge.ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
}

func TestUpdateProfileKeepsMentorFieldsToMentors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	student := createUser(t, s, "Sam", "sam@example.com", mentorbridge.StudentProfile{})
	mentor := createUser(t, s, "Maya", "maya@example.com", mentorbridge.MentorProfile{})

	bio := "learning Go"
	years := 3
	expertise := []string{"rust"}
	rec, err := s.UpdateProfile(ctx, student.ID, mentorbridge.ProfileUpdate{Bio: &bio, YearsExperience: &years, Expertise: &expertise})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if rec.Bio != bio || rec.Role() != mentorbridge.RoleStudent {
		t.Fatalf("unexpected student record: %+v", rec.User)
	}

	rec, err = s.UpdateProfile(ctx, mentor.ID, mentorbridge.ProfileUpdate{YearsExperience: &years, Expertise: &expertise})
	if err != nil {
		t.Fatalf("UpdateProfile mentor failed: %v", err)
	}
	m, _ := rec.Mentor()
	if m.YearsExperience != 3 || len(m.Expertise) != 1 || m.Expertise[0] != "rust" {
		t.Fatalf("unexpected mentor profile: %+v", m)
	}

	if _, err := s.UpdateProfile(ctx, "missing", mentorbridge.ProfileUpdate{Bio: &bio}); !errors.Is(err, mentorbridge.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestRefreshMentorRating(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	student := createUser(t, s, "Sam", "sam@example.com", mentorbridge.StudentProfile{})
	mentor := createUser(t, s, "Maya", "maya@example.com", mentorbridge.MentorProfile{})

	if err := s.RefreshMentorRating(ctx, mentor.ID); err != nil {
		t.Fatalf("RefreshMentorRating without feedback failed: %v", err)
	}
	rec, _ := s.GetUserByID(ctx, mentor.ID)
	if m, _ := rec.Mentor(); m.Rating != 0 {
		t.Fatalf("expected untouched rating 0, got %v", m.Rating)
	}

	for i, rating := range []int{5, 4, 4} {
		fb := mentorbridge.Feedback{
			ID:         fmt.Sprintf("f%d", i),
			SessionID:  fmt.Sprintf("s%d", i),
			FromUserID: student.ID,
			ToUserID:   mentor.ID,
			Rating:     rating,
			CreatedAt:  now.Add(time.Duration(i) * time.Minute),
		}
		if err := s.CreateFeedback(ctx, fb); err != nil {
			t.Fatalf("CreateFeedback failed: %v", err)
		}
	}

	if err := s.RefreshMentorRating(ctx, mentor.ID); err != nil {
		t.Fatalf("RefreshMentorRating failed: %v", err)
	}
	rec, _ = s.GetUserByID(ctx, mentor.ID)
	if m, _ := rec.Mentor(); m.Rating != 4.3 {
		t.Fatalf("expected rating 4.3, got %v", m.Rating)
	}

	if err := s.RefreshMentorRating(ctx, student.ID); !errors.Is(err, mentorbridge.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound for student, got %v", err)
	}
}

func TestRefreshMentorRatingConcurrentSubmissions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	mentor := createUser(t, s, "Maya", "maya@example.com", mentorbridge.MentorProfile{})

	ratings := []int{1, 5, 5, 2, 4, 3, 5, 1, 2, 5, 4, 4}
	var wg sync.WaitGroup
	for i, rating := range ratings {
		wg.Add(1)
		go func(i, rating int) {
			defer wg.Done()
			fb := mentorbridge.Feedback{
				ID:         fmt.Sprintf("f%02d", i),
				SessionID:  fmt.Sprintf("s%02d", i),
				FromUserID: "stu",
				ToUserID:   mentor.ID,
				Rating:     rating,
				CreatedAt:  now,
			}
			if err := s.CreateFeedback(ctx, fb); err != nil {
				t.Errorf("CreateFeedback failed: %v", err)
				return
			}
			if err := s.RefreshMentorRating(ctx, mentor.ID); err != nil {
				t.Errorf("RefreshMentorRating failed: %v", err)
			}
		}(i, rating)
	}
	wg.Wait()

	// 41 / 12 = 3.41..., the last refresh sees every row.
	rec, _ := s.GetUserByID(ctx, mentor.ID)
	if m, _ := rec.Mentor(); m.Rating != 3.4 {
		t.Fatalf("expected final rating 3.4, got %v", m.Rating)
	}
}

func TestSearchMentors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	createUser(t, s, "Zoe", "zoe@example.com", mentorbridge.MentorProfile{Expertise: []string{"Go", "Kubernetes"}})
	createUser(t, s, "Adam", "adam@example.com", mentorbridge.MentorProfile{Expertise: []string{"golang tooling"}})
	createUser(t, s, "Maya", "maya@example.com", mentorbridge.MentorProfile{Expertise: []string{"design"}})
	createUser(t, s, "Gopher Student", "gs@example.com", mentorbridge.StudentProfile{})

	all, err := s.SearchMentors(ctx, mentorbridge.MentorFilter{})
	if err != nil {
		t.Fatalf("SearchMentors failed: %v", err)
	}
	if len(all) != 3 || all[0].Name != "Adam" || all[2].Name != "Zoe" {
		t.Fatalf("expected 3 mentors by name, got %+v", all)
	}

	bySearch, _ := s.SearchMentors(ctx, mentorbridge.MentorFilter{Search: "GO"})
	if len(bySearch) != 2 {
		t.Fatalf("expected substring match on expertise for 2 mentors, got %d", len(bySearch))
	}

	byTag, _ := s.SearchMentors(ctx, mentorbridge.MentorFilter{Expertise: "go"})
	if len(byTag) != 1 || byTag[0].Name != "Zoe" {
		t.Fatalf("expected whole-tag match for Zoe only, got %+v", byTag)
	}

	limited, _ := s.SearchMentors(ctx, mentorbridge.MentorFilter{Limit: 1})
	if len(limited) != 1 || limited[0].Name != "Adam" {
		t.Fatalf("expected limit 1, got %+v", limited)
	}
}

func TestCountUsersByRole(t *testing.T) {
	s := newTestStore(t)

	createUser(t, s, "Sam", "sam@example.com", mentorbridge.StudentProfile{})
	createUser(t, s, "Olive", "olive@example.com", mentorbridge.StudentProfile{})
	createUser(t, s, "Maya", "maya@example.com", mentorbridge.MentorProfile{})

	counts, err := s.CountUsersByRole(context.Background())
	if err != nil {
		t.Fatalf("CountUsersByRole failed: %v", err)
	}
	if counts[mentorbridge.RoleStudent] != 2 || counts[mentorbridge.RoleMentor] != 1 || counts[mentorbridge.RoleAdmin] != 0 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestMessagesOrderAndConversationFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	send := func(id, from, to string, at time.Time) {
		t.Helper()
		err := s.CreateMessage(ctx, mentorbridge.Message{ID: id, FromUserID: from, ToUserID: to, Content: id, CreatedAt: at})
		if err != nil {
			t.Fatalf("CreateMessage %s failed: %v", id, err)
		}
	}
	send("m3", "a", "b", base.Add(2*time.Minute))
	send("m1", "a", "b", base)
	send("m2", "b", "a", base.Add(time.Minute))
	send("m4", "a", "c", base.Add(3*time.Minute))

	conv, err := s.ListMessages(ctx, "a", "b")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(conv) != 3 || conv[0].ID != "m1" || conv[1].ID != "m2" || conv[2].ID != "m3" {
		t.Fatalf("unexpected conversation order: %+v", conv)
	}

	all, _ := s.ListMessages(ctx, "a", "")
	if len(all) != 4 || all[3].ID != "m4" {
		t.Fatalf("expected all 4 messages, got %+v", all)
	}

	latest, err := s.LatestMessageAt(ctx, "a")
	if err != nil {
		t.Fatalf("LatestMessageAt failed: %v", err)
	}
	if !latest.Equal(base.Add(3 * time.Minute)) {
		t.Fatalf("expected latest %v, got %v", base.Add(3*time.Minute), latest)
	}

	none, err := s.LatestMessageAt(ctx, "nobody")
	if err != nil || !none.IsZero() {
		t.Fatalf("expected zero time for no messages, got %v, %v", none, err)
	}
}

func TestFeedbackUniqueNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	fb := mentorbridge.Feedback{ID: "f1", SessionID: "s1", FromUserID: "stu", ToUserID: "men", Rating: 5, CreatedAt: now}
	if err := s.CreateFeedback(ctx, fb); err != nil {
		t.Fatalf("CreateFeedback failed: %v", err)
	}
	dup := fb
	dup.ID = "f2"
	if err := s.CreateFeedback(ctx, dup); !errors.Is(err, mentorbridge.ErrFeedbackExists) {
		t.Fatalf("expected ErrFeedbackExists, got %v", err)
	}
	second := mentorbridge.Feedback{ID: "f3", SessionID: "s2", FromUserID: "stu", ToUserID: "men", Rating: 4, CreatedAt: now.Add(time.Hour)}
	if err := s.CreateFeedback(ctx, second); err != nil {
		t.Fatalf("CreateFeedback second failed: %v", err)
	}

	list, _ := s.ListFeedbackFor(ctx, "men")
	if len(list) != 2 || list[0].ID != "f3" {
		t.Fatalf("expected newest first, got %+v", list)
	}
}

func TestEngineOverStore(t *testing.T) {
	s := newTestStore(t)
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	cfg := mentorbridge.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	engine, err := mentorbridge.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(s).
		WithMessageStore(s).
		WithFeedbackStore(s).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	ctx := context.Background()
	studentTok, _, err := engine.Register(ctx, mentorbridge.RegisterRequest{
		Name: "Sam", Email: "sam@example.com", Password: "correct-password-123",
	})
	if err != nil {
		t.Fatalf("Register student failed: %v", err)
	}
	mentorTok, mentor, err := engine.Register(ctx, mentorbridge.RegisterRequest{
		Name: "Maya", Email: "maya@example.com", Password: "correct-password-123",
		Role: "mentor", Expertise: []string{"go"}, YearsExperience: 5,
	})
	if err != nil {
		t.Fatalf("Register mentor failed: %v", err)
	}

	student, err := engine.Validate(ctx, studentTok.Value)
	if err != nil {
		t.Fatalf("Validate student failed: %v", err)
	}
	mentorID, err := engine.Validate(ctx, mentorTok.Value)
	if err != nil {
		t.Fatalf("Validate mentor failed: %v", err)
	}

	view, err := engine.BookSession(ctx, student, mentorbridge.BookingRequest{
		MentorID: mentor.ID, Date: "2024-06-01", Time: "14:00", Notes: "concurrency",
	})
	if err != nil {
		t.Fatalf("BookSession failed: %v", err)
	}
	for _, step := range []struct {
		who    *mentorbridge.Identity
		target string
	}{
		{mentorID, "confirmed"},
		{student, "completed"},
	} {
		if _, err := engine.TransitionSession(ctx, step.who, view.ID, step.target); err != nil {
			t.Fatalf("transition to %s failed: %v", step.target, err)
		}
	}

	if _, err := engine.SubmitFeedback(ctx, student, mentorbridge.FeedbackRequest{SessionID: view.ID, Rating: 4}); err != nil {
		t.Fatalf("SubmitFeedback failed: %v", err)
	}
	got, err := engine.GetUser(ctx, mentor.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if m, _ := got.Mentor(); m.Rating != 4 {
		t.Fatalf("expected stored rating 4, got %v", m.Rating)
	}

	if view.Status != booking.StatusPending {
		t.Fatalf("expected new booking pending, got %s", view.Status)
	}
	if _, _, err := engine.Login(ctx, "SAM@example.com", "correct-password-123"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
}
