package mentorbridge

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const testPassword = "correct-password-123"

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.JWT.AccessTTL = time.Hour
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	return cfg
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memStore is an in-memory CredentialStore, MessageStore and FeedbackStore.
type memStore struct {
	mu       sync.Mutex
	users    map[string]UserRecord
	byEmail  map[string]string
	messages []Message
	feedback []Feedback

	getByIDCalls int
	failLookups  error
}

func newMemStore() *memStore {
	return &memStore{
		users:   make(map[string]UserRecord),
		byEmail: make(map[string]string),
	}
}

func (s *memStore) GetUserByEmail(_ context.Context, email string) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failLookups != nil {
		return UserRecord{}, s.failLookups
	}
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return s.users[id], nil
}

func (s *memStore) GetUserByID(_ context.Context, userID string) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getByIDCalls++
	if s.failLookups != nil {
		return UserRecord{}, s.failLookups
	}
	rec, ok := s.users[userID]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return rec, nil
}

func (s *memStore) CreateUser(_ context.Context, in CreateUserInput) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[in.Email]; ok {
		return UserRecord{}, ErrAccountExists
	}
	rec := UserRecord{
		User: User{
			ID:        uuid.NewString(),
			Name:      in.Name,
			Email:     in.Email,
			College:   in.College,
			Bio:       in.Bio,
			Skills:    in.Skills,
			CreatedAt: time.Now().UTC(),
			Profile:   in.Profile,
		},
		PasswordHash: in.PasswordHash,
	}
	s.users[rec.ID] = rec
	s.byEmail[in.Email] = rec.ID
	return rec, nil
}

func (s *memStore) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	rec.PasswordHash = hash
	s.users[userID] = rec
	return nil
}

func (s *memStore) UpdateProfile(_ context.Context, userID string, u ProfileUpdate) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[userID]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	if u.Name != nil {
		rec.Name = *u.Name
	}
	if u.College != nil {
		rec.College = *u.College
	}
	if u.Bio != nil {
		rec.Bio = *u.Bio
	}
	if u.Skills != nil {
		rec.Skills = *u.Skills
	}
	if m, ok := rec.Profile.(MentorProfile); ok {
		if u.Expertise != nil {
			m.Expertise = *u.Expertise
		}
		if u.YearsExperience != nil {
			m.YearsExperience = *u.YearsExperience
		}
		rec.Profile = m
	}
	s.users[userID] = rec
	return rec, nil
}

func (s *memStore) SearchMentors(_ context.Context, f MentorFilter) ([]User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []User
	for _, rec := range s.users {
		m, ok := rec.Profile.(MentorProfile)
		if !ok {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(rec.Name), strings.ToLower(f.Search)) {
			continue
		}
		if f.Expertise != "" && !containsFold(m.Expertise, f.Expertise) {
			continue
		}
		out = append(out, rec.User)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func containsFold(tags []string, want string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, want) {
			return true
		}
	}
	return false
}

func (s *memStore) CountUsersByRole(context.Context) (map[Role]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Role]int64)
	for _, rec := range s.users {
		out[rec.Role()]++
	}
	return out, nil
}

func (s *memStore) CreateMessage(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

func (s *memStore) LatestMessageAt(_ context.Context, from string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest time.Time
	for _, m := range s.messages {
		if m.FromUserID == from && m.CreatedAt.After(latest) {
			latest = m.CreatedAt
		}
	}
	return latest, nil
}

func (s *memStore) ListMessages(_ context.Context, userID, with string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Message
	for _, m := range s.messages {
		if m.FromUserID != userID && m.ToUserID != userID {
			continue
		}
		if with != "" && m.FromUserID != with && m.ToUserID != with {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) CreateFeedback(_ context.Context, fb Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.feedback {
		if existing.SessionID == fb.SessionID && existing.FromUserID == fb.FromUserID {
			return ErrFeedbackExists
		}
	}
	s.feedback = append(s.feedback, fb)
	return nil
}

func (s *memStore) ListFeedbackFor(_ context.Context, to string) ([]Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Feedback
	for _, fb := range s.feedback {
		if fb.ToUserID == to {
			out = append(out, fb)
		}
	}
	return out, nil
}

func (s *memStore) RefreshMentorRating(_ context.Context, mentorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[mentorID]
	if !ok {
		return ErrUserNotFound
	}
	m, ok := rec.Profile.(MentorProfile)
	if !ok {
		return ErrUserNotFound
	}
	var sum, n int
	for _, fb := range s.feedback {
		if fb.ToUserID == mentorID {
			sum += fb.Rating
			n++
		}
	}
	if n == 0 {
		return nil
	}
	m.Rating = math.Round(float64(sum)/float64(n)*10) / 10
	rec.Profile = m
	s.users[mentorID] = rec
	return nil
}

func (s *memStore) deleteUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.users[userID]; ok {
		delete(s.byEmail, rec.Email)
		delete(s.users, userID)
	}
}

type testEnv struct {
	engine *Engine
	store  *memStore
	clock  *testClock
	mr     *miniredis.Miniredis
	redis  *redis.Client
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	mr, rdb := newTestRedis(t)
	store := newMemStore()
	clock := newTestClock()

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(store).
		WithMessageStore(store).
		WithFeedbackStore(store).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, store: store, clock: clock, mr: mr, redis: rdb}
}

func (env *testEnv) register(t *testing.T, name, role string) (AuthToken, User) {
	t.Helper()

	req := RegisterRequest{
		Name:     name,
		Email:    strings.ToLower(name) + "@example.com",
		Password: testPassword,
		Role:     role,
	}
	if role == "mentor" {
		req.Expertise = []string{"go", "distributed systems"}
		req.YearsExperience = 7
	}
	tok, user, err := env.engine.Register(context.Background(), req)
	if err != nil {
		t.Fatalf("register %s failed: %v", name, err)
	}
	return tok, user
}

// addAdmin provisions an admin the way the seed command does.
func (env *testEnv) addAdmin(t *testing.T) *Identity {
	t.Helper()

	user, created, err := env.engine.Provision(context.Background(), RegisterRequest{
		Name:     "Root",
		Email:    "root@example.com",
		Password: testPassword,
		Role:     "admin",
	})
	if err != nil || !created {
		t.Fatalf("provision admin failed: created=%v err=%v", created, err)
	}
	return &Identity{UserID: user.ID, Role: RoleAdmin}
}

func (env *testEnv) identity(t *testing.T, tok AuthToken) *Identity {
	t.Helper()

	id, err := env.engine.Validate(context.Background(), tok.Value)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	return id
}
