package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mentorbridge/mentorbridge"
	"github.com/mentorbridge/mentorbridge/store"
	"github.com/redis/go-redis/v9"
)

const testPassword = "correct-password-123"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type apiEnv struct {
	handler http.Handler
	engine  *mentorbridge.Engine
	clock   *clock
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	db, err := store.Open(store.Config{Driver: store.DriverSQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open store failed: %v", err)
	}

	cfg := mentorbridge.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.JWT.AccessTTL = time.Hour
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	clk := &clock{now: time.Now().UTC().Truncate(time.Second)}
	engine, err := mentorbridge.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(db).
		WithMessageStore(db).
		WithFeedbackStore(db).
		WithClock(clk.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() {
		engine.Close()
		_ = db.Close()
		_ = rdb.Close()
		mr.Close()
	})

	h := New(engine, nil, Options{Mode: "test", CORSOrigins: []string{"https://app.example.com"}})
	return &apiEnv{handler: h, engine: engine, clock: clk}
}

func (env *apiEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body failed: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q failed: %v", rec.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int, code string) {
	t.Helper()

	if rec.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
	if code != "" {
		if body := decode[errorBody](t, rec); body.Code != code {
			t.Fatalf("expected code %q, got %+v", code, body)
		}
	}
}

func (env *apiEnv) register(t *testing.T, name, email, role string) authResponse {
	t.Helper()

	body := map[string]any{"name": name, "email": email, "password": testPassword, "role": role}
	if role == "mentor" {
		body["expertise"] = []string{"go"}
		body["years_experience"] = 4
	}
	rec := env.do(t, http.MethodPost, "/auth/register", "", body)
	expectStatus(t, rec, http.StatusCreated, "")
	return decode[authResponse](t, rec)
}

func TestHealthz(t *testing.T) {
	env := newAPIEnv(t)
	expectStatus(t, env.do(t, http.MethodGet, "/healthz", "", nil), http.StatusOK, "")
}

func TestRegisterLoginAndMe(t *testing.T) {
	env := newAPIEnv(t)

	reg := env.register(t, "Sam", "sam@example.com", "student")
	if reg.Token == "" || reg.TokenType != "bearer" || reg.User.Role != "student" {
		t.Fatalf("unexpected register response: %+v", reg)
	}

	rec := env.do(t, http.MethodPost, "/auth/register", "", map[string]any{
		"name": "Sam Again", "email": "SAM@example.com", "password": testPassword,
	})
	expectStatus(t, rec, http.StatusBadRequest, "invalid_input")

	rec = env.do(t, http.MethodPost, "/auth/login", "", map[string]any{"email": "sam@example.com", "password": "wrong-password"})
	expectStatus(t, rec, http.StatusUnauthorized, "unauthenticated")
	if body := decode[errorBody](t, rec); body.Detail != "invalid credentials" {
		t.Fatalf("expected invalid credentials detail, got %q", body.Detail)
	}

	rec = env.do(t, http.MethodPost, "/auth/login", "", map[string]any{"email": "sam@example.com", "password": testPassword})
	expectStatus(t, rec, http.StatusOK, "")
	login := decode[authResponse](t, rec)

	expectStatus(t, env.do(t, http.MethodGet, "/auth/me", "", nil), http.StatusUnauthorized, "unauthenticated")

	rec = env.do(t, http.MethodGet, "/auth/me", login.Token, nil)
	expectStatus(t, rec, http.StatusOK, "")
	if me := decode[userResponse](t, rec); me.ID != reg.User.ID || me.Expertise != nil {
		t.Fatalf("unexpected me: %+v", me)
	}
}

func TestRegisterValidationFields(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodPost, "/auth/register", "", map[string]any{"name": "", "email": "nope", "password": testPassword})
	expectStatus(t, rec, http.StatusBadRequest, "invalid_input")
	body := decode[errorBody](t, rec)
	if body.Fields["email"] == "" || body.Fields["name"] == "" {
		t.Fatalf("expected per-field errors for name and email, got %+v", body.Fields)
	}

	rec = env.do(t, http.MethodPost, "/auth/register", "", map[string]any{
		"name": "Mallory", "email": "mallory@example.com", "password": testPassword, "role": "admin",
	})
	expectStatus(t, rec, http.StatusBadRequest, "invalid_input")
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	env := newAPIEnv(t)
	student := env.register(t, "Sam", "sam@example.com", "student")
	mentor := env.register(t, "Maya", "maya@example.com", "mentor")

	booking := map[string]any{"mentor_id": mentor.User.ID, "date": "2024-06-01", "time": "14:00", "notes": "goroutines"}
	expectStatus(t, env.do(t, http.MethodPost, "/sessions", mentor.Token, booking), http.StatusForbidden, "forbidden")

	rec := env.do(t, http.MethodPost, "/sessions", student.Token, booking)
	expectStatus(t, rec, http.StatusCreated, "")
	session := decode[sessionResponse](t, rec)
	if session.Status != "pending" || session.MentorName != "Maya" || session.StudentName != "Sam" {
		t.Fatalf("unexpected session: %+v", session)
	}

	path := "/sessions/" + session.ID + "/status"
	expectStatus(t, env.do(t, http.MethodPut, path, student.Token, map[string]string{"status": "confirmed"}), http.StatusForbidden, "forbidden")

	rec = env.do(t, http.MethodPut, path, mentor.Token, map[string]string{"status": "confirmed"})
	expectStatus(t, rec, http.StatusOK, "")
	if got := decode[sessionResponse](t, rec); got.Status != "confirmed" {
		t.Fatalf("expected confirmed, got %s", got.Status)
	}

	expectStatus(t, env.do(t, http.MethodPut, path+"?status=completed", student.Token, nil), http.StatusOK, "")
	expectStatus(t, env.do(t, http.MethodPut, path, mentor.Token, map[string]string{"status": "cancelled"}), http.StatusBadRequest, "invalid_transition")
	expectStatus(t, env.do(t, http.MethodPut, path, mentor.Token, map[string]string{"status": "archived"}), http.StatusBadRequest, "invalid_input")
	expectStatus(t, env.do(t, http.MethodPut, path, mentor.Token, map[string]string{}), http.StatusBadRequest, "invalid_input")
	expectStatus(t, env.do(t, http.MethodPut, "/sessions/missing/status", mentor.Token, map[string]string{"status": "confirmed"}), http.StatusNotFound, "not_found")

	rec = env.do(t, http.MethodGet, "/sessions", student.Token, nil)
	expectStatus(t, rec, http.StatusOK, "")
	if list := decode[[]sessionResponse](t, rec); len(list) != 1 || list[0].Status != "completed" {
		t.Fatalf("unexpected session list: %+v", list)
	}

	rec = env.do(t, http.MethodPost, "/feedback", student.Token, map[string]any{"session_id": session.ID, "rating": 5, "comment": "great"})
	expectStatus(t, rec, http.StatusCreated, "")
	expectStatus(t, env.do(t, http.MethodPost, "/feedback", student.Token, map[string]any{"session_id": session.ID, "rating": 4}), http.StatusConflict, "conflict")

	rec = env.do(t, http.MethodGet, "/users/"+mentor.User.ID, "", nil)
	expectStatus(t, rec, http.StatusOK, "")
	if u := decode[userResponse](t, rec); u.Rating == nil || *u.Rating != 5 {
		t.Fatalf("expected mentor rating 5, got %+v", u.Rating)
	}

	rec = env.do(t, http.MethodGet, "/feedback/"+mentor.User.ID, "", nil)
	expectStatus(t, rec, http.StatusOK, "")
	fbs := decode[[]feedbackResponse](t, rec)
	if len(fbs) != 1 || fbs[0].FromUserName != "Sam" || fbs[0].Rating != 5 {
		t.Fatalf("expected Sam's feedback with author name, got %+v", fbs)
	}
}

func TestExpiredTokenIsUnauthenticated(t *testing.T) {
	env := newAPIEnv(t)
	student := env.register(t, "Sam", "sam@example.com", "student")

	expectStatus(t, env.do(t, http.MethodGet, "/sessions", student.Token, nil), http.StatusOK, "")
	env.clock.Advance(time.Hour)
	expectStatus(t, env.do(t, http.MethodGet, "/sessions", student.Token, nil), http.StatusUnauthorized, "unauthenticated")
}

func TestMessagesAndDirectory(t *testing.T) {
	env := newAPIEnv(t)
	student := env.register(t, "Sam", "sam@example.com", "student")
	mentor := env.register(t, "Maya", "maya@example.com", "mentor")

	rec := env.do(t, http.MethodPost, "/messages", student.Token, map[string]string{"to_user_id": mentor.User.ID, "content": "  hello  "})
	expectStatus(t, rec, http.StatusCreated, "")
	if msg := decode[messageResponse](t, rec); msg.Content != "hello" {
		t.Fatalf("expected trimmed content, got %q", msg.Content)
	}
	expectStatus(t, env.do(t, http.MethodPost, "/messages", student.Token, map[string]string{"to_user_id": "nobody", "content": "hi"}), http.StatusNotFound, "not_found")

	rec = env.do(t, http.MethodGet, "/messages?with="+student.User.ID, mentor.Token, nil)
	expectStatus(t, rec, http.StatusOK, "")
	list := decode[[]messageResponse](t, rec)
	if len(list) != 1 {
		t.Fatalf("expected one message, got %+v", list)
	}
	if list[0].FromUserName != "Sam" || list[0].ToUserName != "Maya" {
		t.Fatalf("expected participant names Sam and Maya, got %q and %q", list[0].FromUserName, list[0].ToUserName)
	}

	rec = env.do(t, http.MethodGet, "/mentors?expertise=go", "", nil)
	expectStatus(t, rec, http.StatusOK, "")
	if list := decode[[]userResponse](t, rec); len(list) != 1 || list[0].ID != mentor.User.ID {
		t.Fatalf("expected Maya in directory, got %+v", list)
	}

	rec = env.do(t, http.MethodPut, "/users/profile", mentor.Token, map[string]any{"bio": "Go mentor", "years_experience": 9})
	expectStatus(t, rec, http.StatusOK, "")
	if u := decode[userResponse](t, rec); u.Bio != "Go mentor" || u.YearsExperience == nil || *u.YearsExperience != 9 {
		t.Fatalf("unexpected profile: %+v", u)
	}
	expectStatus(t, env.do(t, http.MethodPut, "/users/profile", student.Token, map[string]any{"years_experience": 2}), http.StatusBadRequest, "invalid_input")
}

func TestAdminStats(t *testing.T) {
	env := newAPIEnv(t)
	student := env.register(t, "Sam", "sam@example.com", "student")

	if _, _, err := env.engine.Provision(context.Background(), mentorbridge.RegisterRequest{
		Name: "Root", Email: "root@example.com", Password: testPassword, Role: "admin",
	}); err != nil {
		t.Fatalf("Provision failed: %v", err)
	}
	rec := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "root@example.com", "password": testPassword})
	expectStatus(t, rec, http.StatusOK, "")
	admin := decode[authResponse](t, rec)

	expectStatus(t, env.do(t, http.MethodGet, "/admin/stats", student.Token, nil), http.StatusForbidden, "forbidden")

	rec = env.do(t, http.MethodGet, "/admin/stats", admin.Token, nil)
	expectStatus(t, rec, http.StatusOK, "")
	stats := decode[statsResponse](t, rec)
	if stats.UsersByRole["student"] != 1 || stats.UsersByRole["admin"] != 1 || stats.SessionsByStatus["pending"] != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRevokeDisabledIsUnsupported(t *testing.T) {
	env := newAPIEnv(t)
	student := env.register(t, "Sam", "sam@example.com", "student")

	expectStatus(t, env.do(t, http.MethodPost, "/auth/revoke", student.Token, nil), http.StatusNotImplemented, "unsupported")
}

func TestCORSPreflight(t *testing.T) {
	env := newAPIEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/sessions", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("expected allowed origin header, got %q", got)
	}
}
