package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

var (
	// ErrUnauthenticated is returned on any 401. The cache has been cleared
	// by the time it is returned.
	ErrUnauthenticated = errors.New("client: unauthenticated")
)

// APIError is a non-2xx, non-401 response.
type APIError struct {
	Status int
	Code   string
	Detail string
	Fields map[string]string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("client: HTTP %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("client: HTTP %d %s: %s", e.Status, e.Code, e.Detail)
}

// Client calls the MentorBridge API on behalf of one user.
type Client struct {
	baseURL string
	cache   Cache
	public  *http.Client
	authed  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying client. Its Transport is reused for
// authenticated calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.public = hc
		}
	}
}

// New returns a Client for baseURL. A nil cache means a MemoryCache.
func New(baseURL string, cache Cache, opts ...Option) *Client {
	if cache == nil {
		cache = NewMemoryCache()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		cache:   cache,
		public:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}

	base := c.public.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	authed := *c.public
	authed.Transport = &oauth2.Transport{Source: cacheTokenSource{cache: cache}, Base: base}
	c.authed = &authed
	return c
}

// cacheTokenSource reads the bearer token from the cache on every request
// so a Clear takes effect immediately.
type cacheTokenSource struct {
	cache Cache
}

func (s cacheTokenSource) Token() (*oauth2.Token, error) {
	sess, err := s.cache.Load()
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: sess.Token, TokenType: "Bearer"}, nil
}

// Session returns the cached session, or ErrNoSession.
func (c *Client) Session() (Session, error) {
	return c.cache.Load()
}

// Logout drops the cached session. The token itself stays valid on the
// server until it expires.
func (c *Client) Logout() error {
	return c.cache.Clear()
}

// RegisterParams is the body of a registration.
type RegisterParams struct {
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	Password        string   `json:"password"`
	Role            string   `json:"role,omitempty"`
	College         string   `json:"college,omitempty"`
	Bio             string   `json:"bio,omitempty"`
	Skills          []string `json:"skills,omitempty"`
	Expertise       []string `json:"expertise,omitempty"`
	YearsExperience *int     `json:"years_experience,omitempty"`
}

type authResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

// Register creates an account and caches its session.
func (c *Client) Register(ctx context.Context, p RegisterParams) (Session, error) {
	var out authResponse
	if err := c.do(ctx, c.public, http.MethodPost, "/auth/register", p, &out); err != nil {
		return Session{}, err
	}
	return c.remember(out)
}

// Login authenticates and caches the session.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	body := map[string]string{"email": email, "password": password}
	var out authResponse
	if err := c.do(ctx, c.public, http.MethodPost, "/auth/login", body, &out); err != nil {
		return Session{}, err
	}
	return c.remember(out)
}

func (c *Client) remember(out authResponse) (Session, error) {
	sess := Session{Token: out.Token, ExpiresAt: out.ExpiresAt, User: out.User}
	if err := c.cache.Store(sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Me returns the caller's user record.
func (c *Client) Me(ctx context.Context) (User, error) {
	var out User
	err := c.do(ctx, c.authed, http.MethodGet, "/auth/me", nil, &out)
	return out, err
}

// SessionInfo is a booking as the API returns it.
type SessionInfo struct {
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

// Sessions lists the caller's bookings.
func (c *Client) Sessions(ctx context.Context) ([]SessionInfo, error) {
	var out []SessionInfo
	err := c.do(ctx, c.authed, http.MethodGet, "/sessions", nil, &out)
	return out, err
}

// BookParams is the body of a booking request.
type BookParams struct {
	MentorID string `json:"mentor_id"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Notes    string `json:"notes,omitempty"`
}

// Book requests a session with a mentor.
func (c *Client) Book(ctx context.Context, p BookParams) (SessionInfo, error) {
	var out SessionInfo
	err := c.do(ctx, c.authed, http.MethodPost, "/sessions", p, &out)
	return out, err
}

// SetStatus moves a booking to status.
func (c *Client) SetStatus(ctx context.Context, sessionID, status string) (SessionInfo, error) {
	var out SessionInfo
	path := "/sessions/" + url.PathEscape(sessionID) + "/status"
	err := c.do(ctx, c.authed, http.MethodPut, path, map[string]string{"status": status}, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return fmt.Errorf("%w: not logged in", ErrUnauthenticated)
		}
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("client: read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if err := c.cache.Clear(); err != nil {
			return errors.Join(ErrUnauthenticated, err)
		}
		return fmt.Errorf("%w: %s", ErrUnauthenticated, decodeError(resp.StatusCode, raw).Detail)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, raw)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}

func decodeError(status int, raw []byte) *APIError {
	apiErr := &APIError{Status: status}
	var body struct {
		Detail string            `json:"detail"`
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		apiErr.Code = body.Code
		apiErr.Detail = body.Detail
		apiErr.Fields = body.Fields
	}
	if apiErr.Detail == "" {
		apiErr.Detail = http.StatusText(status)
	}
	return apiErr
}
