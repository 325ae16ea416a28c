// Package client holds the client-side session: the current token and the
// last fetched profile, persisted through a Storage.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"simantu.org/internal/auth"
)

// ErrSessionExpired is returned by FetchProfile when the server rejected the
// stored token; the session has been logged out.
var ErrSessionExpired = errors.New("session expired")

const defaultLoginFailure = "Login failed"

// Result is the outcome of Login. Message is safe to show to the user.
type Result struct {
	Success bool
	Message string
}

// Session is the client view of authentication state.
type Session struct {
	baseURL string
	storage Storage
	raw     *http.Client
	http    *http.Client

	mu      sync.Mutex
	token   string
	profile *auth.Profile
	loading bool
}

type Option func(*Session)

// WithHTTPClient sets the client used for requests; its Transport is wrapped.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) {
		if c != nil {
			s.raw = c
		}
	}
}

// New creates a session against the API at baseURL. Call Init to restore a
// persisted token.
func New(baseURL string, storage Storage, opts ...Option) *Session {
	if storage == nil {
		storage = &MemoryStorage{}
	}
	s := &Session{
		baseURL: strings.TrimRight(baseURL, "/"),
		storage: storage,
		raw:     &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	base := s.raw.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *s.raw
	wrapped.Transport = &bearerTransport{base: base, session: s}
	s.http = &wrapped
	return s
}

// Init loads a persisted token; with none stored the session is anonymous.
func (s *Session) Init() error {
	token, err := s.storage.Load()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = nil
	if err != nil {
		s.token = ""
		return err
	}
	s.token = token
	return nil
}

// HTTPClient returns a client that sends the session token on every request.
func (s *Session) HTTPClient() *http.Client { return s.http }

func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// IsAuthenticated reports token presence; it does not verify the token.
func (s *Session) IsAuthenticated() bool { return s.Token() != "" }

func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Profile returns the last fetched profile.
func (s *Session) Profile() (auth.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return auth.Profile{}, false
	}
	return *s.profile, true
}

func (s *Session) HasProfile() bool {
	_, ok := s.Profile()
	return ok
}

// UserRole is the role name of the loaded profile.
func (s *Session) UserRole() (string, bool) {
	p, ok := s.Profile()
	if !ok || p.Role == "" {
		return "", false
	}
	return p.Role, true
}

func (s *Session) Permissions() []string {
	p, ok := s.Profile()
	if !ok {
		return nil
	}
	return append([]string(nil), p.Permissions...)
}

func (s *Session) HasPermission(perm string) bool {
	p, ok := s.Profile()
	if !ok {
		return false
	}
	for _, have := range p.Permissions {
		if have == perm {
			return true
		}
	}
	return false
}

type loginReply struct {
	Token string       `json:"token"`
	User  auth.Profile `json:"user"`
}

// Login posts credentials. Failures come back as a Result, never as an error.
func (s *Session) Login(ctx context.Context, creds auth.Credentials) Result {
	s.setLoading(true)
	defer s.setLoading(false)

	body, err := json.Marshal(creds)
	if err != nil {
		return Result{Message: defaultLoginFailure}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return Result{Message: defaultLoginFailure}
	}
	req.Header.Set("Content-Type", "application/json")

	// The raw client is used so a stale token is never sent with credentials.
	resp, err := s.raw.Do(req)
	if err != nil {
		return Result{Message: defaultLoginFailure}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{Message: errorMessage(resp.Body, defaultLoginFailure)}
	}
	var reply loginReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil || reply.Token == "" {
		return Result{Message: defaultLoginFailure}
	}

	s.mu.Lock()
	s.token = reply.Token
	profile := reply.User
	s.profile = &profile
	s.mu.Unlock()

	if err := s.storage.Save(reply.Token); err != nil {
		return Result{Success: true, Message: fmt.Sprintf("signed in, but the session could not be saved: %v", err)}
	}
	return Result{Success: true}
}

// Logout forgets the token and profile locally. The server is not contacted.
func (s *Session) Logout() error {
	s.mu.Lock()
	s.token = ""
	s.profile = nil
	s.mu.Unlock()
	return s.storage.Clear()
}

// FetchProfile loads the current profile. Without a token it does nothing.
// Any failure logs the session out before the error is returned.
func (s *Session) FetchProfile(ctx context.Context) error {
	if !s.IsAuthenticated() {
		return nil
	}
	s.setLoading(true)
	defer s.setLoading(false)

	profile, err := s.fetchMe(ctx)
	if err != nil {
		_ = s.Logout()
		return err
	}
	s.mu.Lock()
	s.profile = &profile
	s.mu.Unlock()
	return nil
}

func (s *Session) fetchMe(ctx context.Context) (auth.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/auth/me", nil)
	if err != nil {
		return auth.Profile{}, err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return auth.Profile{}, fmt.Errorf("fetch profile: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusNotFound:
		return auth.Profile{}, fmt.Errorf("%w: %s", ErrSessionExpired, errorMessage(resp.Body, resp.Status))
	case resp.StatusCode != http.StatusOK:
		return auth.Profile{}, fmt.Errorf("fetch profile: %s", errorMessage(resp.Body, resp.Status))
	}
	var profile auth.Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return auth.Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	return profile, nil
}

func (s *Session) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

// errorMessage extracts "error" (or "message") from a JSON error body.
func errorMessage(r io.Reader, fallback string) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 64<<10)).Decode(&body); err != nil {
		return fallback
	}
	switch {
	case body.Error != "":
		return body.Error
	case body.Message != "":
		return body.Message
	}
	return fallback
}
