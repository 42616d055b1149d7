package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"authflow/internal/auth"
	"authflow/internal/config"
)

// --- fakes ---

type fakeUserStore struct {
	mu     sync.Mutex
	hasher auth.PasswordHasher
	users  map[string]*auth.User
	nextID int
	err    error
}

func newFakeUserStore(hasher auth.PasswordHasher) *fakeUserStore {
	return &fakeUserStore{hasher: hasher, users: map[string]*auth.User{}}
}

func (f *fakeUserStore) Create(_ context.Context, email, rawPassword string) (*auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if u.Email == email {
			return nil, auth.ErrDuplicateEmail
		}
	}

	hash, err := f.hasher.Hash(rawPassword)
	if err != nil {
		return nil, err
	}
	token, err := auth.NewToken(20)
	if err != nil {
		return nil, err
	}

	f.nextID++
	user := &auth.User{
		ID:                fmt.Sprintf("u%d", f.nextID),
		Email:             email,
		PasswordHash:      hash,
		VerificationToken: &token,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserStore) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUserStore) FindByID(_ context.Context, id string) (*auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	return &auth.User{ID: u.ID, Email: u.Email}, nil
}

func (f *fakeUserStore) VerifyEmail(_ context.Context, token string) (*auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if u.VerificationToken != nil && *u.VerificationToken == token {
			u.Verified = true
			u.VerificationToken = nil
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUserStore) SetResetToken(_ context.Context, email, token string, expiry time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, u := range f.users {
		if u.Email == email {
			tok := token
			exp := expiry
			u.ResetToken = &tok
			u.ResetTokenExpiry = &exp
		}
	}
	return nil
}

func (f *fakeUserStore) ResetPassword(_ context.Context, token, newRawPassword string) (*auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if u.ResetToken != nil && *u.ResetToken == token &&
			u.ResetTokenExpiry != nil && u.ResetTokenExpiry.After(time.Now()) {
			hash, err := f.hasher.Hash(newRawPassword)
			if err != nil {
				return nil, err
			}
			u.PasswordHash = hash
			u.ResetToken = nil
			u.ResetTokenExpiry = nil
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUserStore) byEmail(t *testing.T, email string) *auth.User {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u
		}
	}
	t.Fatalf("no user with email %s", email)
	return nil
}

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]auth.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[string]auth.Session{}}
}

func (f *fakeSessionStore) Create(_ context.Context, sess auth.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[sess.ID] = sess
	return nil
}

func (f *fakeSessionStore) Get(_ context.Context, id string) (*auth.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.sessions[id]
	if !ok || sess.ExpiresAt.Before(time.Now()) {
		return nil, nil
	}
	return &sess, nil
}

func (f *fakeSessionStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	return nil
}

func (f *fakeSessionStore) DeleteByUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, sess := range f.sessions {
		if sess.UserID == userID {
			delete(f.sessions, id)
		}
	}
	return nil
}

func (f *fakeSessionStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

type fakeLimiter struct {
	mu         sync.Mutex
	banned     bool
	locked     bool
	loginFails int
	resets     int
	cooldowns  map[string]time.Duration
}

func newFakeLimiter() *fakeLimiter {
	return &fakeLimiter{cooldowns: map[string]time.Duration{}}
}

func (f *fakeLimiter) IsIPBanned(context.Context, string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.banned
}

func (f *fakeLimiter) RegisterLoginFailure(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginFails++
	return nil
}

func (f *fakeLimiter) ResetLogin(context.Context, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
}

func (f *fakeLimiter) RegisterRegisterAttempt(context.Context, string, string) (bool, time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.locked, 0, nil
}

func (f *fakeLimiter) CooldownTTL(_ context.Context, key string) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cooldowns[key]
}

func (f *fakeLimiter) SetCooldown(_ context.Context, key string, ttl time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cooldowns[key] = ttl
}

type sentMail struct {
	to      string
	subject string
	text    string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeMailer) Send(_ context.Context, to, subject, text, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, text: text})
	return nil
}

func (f *fakeMailer) last(t *testing.T) sentMail {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("no mail sent")
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeMailer) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// --- harness ---

type testEnv struct {
	server   *Server
	router   http.Handler
	users    *fakeUserStore
	sessions *fakeSessionStore
	limiter  *fakeLimiter
	mailer   *fakeMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	users := newFakeUserStore(hasher)
	sessions := newFakeSessionStore()
	limiter := newFakeLimiter()
	mailer := &fakeMailer{}

	cfg := config.Config{
		Port:          "3000",
		Env:           "development",
		BaseURL:       "http://localhost:3000",
		SessionSecret: "test-secret",
		SessionTTL:    time.Hour,
	}

	srv, err := NewServer(cfg, users, sessions, auth.NewStrategy(users, hasher), limiter, mailer)
	require.NoError(t, err)

	return &testEnv{
		server:   srv,
		router:   srv.Router(),
		users:    users,
		sessions: sessions,
		limiter:  limiter,
		mailer:   mailer,
	}
}

func (e *testEnv) get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) postForm(path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// followFlash loads the redirect target with the cookies from the
// previous response, returning the rendered body so tests can assert on
// the one-time notice.
func (e *testEnv) followFlash(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	location := rec.Header().Get("Location")
	require.NotEmpty(t, location, "expected a redirect")
	next := e.get(location, rec.Result().Cookies()...)
	require.Equal(t, http.StatusOK, next.Code)
	return next.Body.String()
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "session_id" && c.Value != "" {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func registerForm(email, password string) url.Values {
	return url.Values{"email": {email}, "password": {password}}
}
