package sessionauth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/sessionauth/session"
)

const (
	testEmail    = "ada@example.com"
	testPassword = "correct-horse-battery"
	testAgent    = "Mozilla/5.0 (test)"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testUserStore struct {
	mu      sync.Mutex
	byID    map[string]User
	byEmail map[string]string
	failAll error
}

func newTestUserStore() *testUserStore {
	return &testUserStore{byID: map[string]User{}, byEmail: map[string]string{}}
}

func (s *testUserStore) Create(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return s.failAll
	}
	if _, ok := s.byEmail[u.Email]; ok {
		return ErrDuplicateEmail
	}
	s.byID[u.ID] = *u
	s.byEmail[u.Email] = u.ID
	return nil
}

func (s *testUserStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return false, s.failAll
	}
	_, ok := s.byEmail[email]
	return ok, nil
}

func (s *testUserStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrRecordNotFound
	}
	u := s.byID[id]
	return &u, nil
}

func (s *testUserStore) FindByID(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &u, nil
}

func (s *testUserStore) MarkVerified(_ context.Context, id string, at time.Time) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	u.Verified = true
	u.UpdatedAt = at
	s.byID[id] = u
	return &u, nil
}

func (s *testUserStore) UpdatePassword(_ context.Context, id, hash string, at time.Time) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = at
	s.byID[id] = u
	return &u, nil
}

func (s *testUserStore) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.byID[id]
	delete(s.byEmail, u.Email)
	delete(s.byID, id)
}

type testCodeStore struct {
	mu    sync.Mutex
	codes map[string]VerificationCode
}

func newTestCodeStore() *testCodeStore {
	return &testCodeStore{codes: map[string]VerificationCode{}}
}

func (s *testCodeStore) Create(_ context.Context, c *VerificationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[c.ID] = *c
	return nil
}

func (s *testCodeStore) FindValid(_ context.Context, l CodeLookup) (*VerificationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[l.ID]
	if !ok || c.Type != l.Type || !c.ExpiresAt.After(l.Now) {
		return nil, ErrRecordNotFound
	}
	return &c, nil
}

func (s *testCodeStore) CountSince(_ context.Context, f CodeFilter, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.codes {
		if c.UserID == f.UserID && c.Type == f.Type && c.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (s *testCodeStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, id)
	return nil
}

func (s *testCodeStore) DeleteMany(_ context.Context, f CodeFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, c := range s.codes {
		if c.UserID == f.UserID && c.Type == f.Type {
			delete(s.codes, id)
			n++
		}
	}
	return n, nil
}

func (s *testCodeStore) count(userID string, t CodeType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.codes {
		if c.UserID == userID && c.Type == t {
			n++
		}
	}
	return n
}

type stubMailer struct {
	mu   sync.Mutex
	sent []Email
	err  error
}

func (m *stubMailer) Send(_ context.Context, msg Email) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, msg)
	return "msg-" + msg.To, nil
}

func (m *stubMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *stubMailer) last(t *testing.T) Email {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("no email sent")
	}
	return m.sent[len(m.sent)-1]
}

func (m *stubMailer) fail(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

type testHarness struct {
	engine   *Engine
	users    *testUserStore
	codes    *testCodeStore
	sessions *session.Store
	rdb      *redis.Client
	mailer   *stubMailer
	clock    *fakeClock
	mr       *miniredis.Miniredis
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.AccessSecret = "access-secret-0123456789abcdef"
	cfg.JWT.RefreshSecret = "refresh-secret-0123456789abcdef"
	cfg.Email.AppOrigin = "https://app.example.com"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

func newHarness(t testing.TB, mutate ...func(*Config)) *testHarness {
	t.Helper()
	return newHarnessWithSink(t, nil, mutate...)
}

func newHarnessWithSink(t testing.TB, sink AuditSink, mutate ...func(*Config)) *testHarness {
	t.Helper()

	cfg := testConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := &testHarness{
		users:    newTestUserStore(),
		codes:    newTestCodeStore(),
		sessions: session.NewStore(rdb, cfg.Session.RedisPrefix),
		rdb:      rdb,
		mailer:   &stubMailer{},
		clock:    newFakeClock(),
		mr:       mr,
	}

	engine, err := New().
		WithConfig(cfg).
		WithUserStore(h.users).
		WithCodeStore(h.codes).
		WithSessionStore(h.sessions).
		WithMailer(h.mailer).
		WithAuditSink(sink).
		WithClock(h.clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	h.engine = engine
	return h
}

func (h *testHarness) register(t *testing.T, email string) *AuthResult {
	t.Helper()
	res, err := h.engine.Register(context.Background(), RegisterInput{Email: email, Password: testPassword, UserAgent: testAgent})
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", email, err)
	}
	return res
}

func (h *testHarness) login(t *testing.T, email string) *AuthResult {
	t.Helper()
	res, err := h.engine.Login(context.Background(), LoginInput{Email: email, Password: testPassword, UserAgent: testAgent})
	if err != nil {
		t.Fatalf("Login(%s) failed: %v", email, err)
	}
	return res
}

// emailLink returns the URL at the end of a message's text body.
func emailLink(t *testing.T, msg Email) *url.URL {
	t.Helper()
	i := strings.LastIndex(msg.Text, " ")
	u, err := url.Parse(msg.Text[i+1:])
	if err != nil {
		t.Fatalf("parse link in %q: %v", msg.Text, err)
	}
	return u
}

func verificationCodeFrom(t *testing.T, msg Email) string {
	t.Helper()
	u := emailLink(t, msg)
	return u.Path[strings.LastIndex(u.Path, "/")+1:]
}

func resetCodeFrom(t *testing.T, msg Email) string {
	t.Helper()
	return emailLink(t, msg).Query().Get("code")
}

func requireKind(t *testing.T, err, kind error, message string) *Error {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
	ae, ok := AsError(err)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if message != "" && ae.Message != message {
		t.Fatalf("message = %q, want %q", ae.Message, message)
	}
	return ae
}
