// Package memory provides in-process implementations of the sessionauth user and
// verification code stores. They back the development server and engine tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/sessionauth"
)

// UserStore implements sessionauth.UserStore in memory. Email uniqueness is exact-match.
type UserStore struct {
	mu      sync.RWMutex
	byID    map[string]*sessionauth.User
	byEmail map[string]string
}

// NewUserStore returns an empty UserStore.
func NewUserStore() *UserStore {
	return &UserStore{
		byID:    make(map[string]*sessionauth.User),
		byEmail: make(map[string]string),
	}
}

// Create stores a copy of u.
func (s *UserStore) Create(_ context.Context, u *sessionauth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[u.Email]; ok {
		return sessionauth.ErrDuplicateEmail
	}
	cp := *u
	s.byID[u.ID] = &cp
	s.byEmail[u.Email] = u.ID
	return nil
}

// ExistsByEmail reports whether email is taken.
func (s *UserStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.byEmail[email]
	return ok, nil
}

// FindByEmail returns a copy of the user with email.
func (s *UserStore) FindByEmail(_ context.Context, email string) (*sessionauth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, sessionauth.ErrRecordNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

// FindByID returns a copy of the user with id.
func (s *UserStore) FindByID(_ context.Context, id string) (*sessionauth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, sessionauth.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

// MarkVerified sets Verified on the user.
func (s *UserStore) MarkVerified(_ context.Context, id string, at time.Time) (*sessionauth.User, error) {
	return s.update(id, func(u *sessionauth.User) {
		u.Verified = true
		u.UpdatedAt = at
	})
}

// UpdatePassword replaces the user's password hash.
func (s *UserStore) UpdatePassword(_ context.Context, id, passwordHash string, at time.Time) (*sessionauth.User, error) {
	return s.update(id, func(u *sessionauth.User) {
		u.PasswordHash = passwordHash
		u.UpdatedAt = at
	})
}

func (s *UserStore) update(id string, fn func(*sessionauth.User)) (*sessionauth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, sessionauth.ErrRecordNotFound
	}
	fn(u)
	cp := *u
	return &cp, nil
}

// CodeStore implements sessionauth.CodeStore in memory.
type CodeStore struct {
	mu    sync.Mutex
	codes map[string]sessionauth.VerificationCode
}

// NewCodeStore returns an empty CodeStore.
func NewCodeStore() *CodeStore {
	return &CodeStore{codes: make(map[string]sessionauth.VerificationCode)}
}

// Create stores a copy of c.
func (s *CodeStore) Create(_ context.Context, c *sessionauth.VerificationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.codes[c.ID] = *c
	return nil
}

// FindValid returns the code matching id and type that expires after lookup.Now.
func (s *CodeStore) FindValid(_ context.Context, lookup sessionauth.CodeLookup) (*sessionauth.VerificationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.codes[lookup.ID]
	if !ok || c.Type != lookup.Type || !c.ExpiresAt.After(lookup.Now) {
		return nil, sessionauth.ErrRecordNotFound
	}
	return &c, nil
}

// CountSince counts codes matching f created strictly after since.
func (s *CodeStore) CountSince(_ context.Context, f sessionauth.CodeFilter, since time.Time) (int, error) {
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

// Delete removes the code with id, if present.
func (s *CodeStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.codes, id)
	return nil
}

// DeleteMany removes every code matching f.
func (s *CodeStore) DeleteMany(_ context.Context, f sessionauth.CodeFilter) (int, error) {
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

// Len returns the number of stored codes.
func (s *CodeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.codes)
}

var (
	_ sessionauth.UserStore = (*UserStore)(nil)
	_ sessionauth.CodeStore = (*CodeStore)(nil)
)
