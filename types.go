package sessionauth

import (
	"context"
	"time"

	"github.com/MrEthical07/sessionauth/internal"
	"github.com/MrEthical07/sessionauth/session"
)

// User is a stored account. PasswordHash never leaves the credential store boundary
// except through the Engine; use Public for any serialization.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Verified     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the transport form of a User with the password hash omitted.
type PublicUser struct {
	ID        string    `json:"_id"`
	Email     string    `json:"email"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Public returns u without its password hash.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		Verified:  u.Verified,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// CodeType partitions the verification code namespace.
type CodeType string

const (
	// CodeEmailVerification proves control of an email address.
	CodeEmailVerification CodeType = "email_verification"
	// CodeForgotPassword authorizes a single password reset.
	CodeForgotPassword CodeType = "password_reset"
)

// Valid reports whether t is a known code type.
func (t CodeType) Valid() bool {
	return t == CodeEmailVerification || t == CodeForgotPassword
}

// VerificationCode is a single-use, typed, expiring code owned by a user.
type VerificationCode struct {
	ID        string
	UserID    string
	Type      CodeType
	CreatedAt time.Time
	ExpiresAt time.Time
}

// CodeFilter selects codes by owner and type.
type CodeFilter struct {
	UserID string
	Type   CodeType
}

// CodeLookup selects a single unexpired code by id and type.
type CodeLookup struct {
	ID   string
	Type CodeType
	Now  time.Time
}

// UserStore persists users. Email uniqueness is enforced by the store.
type UserStore interface {
	// Create inserts u. A duplicate email yields ErrDuplicateEmail.
	Create(ctx context.Context, u *User) error
	// ExistsByEmail answers in a single query.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	// MarkVerified sets Verified and returns the updated row, or ErrRecordNotFound.
	MarkVerified(ctx context.Context, id string, at time.Time) (*User, error)
	// UpdatePassword replaces the hash and returns the updated row, or ErrRecordNotFound.
	UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) (*User, error)
}

// CodeStore persists verification codes.
type CodeStore interface {
	Create(ctx context.Context, c *VerificationCode) error
	// FindValid returns the code matching id, type, and ExpiresAt > Now, or ErrRecordNotFound.
	FindValid(ctx context.Context, lookup CodeLookup) (*VerificationCode, error)
	// CountSince counts codes matching f with CreatedAt > since.
	CountSince(ctx context.Context, f CodeFilter, since time.Time) (int, error)
	Delete(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, f CodeFilter) (int, error)
}

// SessionStore persists per-device sessions. *session.Store implements it.
type SessionStore interface {
	Create(ctx context.Context, sess *session.Session, now time.Time) error
	Get(ctx context.Context, sessionID string, now time.Time) (*session.Session, error)
	ExtendExpiry(ctx context.Context, sess *session.Session, now time.Time) error
	Delete(ctx context.Context, sessionID string) error
	DeleteOwned(ctx context.Context, userID, sessionID string) error
	DeleteAllForUser(ctx context.Context, userID string) error
	ListForUser(ctx context.Context, userID string, now time.Time) ([]*session.Session, error)
}

// Email is an outbound message.
type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer is the outbound email capability. Send returns the provider message id.
type Mailer interface {
	Send(ctx context.Context, msg Email) (string, error)
}

// Identity is the request-scoped result of a successful authentication.
type Identity struct {
	UserID    string
	SessionID string
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User             PublicUser
	SessionID        string
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// RefreshResult is returned by Refresh. RefreshToken is empty when the session was not
// close enough to expiry to rotate it; callers must keep the existing refresh token.
type RefreshResult struct {
	SessionID        string
	UserID           string
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Rotated reports whether a new refresh token was issued.
func (r *RefreshResult) Rotated() bool {
	return r != nil && r.RefreshToken != ""
}

// SessionInfo describes one of a user's devices.
type SessionInfo struct {
	SessionID string
	UserAgent string
	CreatedAt time.Time
	IsCurrent bool
}

// RegisterInput is the input to Register.
type RegisterInput struct {
	Email     string
	Password  string
	UserAgent string
}

// LoginInput is the input to Login.
type LoginInput struct {
	Email     string
	Password  string
	UserAgent string
}

// ResetPasswordInput is the input to ResetPassword.
type ResetPasswordInput struct {
	VerificationCode string
	Password         string
}

// newUser builds a User from an already hashed password. Hashing is always explicit
// and happens before the store call.
func newUser(email, passwordHash string, now time.Time) (*User, error) {
	id, err := internal.NewID()
	if err != nil {
		return nil, err
	}
	return &User{
		ID:           id,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}
