package session

import "time"

// Session is one authenticated device. Timestamps are unix milliseconds.
type Session struct {
	SessionID string
	UserID    string
	UserAgent string
	CreatedAt int64
	ExpiresAt int64
}

// ExpiresAtTime returns ExpiresAt as a time.Time.
func (s *Session) ExpiresAtTime() time.Time {
	return time.UnixMilli(s.ExpiresAt)
}

// CreatedAtTime returns CreatedAt as a time.Time.
func (s *Session) CreatedAtTime() time.Time {
	return time.UnixMilli(s.CreatedAt)
}

// Expired reports whether the session is no longer usable at now.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt <= now.UnixMilli()
}
