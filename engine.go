package sessionauth

import (
	"context"
	"errors"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/MrEthical07/sessionauth/internal"
	"github.com/MrEthical07/sessionauth/jwt"
	"github.com/MrEthical07/sessionauth/password"
	"github.com/MrEthical07/sessionauth/session"
)

// Engine runs the session and token lifecycle protocol. Construct it with [Builder].
//
// Engine methods are safe for concurrent use. All state lives in the configured
// stores; the Engine itself holds only configuration, metrics, and the audit queue.
type Engine struct {
	config    Config
	users     UserStore
	codes     CodeStore
	sessions  SessionStore
	tokens    *jwt.Manager
	hasher    *password.Argon2
	mailer    Mailer
	logger    *slog.Logger
	metrics   *Metrics
	audit     *auditDispatcher
	now       func() time.Time
	dummyHash string
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// MetricsSnapshot returns the current counters for exporters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{}
	}
	return e.metrics.Snapshot()
}

// AuditDropped returns the number of audit events dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Login authenticates email and password and opens a new session for the device.
//
// Unknown emails and wrong passwords produce the same Unauthorized error so callers
// cannot probe for account existence.
func (e *Engine) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	user, err := e.users.FindByEmail(ctx, in.Email)
	if err != nil {
		if !errors.Is(err, ErrRecordNotFound) {
			return nil, e.failLogin(ctx, "", internalErr(MsgCredentialStoreFailure, err))
		}
		// Equalize timing with the wrong-password path.
		_, _ = e.hasher.Verify(in.Password, e.dummyHash)
		return nil, e.failLogin(ctx, "", unauthorized(MsgInvalidCredentials))
	}

	ok, err := e.hasher.Verify(in.Password, user.PasswordHash)
	if err != nil && !errors.Is(err, password.ErrPasswordTooLong) {
		return nil, e.failLogin(ctx, user.ID, internalErr(MsgInternal, err))
	}
	if !ok {
		return nil, e.failLogin(ctx, user.ID, unauthorized(MsgInvalidCredentials))
	}

	result, err := e.openSession(ctx, user, in.UserAgent)
	if err != nil {
		return nil, e.failLogin(ctx, user.ID, err)
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, result.SessionID, nil, nil)
	return result, nil
}

func (e *Engine) failLogin(ctx context.Context, userID string, err error) error {
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, "", err, nil)
	return err
}

// Logout deletes the session named by accessToken, if any. Verification failures are
// ignored; an expired but correctly signed token still identifies its session.
// Deleting an already deleted session is not an error.
func (e *Engine) Logout(ctx context.Context, accessToken string) error {
	e.metricInc(MetricLogout)

	claims, err := e.tokens.Verify(jwt.KindAccess, accessToken)
	if err != nil && !errors.Is(err, jwt.ErrTokenExpired) {
		e.emitAudit(ctx, auditEventLogout, true, "", "", nil, nil)
		return nil
	}
	if claims == nil || claims.SessionID == "" {
		return nil
	}

	if err := e.sessions.Delete(ctx, claims.SessionID); err != nil {
		return internalErr(MsgSessionStoreFailure, err)
	}

	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, auditEventLogout, true, claims.UserID, claims.SessionID, nil, nil)
	return nil
}

// Refresh exchanges a refresh token for a new access token.
//
// When the session expires within Session.RefreshWindow, its expiry is moved to
// now+Session.TTL and a new refresh token is minted. Otherwise the session is left
// untouched and RefreshResult.RefreshToken is empty.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	claims, err := e.tokens.Verify(jwt.KindRefresh, refreshToken)
	if err != nil {
		return nil, e.failRefresh(ctx, "", unauthorized(MsgInvalidRefreshToken).WithCause(err))
	}

	now := e.now()
	sess, err := e.sessions.Get(ctx, claims.SessionID, now)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, e.failRefresh(ctx, claims.SessionID, unauthorized(MsgSessionExpired))
		}
		return nil, e.failRefresh(ctx, claims.SessionID, internalErr(MsgSessionStoreFailure, err))
	}
	if sess.Expired(now) {
		return nil, e.failRefresh(ctx, claims.SessionID, unauthorized(MsgSessionExpired))
	}

	result := &RefreshResult{SessionID: sess.SessionID, UserID: sess.UserID}

	needsRefresh := sess.ExpiresAtTime().Sub(now) < e.config.Session.RefreshWindow
	if needsRefresh {
		sess.ExpiresAt = now.Add(e.config.Session.TTL).UnixMilli()
		if err := e.sessions.ExtendExpiry(ctx, sess, now); err != nil {
			if errors.Is(err, session.ErrNotFound) {
				return nil, e.failRefresh(ctx, sess.SessionID, unauthorized(MsgSessionExpired))
			}
			return nil, e.failRefresh(ctx, sess.SessionID, internalErr(MsgSessionStoreFailure, err))
		}

		token, err := e.tokens.Sign(jwt.KindRefresh, sess.SessionID, "")
		if err != nil {
			return nil, e.failRefresh(ctx, sess.SessionID, internalErr(MsgIssueTokenFailed, err))
		}
		result.RefreshToken = token
		result.RefreshExpiresAt = now.Add(e.tokens.TTL(jwt.KindRefresh))
	}

	access, err := e.tokens.Sign(jwt.KindAccess, sess.SessionID, sess.UserID)
	if err != nil {
		return nil, e.failRefresh(ctx, sess.SessionID, internalErr(MsgIssueTokenFailed, err))
	}
	result.AccessToken = access
	result.AccessExpiresAt = now.Add(e.tokens.TTL(jwt.KindAccess))

	e.metricInc(MetricRefreshSuccess)
	if needsRefresh {
		e.metricInc(MetricRefreshRotated)
	}
	e.emitAudit(ctx, auditEventRefreshSuccess, true, sess.UserID, sess.SessionID, nil, func() map[string]string {
		if needsRefresh {
			return map[string]string{"rotated": "true"}
		}
		return nil
	})
	return result, nil
}

func (e *Engine) failRefresh(ctx context.Context, sessionID string, err error) error {
	e.metricInc(MetricRefreshFailure)
	e.emitAudit(ctx, auditEventRefreshInvalid, false, "", sessionID, err, nil)
	return err
}

// openSession creates a session for user and issues both tokens bound to it.
func (e *Engine) openSession(ctx context.Context, user *User, userAgent string) (*AuthResult, error) {
	sessionID, err := internal.NewID()
	if err != nil {
		return nil, internalErr(MsgCreateSessionFailed, err)
	}

	now := e.now()
	sess := &session.Session{
		SessionID: sessionID,
		UserID:    user.ID,
		UserAgent: truncateUserAgent(userAgent),
		CreatedAt: now.UnixMilli(),
		ExpiresAt: now.Add(e.config.Session.TTL).UnixMilli(),
	}
	if err := e.sessions.Create(ctx, sess, now); err != nil {
		return nil, internalErr(MsgCreateSessionFailed, err)
	}
	e.metricInc(MetricSessionCreated)

	refresh, err := e.tokens.Sign(jwt.KindRefresh, sessionID, "")
	if err != nil {
		return nil, internalErr(MsgIssueTokenFailed, err)
	}
	access, err := e.tokens.Sign(jwt.KindAccess, sessionID, user.ID)
	if err != nil {
		return nil, internalErr(MsgIssueTokenFailed, err)
	}

	return &AuthResult{
		User:             user.Public(),
		SessionID:        sessionID,
		AccessToken:      access,
		AccessExpiresAt:  now.Add(e.tokens.TTL(jwt.KindAccess)),
		RefreshToken:     refresh,
		RefreshExpiresAt: now.Add(e.tokens.TTL(jwt.KindRefresh)),
	}, nil
}

// send delivers msg and logs the provider id. Failure is returned to the caller as a
// hard Internal error.
func (e *Engine) send(ctx context.Context, userID string, msg Email) error {
	id, err := e.mailer.Send(ctx, msg)
	if err != nil {
		e.metricInc(MetricEmailSendFailure)
		e.logger.ErrorContext(ctx, "auth.email.send_failed", "user_id", userID, "subject", msg.Subject, "err", err)
		e.emitAudit(ctx, auditEventEmailSendFailure, false, userID, "", err, nil)
		return internalErr(MsgSendEmailFailed, err)
	}
	e.logger.DebugContext(ctx, "auth.email.sent", "user_id", userID, "subject", msg.Subject, "message_id", id)
	return nil
}

// allowIssue applies the counting rule: at most RateLimitMax codes of a type per user
// within RateLimitWindow.
func (e *Engine) allowIssue(ctx context.Context, userID string, codeType CodeType, now time.Time) error {
	since := now.Add(-e.config.Verification.RateLimitWindow)
	count, err := e.codes.CountSince(ctx, CodeFilter{UserID: userID, Type: codeType}, since)
	if err != nil {
		return internalErr(MsgInternal, err)
	}
	if count >= e.config.Verification.RateLimitMax {
		e.emitRateLimit(ctx, userID, codeType)
		return tooManyRequests()
	}
	return nil
}

// issueCode creates a code of codeType for userID expiring after ttl.
func (e *Engine) issueCode(ctx context.Context, userID string, codeType CodeType, ttl time.Duration, now time.Time) (*VerificationCode, error) {
	id, err := internal.NewID()
	if err != nil {
		return nil, internalErr(MsgCreateCodeFailed, err)
	}
	code := &VerificationCode{
		ID:        id,
		UserID:    userID,
		Type:      codeType,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := e.codes.Create(ctx, code); err != nil {
		return nil, internalErr(MsgCreateCodeFailed, err)
	}
	return code, nil
}

const (
	minPasswordChars = 8
	maxPasswordChars = 100
)

// hashPassword hashes plaintext, reporting policy violations as BadRequest. Length is
// counted in characters, not bytes.
func (e *Engine) hashPassword(plaintext, failMessage string) (string, error) {
	if n := utf8.RuneCountInString(plaintext); n < minPasswordChars || n > maxPasswordChars {
		return "", badRequest(MsgPasswordPolicy)
	}

	hash, err := e.hasher.Hash(plaintext)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooShort) || errors.Is(err, password.ErrPasswordTooLong) {
			return "", badRequest(MsgPasswordPolicy)
		}
		return "", internalErr(failMessage, err)
	}
	return hash, nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func truncateUserAgent(ua string) string {
	if len(ua) > session.MaxUserAgentBytes {
		return ua[:session.MaxUserAgentBytes]
	}
	return ua
}
