package sessionauth

import (
	"context"
	"errors"

	"github.com/MrEthical07/sessionauth/internal"
)

// ForgotPassword sends a password reset link to email.
//
// An unknown email returns nil so callers cannot probe for accounts. When the user
// already has RateLimitMax reset codes created within RateLimitWindow, the call fails
// with TooManyRequests and no code is issued.
func (e *Engine) ForgotPassword(ctx context.Context, email string) error {
	user, err := e.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			e.emitAudit(ctx, auditEventPasswordResetRequest, true, "", "", nil, func() map[string]string {
				return map[string]string{"known_user": "false"}
			})
			return nil
		}
		return internalErr(MsgCredentialStoreFailure, err)
	}

	now := e.now()
	if err := e.allowIssue(ctx, user.ID, CodeForgotPassword, now); err != nil {
		return err
	}

	code, err := e.issueCode(ctx, user.ID, CodeForgotPassword, e.config.Verification.ResetCodeTTL, now)
	if err != nil {
		return err
	}

	msg, err := passwordResetMessage(user.Email, passwordResetURL(e.config.Email.AppOrigin, code.ID, code.ExpiresAt))
	if err != nil {
		return internalErr(MsgSendEmailFailed, err)
	}
	if err := e.send(ctx, user.ID, msg); err != nil {
		return err
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, user.ID, "", nil, nil)
	return nil
}

// ResetPassword consumes a password reset code, replaces the user's password, and
// deletes every session the user holds. Outstanding access tokens remain valid until
// they expire; refresh tokens stop working immediately.
func (e *Engine) ResetPassword(ctx context.Context, in ResetPasswordInput) (*PublicUser, error) {
	code, ok := internal.NormalizeID(in.VerificationCode)
	if !ok {
		return nil, e.failReset(ctx, "", notFound(MsgInvalidCode))
	}

	now := e.now()
	valid, err := e.codes.FindValid(ctx, CodeLookup{ID: code, Type: CodeForgotPassword, Now: now})
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, e.failReset(ctx, "", notFound(MsgInvalidCode))
		}
		return nil, e.failReset(ctx, "", internalErr(MsgInternal, err))
	}

	hash, err := e.hashPassword(in.Password, MsgResetFailed)
	if err != nil {
		return nil, e.failReset(ctx, valid.UserID, err)
	}

	user, err := e.users.UpdatePassword(ctx, valid.UserID, hash, now)
	if err != nil {
		return nil, e.failReset(ctx, valid.UserID, internalErr(MsgResetFailed, err))
	}

	if err := e.codes.Delete(ctx, valid.ID); err != nil {
		return nil, e.failReset(ctx, user.ID, internalErr(MsgInternal, err))
	}
	if err := e.sessions.DeleteAllForUser(ctx, user.ID); err != nil {
		return nil, e.failReset(ctx, user.ID, internalErr(MsgSessionStoreFailure, err))
	}
	e.metricInc(MetricSessionInvalidated)

	e.metricInc(MetricPasswordResetConfirmSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, user.ID, "", nil, nil)
	public := user.Public()
	return &public, nil
}

func (e *Engine) failReset(ctx context.Context, userID string, err error) error {
	e.metricInc(MetricPasswordResetConfirmFailure)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, false, userID, "", err, nil)
	return err
}
