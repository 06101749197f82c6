package sessionauth

import (
	"context"
	"errors"
)

// Register creates an account, sends a verification email, and opens a session for the
// registering device.
//
// Registration is not compensated: if the verification email cannot be sent, the user
// and code already written stay in place and the call fails with Internal. The user can
// log in and request a new verification email.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	exists, err := e.users.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return nil, e.failRegister(ctx, "", internalErr(MsgCredentialStoreFailure, err))
	}
	if exists {
		return nil, e.failRegister(ctx, "", conflict(MsgEmailExists))
	}

	hash, err := e.hashPassword(in.Password, MsgCreateUserFailed)
	if err != nil {
		return nil, e.failRegister(ctx, "", err)
	}

	now := e.now()
	user, err := newUser(in.Email, hash, now)
	if err != nil {
		return nil, e.failRegister(ctx, "", internalErr(MsgCreateUserFailed, err))
	}
	if err := e.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, e.failRegister(ctx, "", conflict(MsgEmailExists))
		}
		return nil, e.failRegister(ctx, "", internalErr(MsgCreateUserFailed, err))
	}

	code, err := e.issueCode(ctx, user.ID, CodeEmailVerification, e.config.Verification.EmailCodeTTL, now)
	if err != nil {
		return nil, e.failRegister(ctx, user.ID, err)
	}
	e.metricInc(MetricEmailVerificationRequest)

	msg, err := verifyEmailMessage(user.Email, verifyEmailURL(e.config.Email.AppOrigin, code.ID))
	if err != nil {
		return nil, e.failRegister(ctx, user.ID, internalErr(MsgSendEmailFailed, err))
	}
	if err := e.send(ctx, user.ID, msg); err != nil {
		return nil, e.failRegister(ctx, user.ID, err)
	}

	result, err := e.openSession(ctx, user, in.UserAgent)
	if err != nil {
		return nil, e.failRegister(ctx, user.ID, err)
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, user.ID, result.SessionID, nil, nil)
	return result, nil
}

func (e *Engine) failRegister(ctx context.Context, userID string, err error) error {
	if errors.Is(err, ErrConflict) {
		e.metricInc(MetricRegisterDuplicate)
		e.emitAudit(ctx, auditEventRegisterDuplicate, false, userID, "", err, nil)
		return err
	}
	e.metricInc(MetricRegisterFailure)
	e.emitAudit(ctx, auditEventRegisterFailure, false, userID, "", err, nil)
	return err
}

// ResendVerification issues a new email verification code for an unverified user,
// subject to the same counting rule as password reset requests.
func (e *Engine) ResendVerification(ctx context.Context, userID string) error {
	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return notFound(MsgUserNotFound)
		}
		return internalErr(MsgCredentialStoreFailure, err)
	}
	if user.Verified {
		return badRequest(MsgEmailAlreadyVerified)
	}

	now := e.now()
	if err := e.allowIssue(ctx, user.ID, CodeEmailVerification, now); err != nil {
		return err
	}

	code, err := e.issueCode(ctx, user.ID, CodeEmailVerification, e.config.Verification.EmailCodeTTL, now)
	if err != nil {
		return err
	}

	msg, err := verifyEmailMessage(user.Email, verifyEmailURL(e.config.Email.AppOrigin, code.ID))
	if err != nil {
		return internalErr(MsgSendEmailFailed, err)
	}
	if err := e.send(ctx, user.ID, msg); err != nil {
		return err
	}

	e.metricInc(MetricEmailVerificationRequest)
	e.emitAudit(ctx, auditEventEmailVerificationRequest, true, user.ID, "", nil, nil)
	return nil
}
