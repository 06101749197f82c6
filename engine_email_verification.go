package sessionauth

import (
	"context"
	"errors"

	"github.com/MrEthical07/sessionauth/internal"
)

// VerifyEmail consumes an email verification code and marks its owner verified.
//
// A code that does not exist, has the wrong type, or has expired yields the same
// NotFound error. On success every outstanding email verification code of the user is
// deleted, not only the one presented.
func (e *Engine) VerifyEmail(ctx context.Context, code string) (*PublicUser, error) {
	code, ok := internal.NormalizeID(code)
	if !ok {
		return nil, e.failVerify(ctx, "", notFound(MsgInvalidCode))
	}

	now := e.now()
	valid, err := e.codes.FindValid(ctx, CodeLookup{ID: code, Type: CodeEmailVerification, Now: now})
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, e.failVerify(ctx, "", notFound(MsgInvalidCode))
		}
		return nil, e.failVerify(ctx, "", internalErr(MsgInternal, err))
	}

	user, err := e.users.MarkVerified(ctx, valid.UserID, now)
	if err != nil {
		return nil, e.failVerify(ctx, valid.UserID, internalErr(MsgVerifyFailed, err))
	}

	if _, err := e.codes.DeleteMany(ctx, CodeFilter{UserID: valid.UserID, Type: CodeEmailVerification}); err != nil {
		return nil, e.failVerify(ctx, valid.UserID, internalErr(MsgInternal, err))
	}

	e.metricInc(MetricEmailVerificationSuccess)
	e.emitAudit(ctx, auditEventEmailVerificationConfirm, true, user.ID, "", nil, nil)
	public := user.Public()
	return &public, nil
}

func (e *Engine) failVerify(ctx context.Context, userID string, err error) error {
	e.metricInc(MetricEmailVerificationFailure)
	e.emitAudit(ctx, auditEventEmailVerificationConfirm, false, userID, "", err, nil)
	return err
}
