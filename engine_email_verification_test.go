package sessionauth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRegisterVerifyEndToEnd(t *testing.T) {
	h := newHarness(t)
	res := h.register(t, testEmail)

	code := verificationCodeFrom(t, h.mailer.last(t))
	user, err := h.engine.VerifyEmail(context.Background(), code)
	if err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	if !user.Verified || user.ID != res.User.ID {
		t.Fatalf("user = %+v", user)
	}

	stored, _ := h.engine.GetUser(context.Background(), res.User.ID)
	if !stored.Verified {
		t.Fatal("verified flag not persisted")
	}

	_, err = h.engine.VerifyEmail(context.Background(), code)
	requireKind(t, err, ErrNotFound, MsgInvalidCode)
}

func TestVerifyEmailAcceptsUppercaseCode(t *testing.T) {
	h := newHarness(t)
	h.register(t, testEmail)

	code := strings.ToUpper(verificationCodeFrom(t, h.mailer.last(t)))
	user, err := h.engine.VerifyEmail(context.Background(), code)
	if err != nil {
		t.Fatalf("VerifyEmail(%s): %v", code, err)
	}
	if !user.Verified {
		t.Fatal("user not verified")
	}
}

func TestVerifyEmailWipesAllVerificationCodes(t *testing.T) {
	h := newHarness(t)
	res := h.register(t, testEmail)
	first := verificationCodeFrom(t, h.mailer.last(t))

	if err := h.engine.ResendVerification(context.Background(), res.User.ID); err != nil {
		t.Fatalf("ResendVerification: %v", err)
	}
	second := verificationCodeFrom(t, h.mailer.last(t))
	if first == second {
		t.Fatal("resend must issue a new code")
	}
	if n := h.codes.count(res.User.ID, CodeEmailVerification); n != 2 {
		t.Fatalf("codes = %d, want 2", n)
	}

	if _, err := h.engine.VerifyEmail(context.Background(), first); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	if n := h.codes.count(res.User.ID, CodeEmailVerification); n != 0 {
		t.Fatalf("codes after verify = %d, want 0", n)
	}

	_, err := h.engine.VerifyEmail(context.Background(), second)
	requireKind(t, err, ErrNotFound, MsgInvalidCode)
}

func TestVerifyEmailWrongTypeNotFound(t *testing.T) {
	h := newHarness(t)
	res := h.register(t, testEmail)

	if err := h.engine.ForgotPassword(context.Background(), testEmail); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	resetCode := resetCodeFrom(t, h.mailer.last(t))

	_, err := h.engine.VerifyEmail(context.Background(), resetCode)
	requireKind(t, err, ErrNotFound, MsgInvalidCode)

	if h.codes.count(res.User.ID, CodeForgotPassword) != 1 {
		t.Fatal("a failed verification must not consume the reset code")
	}
}

func TestVerifyEmailRejectsMalformedAndExpiredCodes(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.Verification.EmailCodeTTL = time.Hour
	})
	h.register(t, testEmail)
	code := verificationCodeFrom(t, h.mailer.last(t))

	for _, bad := range []string{"", "short", "zzzzzzzzzzzzzzzzzzzzzzzz", "000000000000000000000000"} {
		_, err := h.engine.VerifyEmail(context.Background(), bad)
		requireKind(t, err, ErrNotFound, MsgInvalidCode)
	}

	h.clock.Advance(time.Hour)
	_, err := h.engine.VerifyEmail(context.Background(), code)
	requireKind(t, err, ErrNotFound, MsgInvalidCode)
}

func TestVerifyEmailUserVanished(t *testing.T) {
	h := newHarness(t)
	res := h.register(t, testEmail)
	code := verificationCodeFrom(t, h.mailer.last(t))

	h.users.remove(res.User.ID)
	_, err := h.engine.VerifyEmail(context.Background(), code)
	requireKind(t, err, ErrInternal, MsgVerifyFailed)
}

func TestResendVerification(t *testing.T) {
	h := newHarness(t)
	res := h.register(t, testEmail)
	ctx := context.Background()

	if err := h.engine.ResendVerification(ctx, res.User.ID); err != nil {
		t.Fatalf("first resend: %v", err)
	}
	// Registration plus one resend fill the window.
	err := h.engine.ResendVerification(ctx, res.User.ID)
	requireKind(t, err, ErrTooManyRequests, MsgTooManyRequests)

	h.clock.Advance(5 * time.Minute)
	if err := h.engine.ResendVerification(ctx, res.User.ID); err != nil {
		t.Fatalf("resend after window: %v", err)
	}

	code := verificationCodeFrom(t, h.mailer.last(t))
	if _, err := h.engine.VerifyEmail(ctx, code); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	h.clock.Advance(5 * time.Minute)
	err = h.engine.ResendVerification(ctx, res.User.ID)
	requireKind(t, err, ErrBadRequest, MsgEmailAlreadyVerified)

	err = h.engine.ResendVerification(ctx, "000000000000000000000000")
	requireKind(t, err, ErrNotFound, MsgUserNotFound)
}

func TestResendVerificationEmailFailure(t *testing.T) {
	h := newHarness(t)
	res := h.register(t, testEmail)

	h.mailer.fail(errors.New("provider down"))
	err := h.engine.ResendVerification(context.Background(), res.User.ID)
	requireKind(t, err, ErrInternal, MsgSendEmailFailed)
	if h.engine.MetricsSnapshot().Counters[MetricEmailSendFailure] != 1 {
		t.Fatal("email failure metric not recorded")
	}
}
