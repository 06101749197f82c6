package mail

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/resend/resend-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/sessionauth"
)

type fakeEmails struct {
	got  *resend.SendEmailRequest
	resp *resend.SendEmailResponse
	err  error
}

func (f *fakeEmails) SendWithContext(_ context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error) {
	f.got = params
	return f.resp, f.err
}

var testEmail = sessionauth.Email{
	To:      "ada@example.com",
	Subject: "Verify Email Address",
	Text:    "Click on the link",
	HTML:    "<p>Click</p>",
}

func TestResendMailer_Send(t *testing.T) {
	fake := &fakeEmails{resp: &resend.SendEmailResponse{Id: "msg_123"}}
	m := newResendMailer(fake, ResendConfig{From: "auth@example.com"})

	id, err := m.Send(context.Background(), testEmail)
	require.NoError(t, err)
	assert.Equal(t, "msg_123", id)
	assert.Equal(t, "auth@example.com", fake.got.From)
	assert.Equal(t, []string{"ada@example.com"}, fake.got.To)
	assert.Equal(t, testEmail.Subject, fake.got.Subject)
	assert.Equal(t, testEmail.Text, fake.got.Text)
	assert.Equal(t, testEmail.HTML, fake.got.Html)
}

func TestResendMailer_SandboxRewritesAddresses(t *testing.T) {
	fake := &fakeEmails{resp: &resend.SendEmailResponse{Id: "msg_1"}}
	m := newResendMailer(fake, ResendConfig{From: "auth@example.com", Sandbox: true})

	_, err := m.Send(context.Background(), testEmail)
	require.NoError(t, err)
	assert.Equal(t, sandboxFrom, fake.got.From)
	assert.Equal(t, []string{sandboxTo}, fake.got.To)
}

func TestResendMailer_Errors(t *testing.T) {
	fake := &fakeEmails{err: errors.New("rate limited")}
	m := newResendMailer(fake, ResendConfig{From: "auth@example.com"})
	_, err := m.Send(context.Background(), testEmail)
	require.EqualError(t, err, "rate limited")

	fake = &fakeEmails{resp: &resend.SendEmailResponse{}}
	m = newResendMailer(fake, ResendConfig{From: "auth@example.com"})
	_, err = m.Send(context.Background(), testEmail)
	require.ErrorIs(t, err, ErrNoMessageID)
}

func TestNewResendMailer_Validation(t *testing.T) {
	_, err := NewResendMailer(ResendConfig{})
	require.Error(t, err)

	_, err = NewResendMailer(ResendConfig{APIKey: "re_test"})
	require.Error(t, err)

	m, err := NewResendMailer(ResendConfig{APIKey: "re_test", Sandbox: true})
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestLogMailer_RecordsAndLogs(t *testing.T) {
	var buf bytes.Buffer
	m := NewLogMailer(slog.New(slog.NewTextHandler(&buf, nil)))

	_, ok := m.Last()
	assert.False(t, ok)

	id, err := m.Send(context.Background(), testEmail)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)

	last, ok := m.Last()
	require.True(t, ok)
	assert.Equal(t, id, last.ID)
	assert.Equal(t, testEmail, last.Email)
	assert.Len(t, m.Sent(), 1)
	assert.True(t, strings.Contains(buf.String(), "mail.sent"))
	assert.True(t, strings.Contains(buf.String(), "ada@example.com"))
}
