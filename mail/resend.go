package mail

import (
	"context"
	"errors"

	"github.com/resend/resend-go/v2"

	"github.com/MrEthical07/sessionauth"
)

const (
	sandboxFrom = "onboarding@resend.dev"
	sandboxTo   = "delivered@resend.dev"
)

// ErrNoMessageID is returned when the provider accepts a message without an id.
var ErrNoMessageID = errors.New("mail: provider returned no message id")

// emailSender is the part of resend.EmailsSvc the mailer uses.
type emailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// ResendConfig configures a ResendMailer.
type ResendConfig struct {
	APIKey string `koanf:"api_key"`
	// From is the sender address outside sandbox mode.
	From string `koanf:"from"`
	// Sandbox routes every message through Resend's onboarding and delivered test
	// addresses.
	Sandbox bool `koanf:"sandbox"`
}

// ResendMailer sends email through Resend.
type ResendMailer struct {
	emails  emailSender
	from    string
	sandbox bool
}

// NewResendMailer returns a mailer bound to a new Resend client.
func NewResendMailer(cfg ResendConfig) (*ResendMailer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("mail: resend api key is required")
	}
	if cfg.From == "" && !cfg.Sandbox {
		return nil, errors.New("mail: sender address is required outside sandbox mode")
	}
	client := resend.NewClient(cfg.APIKey)
	return newResendMailer(client.Emails, cfg), nil
}

func newResendMailer(emails emailSender, cfg ResendConfig) *ResendMailer {
	return &ResendMailer{emails: emails, from: cfg.From, sandbox: cfg.Sandbox}
}

// Send delivers msg and returns the Resend message id.
func (m *ResendMailer) Send(ctx context.Context, msg sessionauth.Email) (string, error) {
	from, to := m.from, msg.To
	if m.sandbox {
		from, to = sandboxFrom, sandboxTo
	}

	sent, err := m.emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    from,
		To:      []string{to},
		Subject: msg.Subject,
		Text:    msg.Text,
		Html:    msg.HTML,
	})
	if err != nil {
		return "", err
	}
	if sent == nil || sent.Id == "" {
		return "", ErrNoMessageID
	}
	return sent.Id, nil
}

var _ sessionauth.Mailer = (*ResendMailer)(nil)
