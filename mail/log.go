package mail

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/MrEthical07/sessionauth"
)

// Sent is a message accepted by a LogMailer.
type Sent struct {
	ID    string
	Email sessionauth.Email
}

// LogMailer logs outbound messages instead of delivering them.
type LogMailer struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []Sent
}

// NewLogMailer returns a LogMailer writing to logger. A nil logger uses slog.Default.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

// Send records msg and logs its recipient, subject, and text body.
func (m *LogMailer) Send(ctx context.Context, msg sessionauth.Email) (string, error) {
	id := uuid.NewString()

	m.mu.Lock()
	m.sent = append(m.sent, Sent{ID: id, Email: msg})
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "mail.sent",
		"message_id", id,
		"to", msg.To,
		"subject", msg.Subject,
		"text", msg.Text,
	)
	return id, nil
}

// Sent returns a copy of every message accepted so far, oldest first.
func (m *LogMailer) Sent() []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Sent, len(m.sent))
	copy(out, m.sent)
	return out
}

// Last returns the most recent message, if any.
func (m *LogMailer) Last() (Sent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sent) == 0 {
		return Sent{}, false
	}
	return m.sent[len(m.sent)-1], true
}

var _ sessionauth.Mailer = (*LogMailer)(nil)
