package mail

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/medivex/identity-service/internal/core/domain"
	"github.com/medivex/identity-service/internal/core/ports"
)

// Message is a rendered email.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Render turns a notification into a message from sender.
func Render(from string, n domain.Notification) (Message, error) {
	msg := Message{From: from, To: n.To}
	name := n.FirstName
	if name == "" {
		name = "there"
	}
	switch n.Kind {
	case domain.NotifyEmailVerification:
		msg.Subject = "Verify your email address"
		msg.Body = fmt.Sprintf("Hi %s,\n\nUse this code to verify your email address: %s\n", name, n.Token)
	case domain.NotifyPasswordReset:
		msg.Subject = "Reset your password"
		msg.Body = fmt.Sprintf("Hi %s,\n\nUse this code to reset your password within the next hour: %s\n"+
			"If you did not ask for a reset you can ignore this message.\n", name, n.Token)
	case domain.NotifyWelcome:
		msg.Subject = "Welcome to Medivex"
		msg.Body = fmt.Sprintf("Hi %s,\n\nYour account is ready.\n", name)
	default:
		return Message{}, fmt.Errorf("unknown notification kind %q", n.Kind)
	}
	return msg, nil
}

// LogMailer writes rendered messages to the log instead of an SMTP relay.
// Token values are never logged.
type LogMailer struct {
	from string
	log  zerolog.Logger
}

var _ ports.Mailer = (*LogMailer)(nil)

func NewLogMailer(from string, log zerolog.Logger) *LogMailer {
	return &LogMailer{from: from, log: log.With().Str("component", "mailer").Logger()}
}

func (m *LogMailer) Send(ctx context.Context, n domain.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := Render(m.from, n)
	if err != nil {
		return err
	}
	m.log.Info().
		Str("from", msg.From).
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("kind", string(n.Kind)).
		Msg("email sent")
	return nil
}
