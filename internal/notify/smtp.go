package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"github.com/dgi-platform/rendezvous-service/internal/config"
)

// SMTPNotifier delivers messages over an authenticated SMTP transport.
type SMTPNotifier struct {
	client *mail.Client
	from   string
}

var _ Notifier = (*SMTPNotifier)(nil)

// NewSMTPNotifier builds an SMTP transport from the mail configuration.
func NewSMTPNotifier(cfg config.MailConfig) (*SMTPNotifier, error) {
	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return nil, fmt.Errorf("configure smtp client: %w", err)
	}
	return &SMTPNotifier{client: client, from: cfg.Sender()}, nil
}

// Send delivers one message. Connection and delivery errors are returned to
// the dispatcher, which logs and swallows them.
func (n *SMTPNotifier) Send(ctx context.Context, msg Message) error {
	m := mail.NewMsg()
	if err := m.From(n.from); err != nil {
		return fmt.Errorf("invalid sender %q: %w", n.from, err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	return n.client.DialAndSendWithContext(ctx, m)
}
