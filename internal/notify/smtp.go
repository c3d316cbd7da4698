package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

// SMTPConfig describes the outgoing mail server.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier sends mail through an SMTP relay. STARTTLS is used when the
// server offers it; PLAIN auth is used when a username is configured.
type SMTPNotifier struct {
	cfg SMTPConfig
	now func() time.Time
}

func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, now: time.Now}
}

// Send opens a connection per message. The dispatcher workers call Send
// concurrently and a client is never shared between them.
func (n *SMTPNotifier) Send(ctx context.Context, msg Message) error {
	m, err := n.message(msg)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(n.cfg.Host, n.clientOptions()...)
	if err != nil {
		return fmt.Errorf("notify: smtp client for %s: %w", n.cfg.Host, err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("notify: sending to %s: %w", msg.Recipient, err)
	}
	return nil
}

func (n *SMTPNotifier) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(n.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if n.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(n.cfg.Username),
			mail.WithPassword(n.cfg.Password),
		)
	}
	return opts
}

// message builds the plain-text mail for msg.
func (n *SMTPNotifier) message(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(n.cfg.From); err != nil {
		return nil, fmt.Errorf("notify: sender %q: %w", n.cfg.From, err)
	}
	if err := m.To(msg.Recipient); err != nil {
		return nil, fmt.Errorf("notify: recipient %q: %w", msg.Recipient, err)
	}
	m.Subject(msg.Subject)
	m.SetDateWithValue(n.now())
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}
