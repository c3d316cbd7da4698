// Package notify delivers outbound email.
//
// Senders implement Notifier. Request handlers never call a Notifier
// directly; they hand messages to a Dispatcher, which delivers them on
// background workers so a slow or failing mail server never delays or
// fails the request that triggered the message.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Message is one plain-text email.
type Message struct {
	Recipient string
	Subject   string
	Body      string
}

// Notifier sends a message or reports why it could not.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// LogNotifier writes messages to the log instead of sending them. Used when
// no SMTP server is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	n.logger.InfoContext(ctx, "email not sent: no SMTP server configured",
		slog.String("recipient", msg.Recipient),
		slog.String("subject", msg.Subject),
	)
	n.logger.DebugContext(ctx, "email body", slog.String("body", msg.Body))
	return nil
}

// PasswordReset builds the email that carries a reset link.
func PasswordReset(recipient, link string, ttl time.Duration) Message {
	return Message{
		Recipient: recipient,
		Subject:   "Reset your Authors Haven password",
		Body: fmt.Sprintf(
			"Someone asked to reset the password for this account.\n\n"+
				"Follow this link to choose a new one:\n\n%s\n\n"+
				"The link works once and expires in %s. "+
				"If you did not ask for this, ignore this email.\n",
			link, ttl),
	}
}
