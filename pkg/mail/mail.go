package mail

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/schoolsuite/sms-core-api/pkg/config"
)

// Message is a plain-text transactional email.
type Message struct {
	Subject    string
	Body       string
	Recipients []string
}

// Mailer delivers transactional mail. Implementations are best-effort: the
// caller logs failures but never propagates them.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New selects a transport from config: SendGrid when an API key is present,
// otherwise a console mailer that only logs.
func New(cfg config.MailConfig, logger *zap.Logger) Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SendgridAPIKey != "" {
		return &sendgridMailer{
			client: sendgrid.NewSendClient(cfg.SendgridAPIKey),
			from:   sgmail.NewEmail(cfg.FromName, cfg.FromAddress),
			logger: logger,
		}
	}
	return &consoleMailer{logger: logger}
}

type sendgridMailer struct {
	client *sendgrid.Client
	from   *sgmail.Email
	logger *zap.Logger
}

func (m *sendgridMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.Recipients) == 0 {
		return fmt.Errorf("mail requires at least one recipient")
	}
	personalization := sgmail.NewPersonalization()
	for _, rcpt := range msg.Recipients {
		personalization.AddTos(sgmail.NewEmail("", rcpt))
	}

	message := sgmail.NewV3Mail()
	message.SetFrom(m.from)
	message.Subject = msg.Subject
	message.AddPersonalizations(personalization)
	message.AddContent(sgmail.NewContent("text/plain", msg.Body))

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send: status %d", resp.StatusCode)
	}
	m.logger.Debug("mail sent", zap.String("subject", msg.Subject), zap.Int("recipients", len(msg.Recipients)))
	return nil
}

// consoleMailer logs instead of sending. Used in development and tests.
type consoleMailer struct {
	logger *zap.Logger
}

func (m *consoleMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("mail (console transport)",
		zap.String("subject", msg.Subject),
		zap.Strings("recipients", msg.Recipients),
		zap.Int("body_bytes", len(msg.Body)),
	)
	return nil
}
