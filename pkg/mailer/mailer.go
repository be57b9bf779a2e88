package mailer

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/postpilotapp/postpilot-backend/pkg/config"
	"github.com/postpilotapp/postpilot-backend/pkg/logger"
)

// Mailer sends transactional notifications (trial expiry, reconnect prompts).
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// New returns a SendGrid-backed mailer, or a logging no-op when no API key
// is configured (local dev).
func New(cfg config.SendgridConfig, logg *logger.Logger) Mailer {
	if cfg.APIKey == "" {
		return &noopMailer{logg: logg}
	}
	return &sendgridMailer{
		client: sendgrid.NewSendClient(cfg.APIKey),
		from:   cfg.DefaultFrom,
	}
}

type sendgridMailer struct {
	client *sendgrid.Client
	from   string
}

func (m *sendgridMailer) Send(_ context.Context, to, subject, body string) error {
	message := mail.NewSingleEmail(
		mail.NewEmail("PostPilot", m.from),
		subject,
		mail.NewEmail("", to),
		body,
		"",
	)
	resp, err := m.client.Send(message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send: status %d", resp.StatusCode)
	}
	return nil
}

type noopMailer struct {
	logg *logger.Logger
}

func (m *noopMailer) Send(ctx context.Context, to, subject, _ string) error {
	if m.logg != nil {
		ctx = m.logg.WithFields(ctx, map[string]any{"to": to, "subject": subject})
		m.logg.Info(ctx, "mailer disabled; dropping email")
	}
	return nil
}
