package mailer

import (
	"context"
	"fmt"
	"html"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/Muthahireen/clairvoyant/internal/usecase"
)

const (
	senderName   = "Clairvoyant"
	resetSubject = "Reset your Clairvoyant password"
)

type sendClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (statusCode int, body string, err error)
}

type sendgridClient struct {
	client *sendgrid.Client
}

func (c sendgridClient) SendWithContext(ctx context.Context, email *mail.SGMailV3) (int, string, error) {
	resp, err := c.client.SendWithContext(ctx, email)
	if err != nil {
		return 0, "", err
	}
	return resp.StatusCode, resp.Body, nil
}

// SendGridMailer delivers account emails through the SendGrid API.
type SendGridMailer struct {
	client sendClient
	sender string
	logger *zap.Logger
}

// NewSendGridMailer creates a mailer that sends from the given address.
func NewSendGridMailer(apiKey, sender string, logger *zap.Logger) *SendGridMailer {
	return &SendGridMailer{
		client: sendgridClient{client: sendgrid.NewSendClient(apiKey)},
		sender: sender,
		logger: logger.Named("mailer"),
	}
}

// SendPasswordReset mails the reset link.
func (m *SendGridMailer) SendPasswordReset(ctx context.Context, msg usecase.PasswordResetMail) error {
	email := resetEmail(m.sender, msg)
	status, body, err := m.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("sendgrid rejected reset email: status %d: %s", status, body)
	}
	m.logger.Info("reset email sent", zap.Int("status", status))
	return nil
}

func resetEmail(sender string, msg usecase.PasswordResetMail) *mail.SGMailV3 {
	from := mail.NewEmail(senderName, sender)
	to := mail.NewEmail(msg.Username, msg.To)
	plain := fmt.Sprintf("Hello %s,\n\nUse the link below to choose a new password:\n%s\n\nIf you did not ask for this, ignore this email.", msg.Username, msg.Link)
	htmlContent := fmt.Sprintf(`<p>Hello %s,</p><p><a href="%s">Choose a new password</a></p><p>If you did not ask for this, ignore this email.</p>`,
		html.EscapeString(msg.Username), html.EscapeString(msg.Link))
	return mail.NewSingleEmail(from, resetSubject, to, plain, htmlContent)
}

// LogMailer writes reset links to the log. It stands in for SendGrid in local setups.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer creates a log-only mailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger.Named("mailer")}
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, msg usecase.PasswordResetMail) error {
	m.logger.Info("password reset link", zap.String("to", msg.To), zap.String("link", msg.Link))
	return nil
}
