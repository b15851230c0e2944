package verification

import (
	"context"
	"fmt"
	"time"

	"github.com/tech-arch1tect/rollcall/services/logging"
	"github.com/tech-arch1tect/rollcall/services/mail"
	"go.uber.org/zap"
)

// Sender delivers a freshly issued code to its owner.
type Sender interface {
	SendVerificationCode(ctx context.Context, email, code string, ttl time.Duration) error
}

// SenderFunc adapts a plain function into a Sender.
type SenderFunc func(ctx context.Context, email, code string, ttl time.Duration) error

func (f SenderFunc) SendVerificationCode(ctx context.Context, email, code string, ttl time.Duration) error {
	return f(ctx, email, code, ttl)
}

const (
	CodeTemplate = "email_verification_code"
	codeSubject  = "Your verification code"
)

type MailService interface {
	HasTemplate(name string) bool
	SendTemplate(ctx context.Context, templateName string, to []string, subject string, data mail.TemplateData) error
	SendPlain(ctx context.Context, to []string, subject, body string) error
}

// MailSender sends the code over SMTP, preferring the email_verification_code template
// and falling back to a plain text body when the template is absent.
type MailSender struct {
	mail    MailService
	appName string
}

func NewMailSender(mailService MailService, appName string) *MailSender {
	return &MailSender{mail: mailService, appName: appName}
}

func (m *MailSender) SendVerificationCode(ctx context.Context, email, code string, ttl time.Duration) error {
	minutes := int(ttl.Round(time.Minute) / time.Minute)
	to := []string{email}

	if m.mail.HasTemplate(CodeTemplate) {
		return m.mail.SendTemplate(ctx, CodeTemplate, to, codeSubject, mail.TemplateData{
			"AppName":          m.appName,
			"Code":             code,
			"ExpiresInMinutes": minutes,
		})
	}

	body := fmt.Sprintf("Your %s verification code is %s.\nIt expires in %d minutes.", m.appName, code, minutes)
	return m.mail.SendPlain(ctx, to, codeSubject, body)
}

// LogSender writes the code to the log instead of delivering it. Used when no mail
// transport is configured.
type LogSender struct {
	logger *logging.Service
}

func NewLogSender(logger *logging.Service) *LogSender {
	return &LogSender{logger: logger}
}

func (l *LogSender) SendVerificationCode(_ context.Context, email, code string, ttl time.Duration) error {
	l.logger.Info("email verification code issued without mail transport",
		zap.String("email", email),
		zap.String("code", code),
		zap.Duration("ttl", ttl))
	return nil
}
