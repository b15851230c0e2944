package mail

import (
	"bytes"
	"context"
	"fmt"
	htmlTemplate "html/template"
	"path/filepath"
	textTemplate "text/template"
	"time"

	"github.com/tech-arch1tect/rollcall/config"
	"github.com/tech-arch1tect/rollcall/services/logging"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// MailClient is the part of *mail.Client the service needs.
type MailClient interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type GoMailClient struct {
	client *mail.Client
}

func (c *GoMailClient) DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error {
	return c.client.DialAndSendWithContext(ctx, messages...)
}

type Service struct {
	config        *config.MailConfig
	client        MailClient
	htmlTemplates *htmlTemplate.Template
	textTemplates *textTemplate.Template
	logger        *logging.Service
}

type TemplateData map[string]any

func NewService(cfg *config.MailConfig, logger *logging.Service) (*Service, error) {
	logger.Info("initializing mail service",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("encryption", cfg.Encryption),
		zap.String("from_address", cfg.FromAddress))

	client, err := newGoMailClient(cfg)
	if err != nil {
		logger.Error("failed to create mail client",
			zap.Error(err),
			zap.String("host", cfg.Host),
			zap.Int("port", cfg.Port))
		return nil, err
	}

	return NewServiceWithClient(cfg, logger, client)
}

// NewServiceWithClient builds the service around a caller-provided transport.
func NewServiceWithClient(cfg *config.MailConfig, logger *logging.Service, client MailClient) (*Service, error) {
	if cfg.FromAddress == "" {
		logger.Error("mail service initialization failed: FROM_ADDRESS is required")
		return nil, fmt.Errorf("MAIL_FROM_ADDRESS is required")
	}

	service := &Service{
		config: cfg,
		client: client,
		logger: logger,
	}

	if err := service.loadTemplates(); err != nil {
		logger.Error("failed to load mail templates", zap.Error(err))
		return nil, fmt.Errorf("failed to load mail templates: %w", err)
	}

	logger.Info("mail service initialized successfully")
	return service, nil
}

func newGoMailClient(cfg *config.MailConfig) (*GoMailClient, error) {
	clientOpts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(10 * time.Second),
	}

	switch cfg.Encryption {
	case "ssl":
		clientOpts = append(clientOpts, mail.WithSSL())
	case "none":
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.NoTLS))
	default:
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}

	if cfg.Username != "" {
		clientOpts = append(clientOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password))
	}

	client, err := mail.NewClient(cfg.Host, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}
	return &GoMailClient{client: client}, nil
}

func (s *Service) loadTemplates() error {
	if s.config.TemplatesDir == "" {
		s.logger.Debug("no template directory configured, skipping template loading")
		return nil
	}

	htmlPattern := filepath.Join(s.config.TemplatesDir, "*.html")
	textPattern := filepath.Join(s.config.TemplatesDir, "*.txt")

	if matches, _ := filepath.Glob(htmlPattern); len(matches) > 0 {
		tmpl, err := htmlTemplate.ParseFiles(matches...)
		if err != nil {
			return fmt.Errorf("failed to parse HTML templates: %w", err)
		}
		s.htmlTemplates = tmpl
	}

	if matches, _ := filepath.Glob(textPattern); len(matches) > 0 {
		tmpl, err := textTemplate.ParseFiles(matches...)
		if err != nil {
			return fmt.Errorf("failed to parse text templates: %w", err)
		}
		s.textTemplates = tmpl
	}

	s.logger.Info("mail templates loaded",
		zap.String("templates_dir", s.config.TemplatesDir),
		zap.Int("html_templates", countTemplates(s.htmlTemplates)),
		zap.Int("text_templates", countTextTemplates(s.textTemplates)))

	return nil
}

func countTemplates(t *htmlTemplate.Template) int {
	if t == nil {
		return 0
	}
	return len(t.Templates())
}

func countTextTemplates(t *textTemplate.Template) int {
	if t == nil {
		return 0
	}
	return len(t.Templates())
}

// HasTemplate reports whether an html or text template with this base name was loaded.
func (s *Service) HasTemplate(name string) bool {
	if s.htmlTemplates != nil && s.htmlTemplates.Lookup(name+".html") != nil {
		return true
	}
	return s.textTemplates != nil && s.textTemplates.Lookup(name+".txt") != nil
}

func (s *Service) NewMessage() (*mail.Msg, error) {
	message := mail.NewMsg()

	var err error
	if s.config.FromName != "" {
		err = message.FromFormat(s.config.FromName, s.config.FromAddress)
	} else {
		err = message.From(s.config.FromAddress)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set FROM address: %w", err)
	}

	return message, nil
}

func (s *Service) Send(ctx context.Context, message *mail.Msg) error {
	startTime := time.Now()
	err := s.client.DialAndSendWithContext(ctx, message)
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error("failed to send email",
			zap.Error(err),
			zap.Duration("attempt_duration", duration))
		return err
	}

	s.logger.Info("email sent successfully", zap.Duration("send_duration", duration))
	return nil
}

func (s *Service) SendTemplate(ctx context.Context, templateName string, to []string, subject string, data TemplateData) error {
	s.logger.Info("sending template email",
		zap.String("template", templateName),
		zap.Strings("recipients", to),
		zap.String("subject", subject))

	message, err := s.addressedMessage(to, subject)
	if err != nil {
		return err
	}

	if err := s.renderTemplate(templateName, data, message); err != nil {
		s.logger.Error("failed to render template",
			zap.Error(err),
			zap.String("template", templateName))
		return fmt.Errorf("failed to render template: %w", err)
	}

	return s.Send(ctx, message)
}

func (s *Service) SendPlain(ctx context.Context, to []string, subject, body string) error {
	s.logger.Info("sending plain text email",
		zap.Strings("recipients", to),
		zap.String("subject", subject),
		zap.Int("body_length", len(body)))

	message, err := s.addressedMessage(to, subject)
	if err != nil {
		return err
	}
	message.SetBodyString(mail.TypeTextPlain, body)

	return s.Send(ctx, message)
}

func (s *Service) addressedMessage(to []string, subject string) (*mail.Msg, error) {
	message, err := s.NewMessage()
	if err != nil {
		return nil, err
	}

	if err := message.To(to...); err != nil {
		s.logger.Error("failed to set TO addresses",
			zap.Error(err),
			zap.Strings("recipients", to))
		return nil, fmt.Errorf("failed to set TO addresses: %w", err)
	}

	message.Subject(subject)
	return message, nil
}

func (s *Service) renderTemplate(templateName string, data TemplateData, message *mail.Msg) error {
	var hasTemplate bool

	if s.htmlTemplates != nil {
		if tmpl := s.htmlTemplates.Lookup(templateName + ".html"); tmpl != nil {
			var htmlBuf bytes.Buffer
			if err := tmpl.Execute(&htmlBuf, data); err != nil {
				return fmt.Errorf("failed to execute HTML template: %w", err)
			}
			message.SetBodyString(mail.TypeTextHTML, htmlBuf.String())
			hasTemplate = true
		}
	}

	if s.textTemplates != nil {
		if tmpl := s.textTemplates.Lookup(templateName + ".txt"); tmpl != nil {
			var textBuf bytes.Buffer
			if err := tmpl.Execute(&textBuf, data); err != nil {
				return fmt.Errorf("failed to execute text template: %w", err)
			}
			if hasTemplate {
				message.AddAlternativeString(mail.TypeTextPlain, textBuf.String())
			} else {
				message.SetBodyString(mail.TypeTextPlain, textBuf.String())
			}
			hasTemplate = true
		}
	}

	if !hasTemplate {
		s.logger.Warn("template not found", zap.String("template", templateName))
		return fmt.Errorf("template '%s' not found", templateName)
	}

	return nil
}
