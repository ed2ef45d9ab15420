package notify

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"text/template"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"
)

// Mailer is an SMTP-backed notification gateway. It renders registered
// templates against the data mapping handed to Send and delivers the
// result via gomail.
type Mailer struct {
	config *mailerConfig
	dialer *gomail.Dialer
	logger zerolog.Logger

	mu        sync.RWMutex
	templates map[string]*template.Template
}

// NewMailer creates a Mailer configured from SMTP_* environment variables.
func NewMailer(logger zerolog.Logger) (*Mailer, error) {
	cfg, err := newMailerConfig()
	if err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	dialer := gomail.NewDialer(
		cfg.Host,
		cfg.Port,
		cfg.Username,
		cfg.Password,
	)

	m := &Mailer{
		config:    cfg,
		dialer:    dialer,
		logger:    logger,
		templates: map[string]*template.Template{},
	}

	if err := m.RegisterTemplate(TemplateActivationName, activationTemplate); err != nil {
		return nil, err
	}

	return m, nil
}

// TemplateActivationName is registered out of the box so activation email
// works without any consumer setup.
const TemplateActivationName = "emails/activation"

const activationTemplate = `Hello{{if .firstName}} {{.firstName}}{{end}},

Your account has been created. Confirm your email address to activate it:

    /activate/{{.userId}}/{{.activationCode}}

If you did not create this account you can ignore this message.
`

// RegisterTemplate parses and stores a template under the given name,
// replacing any previous registration.
func (m *Mailer) RegisterTemplate(name, text string) error {
	tpl, err := template.New(name).Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse template %q: %w", name, err)
	}

	m.mu.Lock()
	m.templates[name] = tpl
	m.mu.Unlock()

	return nil
}

// Send renders the named template with data and delivers it to the
// recipient. It implements the accounts.NotificationGateway contract.
func (m *Mailer) Send(ctx context.Context, name string, data map[string]any, to, subject string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if to == "" {
		return fmt.Errorf("no recipient specified")
	}

	body, err := m.render(name, data)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.config.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		m.logger.Error().Err(err).Str("to", to).Str("template", name).Msg("failed to send email")
		return err
	}

	m.logger.Debug().Str("to", to).Str("template", name).Msg("email sent")

	return nil
}

func (m *Mailer) render(name string, data map[string]any) (string, error) {
	m.mu.RLock()
	tpl, ok := m.templates[name]
	m.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("unknown template %q", name)
	}

	var body bytes.Buffer
	if err := tpl.Execute(&body, data); err != nil {
		return "", fmt.Errorf("failed to render template %q: %w", name, err)
	}

	return body.String(), nil
}

// mailerConfig holds SMTP configuration for sending emails.
type mailerConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM"`
}

// newMailerConfig creates a mailerConfig instance from environment variables.
func newMailerConfig() (*mailerConfig, error) {
	cfg, err := env.ParseAs[mailerConfig]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	return &cfg, nil
}

// validate checks if the Mailer configuration is valid.
func (c *mailerConfig) validate() error {
	if c.Host == "" {
		return fmt.Errorf("missing SMTP_HOST environment variable")
	}
	if c.Port == 0 {
		return fmt.Errorf("missing SMTP_PORT environment variable")
	}
	if c.From == "" {
		return fmt.Errorf("missing SMTP_FROM environment variable")
	}

	return nil
}
