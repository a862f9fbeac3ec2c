package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"golang.org/x/time/rate"
)

// SMTPConfig configures the SMTP mailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// BaseURL is the public URL links in outgoing mail point at.
	BaseURL string

	// SendRate caps outbound messages per second; bursts of one.
	SendRate float64
}

// SMTP delivers mail over a plain SMTP relay. An outbound limiter keeps a
// burst of registrations from flooding the relay.
type SMTP struct {
	cfg     SMTPConfig
	limiter *rate.Limiter
	send    func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTP(cfg SMTPConfig) *SMTP {
	if cfg.SendRate <= 0 {
		cfg.SendRate = 1
	}
	return &SMTP{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.SendRate), 1),
		send:    smtp.SendMail,
	}
}

func (m *SMTP) SendVerificationEmail(ctx context.Context, email, token string) error {
	body := fmt.Sprintf(
		"Welcome!\r\n\r\nPlease verify your email address by visiting:\r\n%s/verify-email?token=%s\r\n\r\nThe link expires in 24 hours.\r\n",
		m.cfg.BaseURL, token,
	)
	return m.deliver(ctx, email, "Verify your email address", body)
}

func (m *SMTP) SendPasswordResetEmail(ctx context.Context, email, token string) error {
	body := fmt.Sprintf(
		"A password reset was requested for your account.\r\n\r\nReset it here:\r\n%s/reset-password?token=%s\r\n\r\nThe link expires in 1 hour. If you did not request this, ignore this message.\r\n",
		m.cfg.BaseURL, token,
	)
	return m.deliver(ctx, email, "Reset your password", body)
}

func (m *SMTP) SendWelcomeEmail(ctx context.Context, email, name string) error {
	if name == "" {
		name = "there"
	}
	body := fmt.Sprintf("Hi %s,\r\n\r\nYour email address is verified and your account is ready to use.\r\n", name)
	return m.deliver(ctx, email, "Welcome aboard", body)
}

func (m *SMTP) deliver(ctx context.Context, to, subject, body string) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(body)

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	return m.send(addr, auth, m.cfg.From, []string{to}, []byte(b.String()))
}
