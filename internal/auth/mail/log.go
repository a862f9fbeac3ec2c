package mail

import (
	"context"
	"log/slog"
)

// LogMailer writes mail to the log instead of a relay. Used in dev when no
// SMTP host is configured; tokens still become visible to the operator.
type LogMailer struct {
	Logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{Logger: logger}
}

func (m *LogMailer) SendVerificationEmail(_ context.Context, email, token string) error {
	m.Logger.Info("verification email", "to", email, "token", token)
	return nil
}

func (m *LogMailer) SendPasswordResetEmail(_ context.Context, email, token string) error {
	m.Logger.Info("password reset email", "to", email, "token", token)
	return nil
}

func (m *LogMailer) SendWelcomeEmail(_ context.Context, email, name string) error {
	m.Logger.Info("welcome email", "to", email, "name", name)
	return nil
}
