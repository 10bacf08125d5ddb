package service

import (
	"context"

	"go.uber.org/zap"
)

// LogMailer writes reset links to the log instead of sending email. It is the
// delivery used in development.
type LogMailer struct {
	logger *zap.Logger
}

var _ Mailer = (*LogMailer)(nil)

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendPasswordReset(_ context.Context, email, link string) error {
	m.logger.Info("Password reset link issued",
		zap.String("email", email),
		zap.String("link", link),
	)
	return nil
}
