package mailer

import (
	"context"

	"github.com/nkiryanov/authgate/internal/logger"
	"github.com/nkiryanov/authgate/internal/models"
)

// LogMailer writes the email links to the log instead of sending anything.
// Meant for local development.
type LogMailer struct {
	logger   logger.Logger
	renderer *renderer
}

func NewLogMailer(domain string, l logger.Logger) (*LogMailer, error) {
	r, err := newRenderer(domain)
	if err != nil {
		return nil, err
	}

	return &LogMailer{logger: l, renderer: r}, nil
}

func (m *LogMailer) SendConfirmation(ctx context.Context, user models.User, token string) error {
	if _, err := m.renderer.confirmation(user, token); err != nil {
		return err
	}

	m.logger.Info("confirmation email",
		"email", user.Email,
		"link", m.renderer.confirmationLink(token),
	)
	return nil
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, user models.User, token string) error {
	if _, err := m.renderer.passwordReset(user, token); err != nil {
		return err
	}

	m.logger.Info("password reset email",
		"email", user.Email,
		"link", m.renderer.passwordResetLink(token),
	)
	return nil
}
