package mailer

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/nkiryanov/authgate/internal/models"
)

const (
	subjectConfirmation  = "Confirm your email"
	subjectPasswordReset = "Reset your password"
)

// SESMailer sends emails through AWS SES. Credentials and region come from
// the default AWS config chain (env, shared config, instance role).
type SESMailer struct {
	client   *ses.Client
	from     string
	renderer *renderer
}

func NewSESMailer(ctx context.Context, domain string, from string) (*SESMailer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("cant load aws config. Err: %w", err)
	}

	r, err := newRenderer(domain)
	if err != nil {
		return nil, err
	}

	return &SESMailer{
		client:   ses.NewFromConfig(cfg),
		from:     from,
		renderer: r,
	}, nil
}

func (m *SESMailer) SendConfirmation(ctx context.Context, user models.User, token string) error {
	html, err := m.renderer.confirmation(user, token)
	if err != nil {
		return err
	}
	return m.send(ctx, user.Email, subjectConfirmation, html)
}

func (m *SESMailer) SendPasswordReset(ctx context.Context, user models.User, token string) error {
	html, err := m.renderer.passwordReset(user, token)
	if err != nil {
		return err
	}
	return m.send(ctx, user.Email, subjectPasswordReset, html)
}

func (m *SESMailer) send(ctx context.Context, to string, subject string, html string) error {
	input := &ses.SendEmailInput{
		Source:      aws.String(m.from),
		Destination: &types.Destination{ToAddresses: []string{to}},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data:    aws.String(html),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	if _, err := m.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("cant send email. Err: %w", err)
	}

	return nil
}
