// Package mailer delivers the transactional emails: sign-up confirmation
// and password reset. Both carry a single-use token link.
package mailer

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/nkiryanov/authgate/internal/models"
)

//go:embed templates/*.html.tmpl
var templatesFS embed.FS

type Mailer interface {
	SendConfirmation(ctx context.Context, user models.User, token string) error
	SendPasswordReset(ctx context.Context, user models.User, token string) error
}

type templateData struct {
	Name string
	Link string
}

type renderer struct {
	domain    string
	templates *template.Template
}

func newRenderer(domain string) (*renderer, error) {
	templates, err := template.ParseFS(templatesFS, "templates/*.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("cant parse mail templates. Err: %w", err)
	}

	return &renderer{
		domain:    strings.TrimSuffix(domain, "/"),
		templates: templates,
	}, nil
}

func (r *renderer) confirmationLink(token string) string {
	return fmt.Sprintf("https://%s/auth/confirm/%s", r.domain, token)
}

func (r *renderer) passwordResetLink(token string) string {
	return fmt.Sprintf("https://%s/auth/reset-password/%s", r.domain, token)
}

func (r *renderer) confirmation(user models.User, token string) (string, error) {
	return r.render("confirmation.html.tmpl", templateData{
		Name: user.Name,
		Link: r.confirmationLink(token),
	})
}

func (r *renderer) passwordReset(user models.User, token string) (string, error) {
	return r.render("reset_password.html.tmpl", templateData{
		Name: user.Name,
		Link: r.passwordResetLink(token),
	})
}

func (r *renderer) render(name string, data templateData) (string, error) {
	var sb strings.Builder
	if err := r.templates.ExecuteTemplate(&sb, name, data); err != nil {
		return "", fmt.Errorf("cant render template %s. Err: %w", name, err)
	}
	return sb.String(), nil
}
