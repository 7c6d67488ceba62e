package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"github.com/resend/resend-go/v3"

	"taskhub-notify/internal/config"
)

//go:embed templates/layout.html
var layoutFS embed.FS

// Service sends already-rendered notification bodies through Resend,
// wrapped in the shared HTML layout.
type Service interface {
	SendMail(ctx context.Context, to, subject, htmlBody string) error
}

type service struct {
	client *resend.Client
	from   string
	app    string
	layout *template.Template
}

func NewService(cfg *config.Config) (Service, error) {
	return newService(resend.NewClient(cfg.ResendAPIKey), cfg)
}

func newService(client *resend.Client, cfg *config.Config) (*service, error) {
	layout, err := template.ParseFS(layoutFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email layout: %w", err)
	}
	return &service{
		client: client,
		from:   fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromEmail),
		app:    cfg.FromName,
		layout: layout,
	}, nil
}

type layoutData struct {
	AppName string
	Subject string
	Body    template.HTML
}

// htmlBody has already been escaped by the template catalog, so it is
// inserted into the layout as-is.
func (s *service) render(subject, htmlBody string) (string, error) {
	var body bytes.Buffer
	err := s.layout.Execute(&body, layoutData{
		AppName: s.app,
		Subject: subject,
		Body:    template.HTML(htmlBody),
	})
	if err != nil {
		return "", fmt.Errorf("failed to execute email layout: %w", err)
	}
	return body.String(), nil
}

func (s *service) SendMail(ctx context.Context, to, subject, htmlBody string) error {
	html, err := s.render(subject, htmlBody)
	if err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Html:    html,
		Subject: subject,
	}

	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}
