package channel

import (
	"context"
	"fmt"
	"html"

	"taskhub-notify/internal/domain"
)

// InAppSender has nothing to transmit: the persisted record is the in-app
// notification, and the stream and list endpoints read it from the store.
type InAppSender struct{}

func NewInAppSender() *InAppSender {
	return &InAppSender{}
}

func (InAppSender) Send(context.Context, Delivery) error {
	return nil
}

func (InAppSender) SkipsTemplates() bool {
	return true
}

type EmailSender struct {
	transport MailTransport
}

func NewEmailSender(transport MailTransport) *EmailSender {
	return &EmailSender{transport: transport}
}

func (s *EmailSender) Send(ctx context.Context, d Delivery) error {
	if d.Contact == nil || d.Contact.Email == "" {
		return domain.NewValidationError("no email address")
	}
	if s.transport == nil {
		return domain.NewTransportError(string(domain.ChannelEmail), domain.ErrBackendNotConfigured)
	}
	body := d.Content
	if !d.Rendered {
		body = html.EscapeString(body)
	}
	if err := s.transport.SendMail(ctx, d.Contact.Email, d.Subject, body); err != nil {
		return domain.NewTransportError(string(domain.ChannelEmail), err)
	}
	return nil
}

// TokenSender covers transports addressed by a single contact token.
type TokenSender struct {
	channel       domain.Channel
	backend       Notifier
	token         func(*domain.Contact) string
	missingReason string
}

func NewTokenSender(ch domain.Channel, backend Notifier, token func(*domain.Contact) string, missingReason string) *TokenSender {
	return &TokenSender{
		channel:       ch,
		backend:       backend,
		token:         token,
		missingReason: missingReason,
	}
}

func NewPushSender(backend Notifier) *TokenSender {
	return NewTokenSender(domain.ChannelPush, backend,
		func(c *domain.Contact) string { return c.DeviceToken }, "no device token")
}

func NewSMSSender(backend Notifier) *TokenSender {
	return NewTokenSender(domain.ChannelSMS, backend,
		func(c *domain.Contact) string { return c.Phone }, "no phone number")
}

func NewSlackSender(backend Notifier) *TokenSender {
	return NewTokenSender(domain.ChannelSlack, backend,
		func(c *domain.Contact) string { return c.SlackUserID }, "no slack user id")
}

func NewTelegramSender(backend Notifier) *TokenSender {
	return NewTokenSender(domain.ChannelTelegram, backend,
		func(c *domain.Contact) string { return c.TelegramChatID }, "no telegram chat id")
}

func (s *TokenSender) Send(ctx context.Context, d Delivery) error {
	var token string
	if d.Contact != nil {
		token = s.token(d.Contact)
	}
	if token == "" {
		return domain.NewValidationError(s.missingReason)
	}
	if s.backend == nil {
		return domain.NewTransportError(string(s.channel), domain.ErrBackendNotConfigured)
	}

	if err := s.backend.Notify(ctx, token, s.channel, formatPlain(d)); err != nil {
		return domain.NewTransportError(string(s.channel), err)
	}
	return nil
}

// formatPlain folds the subject into the body for transports without one.
func formatPlain(d Delivery) string {
	if d.Subject == "" {
		return d.Content
	}
	if d.Content == "" {
		return d.Subject
	}
	return fmt.Sprintf("%s\n\n%s", d.Subject, d.Content)
}
