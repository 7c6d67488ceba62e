package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"taskhub-notify/internal/domain"
)

type MailTransport struct {
	mock.Mock
}

func (m *MailTransport) SendMail(ctx context.Context, to, subject, htmlBody string) error {
	args := m.Called(ctx, to, subject, htmlBody)
	return args.Error(0)
}

type Notifier struct {
	mock.Mock
}

func (m *Notifier) Notify(ctx context.Context, recipientToken string, ch domain.Channel, content string) error {
	args := m.Called(ctx, recipientToken, ch, content)
	return args.Error(0)
}
