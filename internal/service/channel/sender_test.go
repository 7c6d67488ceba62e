package channel_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"taskhub-notify/internal/domain"
	"taskhub-notify/internal/mocks"
	"taskhub-notify/internal/service/channel"
)

func delivery(contact *domain.Contact) channel.Delivery {
	notif := domain.NewNotification(uuid.New(), domain.NotifInfo, "Task assigned", "You have a new task", nil)
	return channel.Delivery{
		Notification: notif,
		Contact:      contact,
		Subject:      notif.Title,
		Content:      notif.Message,
	}
}

func TestRegistry(t *testing.T) {
	reg := channel.NewRegistry()
	reg.Register(domain.ChannelSMS, channel.NewSMSSender(nil))
	reg.Register(domain.ChannelInApp, channel.NewInAppSender())

	_, ok := reg.Lookup(domain.ChannelInApp)
	assert.True(t, ok)
	_, ok = reg.Lookup(domain.Channel("pager"))
	assert.False(t, ok)

	assert.Equal(t, []domain.Channel{domain.ChannelInApp, domain.ChannelSMS}, reg.Channels())
}

func TestUsesTemplates(t *testing.T) {
	assert.False(t, channel.UsesTemplates(channel.NewInAppSender()))
	assert.True(t, channel.UsesTemplates(channel.NewEmailSender(nil)))
	assert.True(t, channel.UsesTemplates(channel.NewPushSender(nil)))
}

func TestInAppSender(t *testing.T) {
	err := channel.NewInAppSender().Send(context.Background(), delivery(nil))
	assert.NoError(t, err)
}

func TestEmailSender(t *testing.T) {
	ctx := context.Background()

	t.Run("No email address", func(t *testing.T) {
		transport := new(mocks.MailTransport)
		err := channel.NewEmailSender(transport).Send(ctx, delivery(&domain.Contact{Phone: "+100"}))

		var validation *domain.ValidationError
		require.ErrorAs(t, err, &validation)
		assert.Equal(t, "no email address", validation.Reason)
		transport.AssertNotCalled(t, "SendMail")
	})

	t.Run("Not configured", func(t *testing.T) {
		err := channel.NewEmailSender(nil).Send(ctx, delivery(&domain.Contact{Email: "a@example.com"}))
		assert.ErrorIs(t, err, domain.ErrBackendNotConfigured)

		var transportErr *domain.TransportError
		assert.ErrorAs(t, err, &transportErr)
	})

	t.Run("Success", func(t *testing.T) {
		transport := new(mocks.MailTransport)
		transport.On("SendMail", ctx, "a@example.com", "Task assigned", "You have a new task").Return(nil).Once()

		err := channel.NewEmailSender(transport).Send(ctx, delivery(&domain.Contact{Email: "a@example.com"}))
		assert.NoError(t, err)
		transport.AssertExpectations(t)
	})

	t.Run("Plain content is escaped", func(t *testing.T) {
		transport := new(mocks.MailTransport)
		transport.On("SendMail", ctx, "a@example.com", "Task assigned",
			"Review &lt;img src=x onerror=alert(1)&gt; &amp; reply").Return(nil).Once()

		d := delivery(&domain.Contact{Email: "a@example.com"})
		d.Content = "Review <img src=x onerror=alert(1)> & reply"
		err := channel.NewEmailSender(transport).Send(ctx, d)
		assert.NoError(t, err)
		transport.AssertExpectations(t)
	})

	t.Run("Rendered content passes through", func(t *testing.T) {
		transport := new(mocks.MailTransport)
		transport.On("SendMail", ctx, "a@example.com", "Task assigned", "<p>Q3 &amp; Q4</p>").Return(nil).Once()

		d := delivery(&domain.Contact{Email: "a@example.com"})
		d.Content = "<p>Q3 &amp; Q4</p>"
		d.Rendered = true
		err := channel.NewEmailSender(transport).Send(ctx, d)
		assert.NoError(t, err)
		transport.AssertExpectations(t)
	})

	t.Run("Transport failure", func(t *testing.T) {
		transport := new(mocks.MailTransport)
		transport.On("SendMail", ctx, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("429 too many requests")).Once()

		err := channel.NewEmailSender(transport).Send(ctx, delivery(&domain.Contact{Email: "a@example.com"}))
		require.Error(t, err)
		assert.Equal(t, "email transport: 429 too many requests", domain.FailureReason(err))
	})
}

func TestTokenSenders(t *testing.T) {
	ctx := context.Background()
	full := &domain.Contact{
		DeviceToken:    "device-1",
		Phone:          "+15550100",
		SlackUserID:    "U123",
		TelegramChatID: "42",
	}

	tests := []struct {
		name    string
		build   func(channel.Notifier) *channel.TokenSender
		channel domain.Channel
		token   string
		reason  string
	}{
		{"push", channel.NewPushSender, domain.ChannelPush, "device-1", "no device token"},
		{"sms", channel.NewSMSSender, domain.ChannelSMS, "+15550100", "no phone number"},
		{"slack", channel.NewSlackSender, domain.ChannelSlack, "U123", "no slack user id"},
		{"telegram", channel.NewTelegramSender, domain.ChannelTelegram, "42", "no telegram chat id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := new(mocks.Notifier)
			backend.On("Notify", ctx, tt.token, tt.channel, "Task assigned\n\nYou have a new task").Return(nil).Once()

			sender := tt.build(backend)
			require.NoError(t, sender.Send(ctx, delivery(full)))
			backend.AssertExpectations(t)

			err := sender.Send(ctx, delivery(&domain.Contact{}))
			assert.Equal(t, tt.reason, domain.FailureReason(err))

			err = sender.Send(ctx, delivery(nil))
			assert.Equal(t, tt.reason, domain.FailureReason(err), "missing contact reads as missing token")

			err = tt.build(nil).Send(ctx, delivery(full))
			assert.ErrorIs(t, err, domain.ErrBackendNotConfigured)
		})
	}
}

func TestTokenSender_BackendError(t *testing.T) {
	ctx := context.Background()
	backend := new(mocks.Notifier)
	backend.On("Notify", ctx, "42", domain.ChannelTelegram, mock.Anything).Return(errors.New("chat not found")).Once()

	err := channel.NewTelegramSender(backend).Send(ctx, delivery(&domain.Contact{TelegramChatID: "42"}))

	var transportErr *domain.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "telegram", transportErr.Backend)
	assert.Equal(t, "telegram transport: chat not found", domain.FailureReason(err))
}
