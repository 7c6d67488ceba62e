package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskhub-notify/internal/domain"
	"taskhub-notify/internal/metrics"
	"taskhub-notify/internal/service/channel"
)

type SendInput struct {
	UserID            uuid.UUID               `json:"user_id"`
	Title             string                  `json:"title"`
	Message           string                  `json:"message"`
	Type              domain.NotificationType `json:"type"`
	Channels          []domain.Channel        `json:"channels"`
	Metadata          map[string]any          `json:"metadata,omitempty"`
	TemplateKey       string                  `json:"template_key,omitempty"`
	TemplateVariables map[string]any          `json:"template_variables,omitempty"`
}

func (in SendInput) validate() error {
	if in.UserID == uuid.Nil {
		return fmt.Errorf("%w: user_id is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	}
	if len(in.Channels) == 0 {
		return fmt.Errorf("%w: at least one channel is required", domain.ErrInvalidInput)
	}
	return nil
}

// Send persists the record, then attempts every requested channel once in
// the order given. Channel failures end up on the returned record; only
// invalid input or a failed initial insert are returned as errors.
func (s *service) Send(ctx context.Context, in SendInput) (*domain.Notification, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	notif := domain.NewNotification(in.UserID, in.Type, in.Title, in.Message, in.Channels)
	notif.Metadata = in.Metadata
	notif.TemplateKey = in.TemplateKey

	if err := s.notifRepo.Create(ctx, notif); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	metrics.NotificationsCreated.WithLabelValues(string(notif.Type)).Inc()
	s.invalidateUnread(ctx, notif.UserID)

	// status write-backs must land even if the caller goes away mid-dispatch
	writeCtx := context.WithoutCancel(ctx)
	contact := s.lookupContact(ctx, notif)

	for _, ch := range notif.Channels {
		status, reason := s.deliver(ctx, notif, contact, ch, in.TemplateVariables)
		notif.Resolve(ch, status, reason)
		metrics.ChannelDeliveries.WithLabelValues(string(ch), string(status)).Inc()

		if err := s.notifRepo.UpdateChannelStatus(writeCtx, notif.ID, ch, status, reason); err != nil {
			s.logger.Error().Err(err).
				Str("notification_id", notif.ID.String()).
				Str("channel", string(ch)).
				Msg("failed to store channel status")
		}
	}

	return notif, nil
}

// lookupContact fetches contact data once per dispatch, and only when a
// requested channel needs it.
func (s *service) lookupContact(ctx context.Context, notif *domain.Notification) *domain.Contact {
	needed := false
	for _, ch := range notif.Channels {
		if ch != domain.ChannelInApp {
			needed = true
			break
		}
	}
	if !needed || s.recipientRepo == nil {
		return nil
	}

	contact, err := s.recipientRepo.GetContact(ctx, notif.UserID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", notif.UserID.String()).Msg("failed to load recipient contact")
		return nil
	}
	return contact
}

func (s *service) deliver(ctx context.Context, notif *domain.Notification, contact *domain.Contact, ch domain.Channel, vars map[string]any) (domain.DeliveryStatus, string) {
	log := s.logger.With().
		Str("notification_id", notif.ID.String()).
		Str("channel", string(ch)).
		Logger()

	sender, ok := s.registry.Lookup(ch)
	if !ok {
		log.Warn().Msg("no sender registered for channel")
		return domain.StatusFailed, domain.FailureReason(domain.ErrUnknownChannel)
	}

	d := channel.Delivery{
		Notification: notif.Clone(),
		Contact:      contact,
		Subject:      notif.Title,
		Content:      notif.Message,
	}

	if notif.TemplateKey != "" && channel.UsesTemplates(sender) {
		if s.templates == nil {
			return domain.StatusFailed, domain.FailureReason(domain.ErrTemplateNotFound)
		}
		rendered, err := s.templates.Render(notif.TemplateKey, ch, vars)
		if err != nil {
			log.Warn().Err(err).Str("template_key", notif.TemplateKey).Msg("template render failed")
			return domain.StatusFailed, domain.FailureReason(err)
		}
		d.Subject = rendered.Subject
		d.Content = rendered.Content
		d.Rendered = true
	}

	start := time.Now()
	err := safeSend(ctx, sender, d)
	metrics.ChannelSendDuration.WithLabelValues(string(ch)).Observe(time.Since(start).Seconds())

	if err != nil {
		log.Warn().Err(err).Msg("channel delivery failed")
		return domain.StatusFailed, domain.FailureReason(err)
	}
	return domain.StatusSent, ""
}

func safeSend(ctx context.Context, sender channel.Sender, d channel.Delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sender panic: %v", r)
		}
	}()
	return sender.Send(ctx, d)
}
