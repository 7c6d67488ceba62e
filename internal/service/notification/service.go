package notification

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"taskhub-notify/internal/domain"
	"taskhub-notify/internal/logging"
	"taskhub-notify/internal/metrics"
	"taskhub-notify/internal/repository"
	"taskhub-notify/internal/service/channel"
	"taskhub-notify/internal/service/template"
)

type Service interface {
	Send(ctx context.Context, in SendInput) (*domain.Notification, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error)
	List(ctx context.Context, userID uuid.UUID, unreadOnly bool, params domain.PaginationParams) (domain.PaginatedResponse[domain.Notification], error)
	MarkAsRead(ctx context.Context, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error)
	GetUnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)

	NotifyTaskAssigned(ctx context.Context, assigneeID uuid.UUID, task domain.TaskRef, assignedBy string, channels ...domain.Channel) (*domain.Notification, error)
	NotifyTaskCompleted(ctx context.Context, recipientID uuid.UUID, task domain.TaskRef, completedBy string, channels ...domain.Channel) (*domain.Notification, error)
	NotifyDeadlineReminder(ctx context.Context, recipientID uuid.UUID, task domain.TaskRef, channels ...domain.Channel) (*domain.Notification, error)
}

type service struct {
	notifRepo     repository.NotificationRepository
	recipientRepo repository.RecipientRepository
	registry      *channel.Registry
	templates     template.Renderer
	redis         *redis.Client
	cacheTTL      time.Duration
	logger        zerolog.Logger
}

// NewService wires the dispatcher. templates and redis may be nil: without
// a catalog every templated channel fails with "template not found", and
// without redis unread counts always hit the store.
func NewService(
	notifRepo repository.NotificationRepository,
	recipientRepo repository.RecipientRepository,
	registry *channel.Registry,
	templates template.Renderer,
	redis *redis.Client,
	cacheTTL time.Duration,
	logger zerolog.Logger,
) Service {
	return &service{
		notifRepo:     notifRepo,
		recipientRepo: recipientRepo,
		registry:      registry,
		templates:     templates,
		redis:         redis,
		cacheTTL:      cacheTTL,
		logger:        logging.WithComponent(logger, "notification"),
	}
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	return s.notifRepo.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, params domain.PaginationParams) (domain.PaginatedResponse[domain.Notification], error) {
	params.Validate()
	notifications, total, err := s.notifRepo.ListByUser(ctx, userID, unreadOnly, params)
	if err != nil {
		return domain.PaginatedResponse[domain.Notification]{}, err
	}

	return domain.NewPaginatedResponse(notifications, params.Page, params.PageSize, total), nil
}

func (s *service) MarkAsRead(ctx context.Context, id uuid.UUID) error {
	notif, err := s.notifRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if notif.IsRead {
		return nil
	}

	changed, err := s.notifRepo.MarkAsRead(ctx, id)
	if err != nil {
		return err
	}
	if changed {
		s.invalidateUnread(ctx, notif.UserID)
	}
	return nil
}

func (s *service) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	count, err := s.notifRepo.MarkAllAsRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.invalidateUnread(ctx, userID)
	}
	return count, nil
}

func unreadKey(userID uuid.UUID) string {
	return fmt.Sprintf("notifications:unread:%s", userID)
}

func (s *service) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	cacheKey := unreadKey(userID)

	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
			if count, err := strconv.ParseInt(cached, 10, 64); err == nil {
				metrics.UnreadCacheLookups.WithLabelValues("hit").Inc()
				return count, nil
			}
		}
		metrics.UnreadCacheLookups.WithLabelValues("miss").Inc()
	}

	count, err := s.notifRepo.CountUnread(ctx, userID)
	if err != nil {
		return 0, err
	}

	if s.redis != nil {
		_ = s.redis.Set(ctx, cacheKey, count, s.cacheTTL).Err()
	}
	return count, nil
}

func (s *service) invalidateUnread(ctx context.Context, userID uuid.UUID) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(context.WithoutCancel(ctx), unreadKey(userID)).Err(); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to invalidate unread count")
	}
}
