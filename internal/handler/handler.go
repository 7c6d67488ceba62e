package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taskhub-notify/internal/domain"
	"taskhub-notify/internal/middleware"
)

type Handlers struct {
	Notification *NotificationHandler
	Stream       *StreamHandler
}

func NewHandlers(notification *NotificationHandler, stream *StreamHandler) *Handlers {
	return &Handlers{
		Notification: notification,
		Stream:       stream,
	}
}

func RegisterRoutes(app *fiber.App, h *Handlers, validator middleware.TokenValidator) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/api/v1")

	// registered ahead of the header-only group so ?token= works here
	v1.Get("/notifications/stream", middleware.StreamAuthRequired(validator), h.Stream.Stream)

	protected := v1.Group("", middleware.AuthRequired(validator))

	notifications := protected.Group("/notifications")
	notifications.Get("/", h.Notification.List)
	notifications.Get("/unread-count", h.Notification.GetUnreadCount)
	notifications.Patch("/:id/read", h.Notification.MarkAsRead)
	notifications.Post("/mark-all-read", h.Notification.MarkAllAsRead)

	internal := protected.Group("/internal", middleware.RequireAnyRole(domain.RoleSystem, domain.RoleAdmin))
	internal.Post("/notifications", h.Notification.Create)
}
