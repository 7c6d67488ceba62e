package middleware

import (
	"github.com/gofiber/fiber/v2"

	"taskhub-notify/internal/domain"
)

func RequireAnyRole(roles ...domain.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal := GetPrincipal(c)
		if principal == nil {
			return Unauthorized("User not authenticated")
		}

		if !principal.HasAnyRole(roles...) {
			return Forbidden("Insufficient permissions for this operation")
		}

		return c.Next()
	}
}
