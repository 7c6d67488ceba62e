package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"taskhub-notify/internal/domain"
)

const (
	PrincipalContextKey = "principal"
	UserIDContextKey    = "user_id"
)

type TokenValidator interface {
	ValidateAccessToken(token string) (*domain.Principal, error)
}

// AuthRequired accepts a bearer token in the Authorization header.
func AuthRequired(validator TokenValidator) fiber.Handler {
	return authenticate(validator, false)
}

// StreamAuthRequired also accepts ?token=, since browser EventSource
// clients cannot set headers.
func StreamAuthRequired(validator TokenValidator) fiber.Handler {
	return authenticate(validator, true)
}

func authenticate(validator TokenValidator, allowQuery bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, msg := bearerToken(c)
		if token == "" && allowQuery {
			token = c.Query("token")
		}
		if token == "" {
			if msg == "" {
				msg = "Missing authorization header"
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"code":    "UNAUTHORIZED",
				"message": msg,
			})
		}

		principal, err := validator.ValidateAccessToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"code":    "UNAUTHORIZED",
				"message": "Invalid or expired token",
			})
		}

		c.Locals(PrincipalContextKey, principal)
		c.Locals(UserIDContextKey, principal.UserID)

		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) (string, string) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", ""
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", "Invalid authorization header format"
	}
	return parts[1], ""
}

func GetPrincipal(c *fiber.Ctx) *domain.Principal {
	principal, ok := c.Locals(PrincipalContextKey).(*domain.Principal)
	if !ok {
		return nil
	}
	return principal
}

func GetUserID(c *fiber.Ctx) (uuid.UUID, error) {
	userID, ok := c.Locals(UserIDContextKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, Unauthorized("User not authenticated")
	}
	return userID, nil
}
