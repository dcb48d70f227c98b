package middleware

import (
	"context"
	"strings"

	"chess-matchmaking/logger"
	"chess-matchmaking/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// TokenValidator checks an end-user access token.
type TokenValidator interface {
	ValidateToken(ctx context.Context, accessToken, deviceID string) (*services.ValidateResponse, error)
}

// SSEAuthMiddleware authenticates EventSource requests, which carry
// `token` and `device_id` as query parameters instead of gateway headers.
//
// Usage:
//
//	app.Get("/api/notifications/stream", middleware.SSEAuthMiddleware(authClient, log), h.Stream)
func SSEAuthMiddleware(validator TokenValidator, log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accessToken := strings.TrimSpace(c.Query("token"))
		deviceID := strings.TrimSpace(c.Query("device_id"))
		if accessToken == "" || deviceID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "missing token or device_id in query",
			})
		}

		resp, err := validator.ValidateToken(c.UserContext(), accessToken, deviceID)
		if err != nil {
			log.Warn("SSE token rejected", zap.String("device_id", deviceID), zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		}

		c.Locals(UserIDKey, resp.UserID)
		c.Locals(UserRolesKey, resp.Roles)
		return c.Next()
	}
}
