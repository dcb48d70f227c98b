package middleware

import (
	"crypto/subtle"
	"strings"

	"chess-matchmaking/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// GatewayAuthMiddleware validates the bearer token the API gateway attaches
// to every forwarded request. An empty expected token disables the check.
func GatewayAuthMiddleware(expectedToken string, log *logger.Logger) fiber.Handler {
	if expectedToken == "" {
		log.Warn("⚠️ gateway token not configured, gateway authentication disabled")
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			log.Debug("missing gateway token", zap.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "gateway authentication token missing",
			})
		}

		// Gateway may send the raw token without the Bearer prefix
		token := strings.TrimPrefix(authHeader, "Bearer ")

		if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
			log.Warn("🚫 invalid gateway token", zap.String("path", c.Path()), zap.String("ip", c.IP()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid gateway authentication token",
			})
		}
		return c.Next()
	}
}
