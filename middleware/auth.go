package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	UserIDKey    = "user_id"
	UserRolesKey = "user_roles"
)

// UserContextMiddleware reads the identity the gateway resolved from the
// player's credentials. Routes behind it require X-User-ID.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID, request must come through the gateway",
			})
		}

		var roles []string
		for _, r := range strings.Split(c.Get("X-User-Roles"), ",") {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, r)
			}
		}

		c.Locals(UserIDKey, userID)
		c.Locals(UserRolesKey, roles)
		return c.Next()
	}
}

// UserID returns the caller identity set by UserContextMiddleware or
// SSEAuthMiddleware, or "".
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(UserIDKey).(string)
	return id
}
