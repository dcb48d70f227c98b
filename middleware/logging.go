package middleware

import (
	"time"

	"chess-matchmaking/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RequestLogger writes one structured line per request.
func RequestLogger(log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.IP()),
		}
		if id := UserID(c); id != "" {
			fields = append(fields, zap.String("user_id", id))
		}

		if status >= fiber.StatusInternalServerError {
			log.Warn("request failed", fields...)
		} else {
			log.Debug("request", fields...)
		}
		return err
	}
}
