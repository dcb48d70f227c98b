package handlers

import (
	"errors"

	"chess-matchmaking/logger"
	"chess-matchmaking/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// statusFor maps a service sentinel to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		return fiber.StatusUnauthorized
	case errors.Is(err, services.ErrBadRequest):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// writeError renders err as {"error": ...}. Internal failures never leak
// their message to the client.
func writeError(c *fiber.Ctx, log *logger.Logger, err error) error {
	status := statusFor(err)
	fields := []zap.Field{zap.String("path", c.Path()), zap.Int("status", status), zap.Error(err)}

	switch status {
	case fiber.StatusInternalServerError:
		log.Error("request failed", err, zap.String("path", c.Path()))
		return c.Status(status).JSON(fiber.Map{"error": "internal server error"})
	case fiber.StatusConflict:
		log.Info("conflict", fields...)
	default:
		log.Debug("request rejected", fields...)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
