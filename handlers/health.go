package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pinger is anything /health should probe, e.g. the database or redis.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// SetupHealthRoutes registers GET /health. Every check must answer within
// two seconds for a 200.
func SetupHealthRoutes(app *fiber.App, queueSize func() int, checks map[string]Pinger) {
	app.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		status := fiber.StatusOK
		results := fiber.Map{}
		for name, p := range checks {
			if err := p.Ping(ctx); err != nil {
				results[name] = err.Error()
				status = fiber.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		body := fiber.Map{"status": "ok", "checks": results}
		if status != fiber.StatusOK {
			body["status"] = "degraded"
		}
		if queueSize != nil {
			body["queue_size"] = queueSize()
		}
		return c.Status(status).JSON(body)
	})
}
