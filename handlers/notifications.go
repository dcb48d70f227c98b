package handlers

import (
	"bufio"
	"context"
	"fmt"
	"time"

	"chess-matchmaking/logger"
	"chess-matchmaking/middleware"
	"chess-matchmaking/services"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// NotificationRoutes configures the notification endpoints. A nil
// Validator leaves the SSE stream unregistered.
type NotificationRoutes struct {
	Service      *services.NotificationService
	Validator    middleware.TokenValidator
	PollInterval time.Duration
	Log          *logger.Logger
}

func SetupNotificationRoutes(router fiber.Router, r NotificationRoutes) {
	if r.PollInterval <= 0 {
		r.PollInterval = 2 * time.Second
	}
	group := router.Group("/notifications")

	group.Get("/", middleware.UserContextMiddleware(), func(c *fiber.Ctx) error {
		list, err := r.Service.List(c.UserContext(), middleware.UserID(c), queryLimit(c, 20, 100))
		if err != nil {
			return writeError(c, r.Log, err)
		}
		return c.JSON(fiber.Map{"notifications": list})
	})

	if r.Validator == nil {
		return
	}

	// EventSource cannot send headers, so the stream authenticates by query token.
	group.Get("/stream", middleware.SSEAuthMiddleware(r.Validator, r.Log), func(c *fiber.Ctx) error {
		userID := middleware.UserID(c)
		done := c.Context().Done()

		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("X-Accel-Buffering", "no") // nginx

		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go func() {
				select {
				case <-done:
					cancel()
				case <-ctx.Done():
				}
			}()
			r.stream(ctx, w, userID)
		})
		return nil
	})
}

// stream pushes every notification created for userID after the stream
// opened, polling the store every PollInterval. It returns when ctx ends or
// the client goes away.
func (r NotificationRoutes) stream(ctx context.Context, w *bufio.Writer, userID string) {
	var cursor time.Time
	latest, err := r.Service.List(ctx, userID, 1)
	if err != nil {
		r.Log.Warn("SSE cursor init failed", zap.String("user_id", userID), zap.Error(err))
	} else if len(latest) > 0 {
		cursor = latest[0].CreatedAt
	}

	// initial keepalive
	w.WriteString(":\n\n")
	if err := w.Flush(); err != nil {
		return
	}

	ticker := time.NewTicker(r.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fresh, err := r.Service.Since(ctx, userID, cursor)
			if err != nil {
				r.Log.Warn("SSE poll failed", zap.String("user_id", userID), zap.Error(err))
				continue
			}
			if len(fresh) == 0 {
				continue
			}
			cursor = fresh[len(fresh)-1].CreatedAt

			for _, n := range fresh {
				payload, err := json.Marshal(n)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: notification\ndata: %s\n\n", payload)
			}
			if err := w.Flush(); err != nil {
				// client disconnected
				return
			}
		}
	}
}
