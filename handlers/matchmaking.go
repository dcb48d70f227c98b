package handlers

import (
	"net"
	"strings"

	"chess-matchmaking/logger"
	"chess-matchmaking/middleware"
	"chess-matchmaking/models"
	"chess-matchmaking/services"

	"github.com/gofiber/fiber/v2"
)

type joinBody struct {
	SocketPort      *int `json:"socket_port"`
	SocketPortCamel *int `json:"socketPort"`
}

func (b joinBody) port() int {
	switch {
	case b.SocketPort != nil:
		return *b.SocketPort
	case b.SocketPortCamel != nil:
		return *b.SocketPortCamel
	}
	return 0
}

// clientIP prefers the first X-Forwarded-For hop set by the gateway. Some
// proxies write placeholders like "unknown" there; those are skipped.
func clientIP(c *fiber.Ctx) string {
	if fwd := c.Get(fiber.HeaderXForwardedFor); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
			return ip
		}
	}
	return c.IP()
}

func matchFoundBody(r *models.MatchResult) fiber.Map {
	return fiber.Map{
		"message":  "Match Found!",
		"gameId":   r.GameID,
		"opponent": r.Opponent,
		"color":    r.Color,
		"rating":   r.Rating,
	}
}

func renderStatus(c *fiber.Ctx, st *services.MatchStatus) error {
	if st.State == services.StateMatchFound {
		return c.Status(fiber.StatusOK).JSON(matchFoundBody(st.Match))
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status":  services.StateSearching,
		"message": "Searching for a match...",
	})
}

func SetupMatchmakingRoutes(router fiber.Router, mm *services.MatchmakingService, log *logger.Logger) {
	// 🔐 every matchmaking call acts on the caller's own queue entry
	group := router.Group("/matchmaking", middleware.UserContextMiddleware())

	group.Post("/join", func(c *fiber.Ctx) error {
		var body joinBody
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
			}
		}

		st, err := mm.Join(c.UserContext(), services.JoinRequest{
			PlayerID: middleware.UserID(c),
			IP:       clientIP(c),
			Port:     body.port(),
		})
		if err != nil {
			return writeError(c, log, err)
		}
		return renderStatus(c, st)
	})

	group.Get("/status", func(c *fiber.Ctx) error {
		st, err := mm.Status(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return writeError(c, log, err)
		}
		return renderStatus(c, st)
	})

	group.Delete("/leave", func(c *fiber.Ctx) error {
		if err := mm.Leave(c.UserContext(), middleware.UserID(c)); err != nil {
			return writeError(c, log, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	group.Get("/queue", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"size": mm.QueueSize()})
	})
}
