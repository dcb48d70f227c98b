package handlers

import (
	"chess-matchmaking/logger"
	"chess-matchmaking/middleware"
	"chess-matchmaking/models"
	"chess-matchmaking/services"

	"github.com/gofiber/fiber/v2"
)

type endGameBody struct {
	Result string       `json:"result"` // "draw", "white_wins" or "black_wins"
	Winner models.Color `json:"winner"`
}

func (b endGameBody) outcome() (models.Outcome, bool) {
	o := models.Outcome{Winner: b.Winner}
	switch b.Result {
	case "":
	case "draw":
		o.Draw = true
	case "white_wins", "black_wins":
		w := models.ColorWhite
		if b.Result == "black_wins" {
			w = models.ColorBlack
		}
		if o.Winner != "" && o.Winner != w {
			return o, false
		}
		o.Winner = w
	default:
		return o, false
	}
	return o, o.Valid()
}

// queryLimit reads ?limit=, falling back to def and capping at ceiling.
func queryLimit(c *fiber.Ctx, def, ceiling int) int {
	n := c.QueryInt("limit", def)
	if n <= 0 {
		return def
	}
	return min(n, ceiling)
}

func SetupGameRoutes(router fiber.Router, games *services.GameService, log *logger.Logger) {
	// 🔐 all game routes need the caller identity
	group := router.Group("/games", middleware.UserContextMiddleware())

	// static paths before /:id
	group.Get("/pending", func(c *fiber.Ctx) error {
		g, err := games.PendingGameFor(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return writeError(c, log, err)
		}
		return c.JSON(g)
	})

	group.Get("/ongoing", func(c *fiber.Ctx) error {
		list, err := games.OngoingGames(c.UserContext(), queryLimit(c, 50, 200))
		if err != nil {
			return writeError(c, log, err)
		}
		return c.JSON(fiber.Map{"games": list})
	})

	group.Get("/:id", func(c *fiber.Ctx) error {
		g, err := games.GetGame(c.UserContext(), c.Params("id"), middleware.UserID(c))
		if err != nil {
			return writeError(c, log, err)
		}
		return c.JSON(g)
	})

	group.Post("/:id/start", func(c *fiber.Ctx) error {
		g, err := games.MarkPlaying(c.UserContext(), c.Params("id"), middleware.UserID(c))
		if err != nil {
			return writeError(c, log, err)
		}
		return c.JSON(g)
	})

	group.Post("/:id/end", func(c *fiber.Ctx) error {
		var body endGameBody
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		outcome, ok := body.outcome()
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": `body must be {"result":"draw"} or {"winner":"white"|"black"}`,
			})
		}

		res, err := games.Finalize(c.UserContext(), c.Params("id"), middleware.UserID(c), outcome)
		if err != nil {
			return writeError(c, log, err)
		}
		return c.JSON(res)
	})
}
