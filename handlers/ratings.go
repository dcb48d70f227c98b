package handlers

import (
	"chess-matchmaking/logger"
	"chess-matchmaking/middleware"
	"chess-matchmaking/services"

	"github.com/gofiber/fiber/v2"
)

func SetupRatingRoutes(router fiber.Router, ratings *services.RatingService, log *logger.Logger) {
	group := router.Group("/ratings", middleware.UserContextMiddleware())

	group.Get("/me", func(c *fiber.Ctx) error {
		r, err := ratings.GetRating(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return writeError(c, log, err)
		}
		return c.JSON(fiber.Map{
			"player_id":    r.PlayerID,
			"score":        r.Score,
			"wins":         r.Wins,
			"losses":       r.Losses,
			"draws":        r.Draws,
			"games_played": r.GamesPlayed(),
		})
	})

	group.Get("/me/history", func(c *fiber.Ctx) error {
		changes, err := ratings.History(c.UserContext(), middleware.UserID(c), queryLimit(c, 20, 100))
		if err != nil {
			return writeError(c, log, err)
		}
		return c.JSON(fiber.Map{"history": changes})
	})
}
