package services

import (
	"context"
	"fmt"
	"time"

	"chess-matchmaking/logger"
	"chess-matchmaking/models"
	"chess-matchmaking/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type NotificationService struct {
	store store.Notifications
	log   *logger.Logger
}

func NewNotificationService(s store.Notifications, log *logger.Logger) *NotificationService {
	return &NotificationService{store: s, log: log}
}

// GameFinished tells both players how their game ended. Failures are logged
// and otherwise ignored; the game result is already committed.
func (s *NotificationService) GameFinished(ctx context.Context, game *models.Game, outcome models.Outcome, changes map[string]*models.RatingChange) {
	for _, color := range []models.Color{models.ColorWhite, models.ColorBlack} {
		playerID := game.PlayerOf(color)
		opponentID := game.PlayerOf(color.Opposite())

		content := fmt.Sprintf("Your game %s against %s ended: %s.", game.ID, opponentID, outcome.ResultFor(color))
		if c, ok := changes[playerID]; ok {
			content += fmt.Sprintf(" Rating %+d (now %d).", c.Delta, c.ScoreAfter)
		}

		n := &models.Notification{
			ID:         uuid.NewString(),
			ReceiverID: playerID,
			Title:      "Game over",
			Content:    content,
		}
		if err := s.store.CreateNotification(ctx, n); err != nil {
			s.log.Error("failed to create game notification", err,
				zap.String("game_id", game.ID), zap.String("player_id", playerID))
		}
	}
}

func (s *NotificationService) List(ctx context.Context, receiverID string, limit int) ([]models.Notification, error) {
	out, err := s.store.ListNotifications(ctx, receiverID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list notifications: %v", ErrSystem, err)
	}
	return out, nil
}

// Since returns what arrived for receiverID after the given instant, oldest
// first. Used by the notification stream.
func (s *NotificationService) Since(ctx context.Context, receiverID string, since time.Time) ([]models.Notification, error) {
	out, err := s.store.ListNotificationsSince(ctx, receiverID, since, 100)
	if err != nil {
		return nil, fmt.Errorf("%w: poll notifications: %v", ErrSystem, err)
	}
	return out, nil
}
