package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chess-matchmaking/logger"
	"chess-matchmaking/metrics"
	"chess-matchmaking/models"
	"chess-matchmaking/store"
	"chess-matchmaking/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GameService owns the durable game lifecycle: creation at pairing time and
// the single transition to finished.
type GameService struct {
	store         store.Store
	ratings       *RatingService
	notifications *NotificationService
	log           *logger.Logger
	retry         utils.RetryOptions
	now           func() time.Time
}

func NewGameService(s store.Store, ratings *RatingService, notifications *NotificationService, log *logger.Logger) *GameService {
	opts := utils.DefaultRetryOptions()
	opts.Classifier = func(err error) bool {
		return !expected(err) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return &GameService{
		store:         s,
		ratings:       ratings,
		notifications: notifications,
		log:           log,
		retry:         opts,
		now:           time.Now,
	}
}

// FinalizeResult is what the winning end-of-game report gets back.
type FinalizeResult struct {
	GameID   string                          `json:"updated"`
	WinnerID *string                         `json:"winner_id"`
	Result   string                          `json:"result"`
	Changes  map[string]*models.RatingChange `json:"rating_changes,omitempty"`
}

// CreateGame inserts a new game in waiting state.
func (s *GameService) CreateGame(ctx context.Context, whiteID, blackID, mode string) (*models.Game, error) {
	if mode == "" {
		mode = models.ModeP2PRandom
	}
	game := &models.Game{
		ID:            uuid.NewString(),
		WhitePlayerID: whiteID,
		BlackPlayerID: blackID,
		Mode:          mode,
		Status:        models.GameStatusWaiting,
	}
	if err := s.store.CreateGame(ctx, game); err != nil {
		return nil, fmt.Errorf("%w: create game: %v", ErrSystem, err)
	}
	return game, nil
}

// Finalize ends the game exactly once. Of any number of concurrent reports
// for the same game one wins; the rest get ErrAlreadyFinished and apply no
// rating change. The status flip and both rating updates commit together.
func (s *GameService) Finalize(ctx context.Context, gameID, callerID string, outcome models.Outcome) (*FinalizeResult, error) {
	start := time.Now()
	defer func() { metrics.FinalizeLatency.Observe(time.Since(start).Seconds()) }()

	if callerID == "" {
		return nil, ErrUnauthenticated
	}
	if !outcome.Valid() {
		return nil, fmt.Errorf("%w: outcome must be a draw or a winning color", ErrBadRequest)
	}

	var (
		game    *models.Game
		changes map[string]*models.RatingChange
	)
	err := utils.Retry(ctx, s.retry, func() error {
		return s.store.WithTx(ctx, func(tx store.Store) error {
			g, err := tx.GetGame(ctx, gameID)
			if errors.Is(err, store.ErrNotFound) {
				return ErrGameNotFound
			}
			if err != nil {
				return err
			}
			if !g.HasParticipant(callerID) {
				return ErrNotAPlayer
			}
			if g.Status == models.GameStatusFinished {
				return ErrAlreadyFinished
			}

			var winnerID *string
			if !outcome.Draw {
				w := g.PlayerOf(outcome.Winner)
				winnerID = &w
			}
			endedAt := s.now()
			ok, err := tx.FinalizeGame(ctx, g.ID, winnerID, endedAt)
			if err != nil {
				return err
			}
			if !ok {
				return ErrAlreadyFinished
			}
			g.Status = models.GameStatusFinished
			g.WinnerID = winnerID
			g.EndedAt = &endedAt

			changes = make(map[string]*models.RatingChange, 2)
			for _, color := range []models.Color{models.ColorWhite, models.ColorBlack} {
				playerID := g.PlayerOf(color)
				c, err := s.ratings.ApplyResult(ctx, tx, g.ID, playerID, outcome.ResultFor(color))
				if err != nil {
					return err
				}
				changes[playerID] = c
			}
			game = g
			return nil
		})
	})

	switch {
	case err == nil:
	case errors.Is(err, ErrConflict):
		metrics.FinalizeTotal.WithLabelValues("conflict").Inc()
		s.log.Info("finalize lost the race", zap.String("game_id", gameID), zap.String("caller", callerID))
		return nil, err
	case errors.Is(err, ErrForbidden):
		metrics.FinalizeTotal.WithLabelValues("forbidden").Inc()
		s.log.Warn("finalize by non-participant", zap.String("game_id", gameID), zap.String("caller", callerID))
		return nil, err
	case errors.Is(err, ErrNotFound):
		metrics.FinalizeTotal.WithLabelValues("not_found").Inc()
		return nil, err
	default:
		metrics.FinalizeTotal.WithLabelValues("error").Inc()
		s.log.Error("failed to finalize game", err, zap.String("game_id", gameID))
		return nil, fmt.Errorf("%w: finalize game %s", ErrSystem, gameID)
	}

	metrics.FinalizeTotal.WithLabelValues("updated").Inc()
	s.log.Info("🏁 game finished",
		zap.String("game_id", game.ID),
		zap.String("result", outcome.Label()),
		zap.String("reported_by", callerID),
	)

	if s.notifications != nil {
		s.notifications.GameFinished(ctx, game, outcome, changes)
	}

	return &FinalizeResult{
		GameID:   game.ID,
		WinnerID: game.WinnerID,
		Result:   outcome.Label(),
		Changes:  changes,
	}, nil
}

// MarkPlaying records that the peers connected. Only a waiting game moves.
func (s *GameService) MarkPlaying(ctx context.Context, gameID, callerID string) (*models.Game, error) {
	game, err := s.GetGame(ctx, gameID, callerID)
	if err != nil {
		return nil, err
	}
	ok, err := s.store.MarkPlaying(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("%w: mark playing: %v", ErrSystem, err)
	}
	if !ok {
		return nil, ErrNotPlayable
	}
	game.Status = models.GameStatusPlaying
	return game, nil
}

// GetGame returns the game if callerID played in it.
func (s *GameService) GetGame(ctx context.Context, gameID, callerID string) (*models.Game, error) {
	game, err := s.store.GetGame(ctx, gameID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get game: %v", ErrSystem, err)
	}
	if !game.HasParticipant(callerID) {
		return nil, ErrNotAPlayer
	}
	return game, nil
}

// PendingGameFor finds the newest waiting game of playerID. A client whose
// match result never arrived can still find its game this way.
func (s *GameService) PendingGameFor(ctx context.Context, playerID string) (*models.Game, error) {
	game, err := s.store.FindPendingGameForUser(ctx, playerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: pending game: %v", ErrSystem, err)
	}
	return game, nil
}

// OngoingGames lists games currently being played, newest first.
func (s *GameService) OngoingGames(ctx context.Context, limit int) ([]models.Game, error) {
	games, err := s.store.ListGamesByStatus(ctx, models.GameStatusPlaying, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: ongoing games: %v", ErrSystem, err)
	}
	return games, nil
}
