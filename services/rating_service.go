package services

import (
	"context"
	"errors"
	"fmt"

	"chess-matchmaking/models"
	"chess-matchmaking/store"

	"github.com/google/uuid"
)

// RatingRules is the fixed adjustment applied per result.
type RatingRules struct {
	Default   int
	WinDelta  int
	LossDelta int
	DrawDelta int
}

var DefaultRatingRules = RatingRules{
	Default:   1200,
	WinDelta:  10,
	LossDelta: -10,
	DrawDelta: 0,
}

// Delta returns the score change for result.
func (r RatingRules) Delta(result models.Result) int {
	switch result {
	case models.ResultWin:
		return r.WinDelta
	case models.ResultLoss:
		return r.LossDelta
	}
	return r.DrawDelta
}

type RatingService struct {
	store store.Store
	rules RatingRules
}

func NewRatingService(s store.Store, rules RatingRules) *RatingService {
	return &RatingService{store: s, rules: rules}
}

// EnsureExists creates the default rating for playerID if there is none.
func (s *RatingService) EnsureExists(ctx context.Context, playerID string) (*models.Rating, error) {
	r, err := s.store.EnsureRating(ctx, playerID, s.rules.Default)
	if err != nil {
		return nil, fmt.Errorf("%w: ensure rating for %s: %v", ErrSystem, playerID, err)
	}
	return r, nil
}

// ApplyResult adjusts one player's rating for a finalized game and records
// the change. It runs against tx so the caller decides the transaction.
func (s *RatingService) ApplyResult(ctx context.Context, tx store.Ratings, gameID, playerID string, result models.Result) (*models.RatingChange, error) {
	if _, err := tx.EnsureRating(ctx, playerID, s.rules.Default); err != nil {
		return nil, err
	}

	delta := s.rules.Delta(result)
	updated, err := tx.ApplyRatingDelta(ctx, playerID, delta, result)
	if err != nil {
		return nil, err
	}

	change := &models.RatingChange{
		ID:         uuid.NewString(),
		GameID:     gameID,
		PlayerID:   playerID,
		Result:     result,
		Delta:      delta,
		ScoreAfter: updated.Score,
	}
	if err := tx.CreateRatingChange(ctx, change); err != nil {
		return nil, err
	}
	return change, nil
}

// GetRating returns the player's rating, or the default one for a player
// who has not played yet.
func (s *RatingService) GetRating(ctx context.Context, playerID string) (*models.Rating, error) {
	r, err := s.store.GetRating(ctx, playerID)
	if errors.Is(err, store.ErrNotFound) {
		return &models.Rating{PlayerID: playerID, Score: s.rules.Default}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get rating: %v", ErrSystem, err)
	}
	return r, nil
}

func (s *RatingService) History(ctx context.Context, playerID string, limit int) ([]models.RatingChange, error) {
	changes, err := s.store.ListRatingChanges(ctx, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: rating history: %v", ErrSystem, err)
	}
	return changes, nil
}
