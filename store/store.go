// Package store holds the durable records the matchmaking core reads and
// writes: users, games, ratings and notifications.
package store

import (
	"context"
	"errors"
	"time"

	"chess-matchmaking/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

type Users interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	// UpsertUsers inserts or refreshes user snapshots and returns how many were written.
	UpsertUsers(ctx context.Context, users []models.User) (int, error)
	// LatestUserUpdate returns the newest UpdatedAt, or the zero time when empty.
	LatestUserUpdate(ctx context.Context) (time.Time, error)
}

type Games interface {
	CreateGame(ctx context.Context, game *models.Game) error
	GetGame(ctx context.Context, id string) (*models.Game, error)
	// FinalizeGame moves a game to finished only if it is not finished yet.
	// It reports false, with no error, when another caller got there first.
	FinalizeGame(ctx context.Context, id string, winnerID *string, endedAt time.Time) (bool, error)
	// MarkPlaying moves a waiting game to playing; false if it was not waiting.
	MarkPlaying(ctx context.Context, id string) (bool, error)
	FindPendingGameForUser(ctx context.Context, playerID string) (*models.Game, error)
	ListGamesByStatus(ctx context.Context, status models.GameStatus, limit int) ([]models.Game, error)
	ListUnarchivedFinished(ctx context.Context, limit int) ([]models.Game, error)
	MarkArchived(ctx context.Context, id, key string, at time.Time) error
}

type Ratings interface {
	GetRating(ctx context.Context, playerID string) (*models.Rating, error)
	// EnsureRating creates a rating with defaultScore if none exists and returns the stored one.
	EnsureRating(ctx context.Context, playerID string, defaultScore int) (*models.Rating, error)
	// ApplyRatingDelta atomically adds delta to the score and bumps the counter for result.
	ApplyRatingDelta(ctx context.Context, playerID string, delta int, result models.Result) (*models.Rating, error)
	CreateRatingChange(ctx context.Context, change *models.RatingChange) error
	ListRatingChanges(ctx context.Context, playerID string, limit int) ([]models.RatingChange, error)
}

type Notifications interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, receiverID string, limit int) ([]models.Notification, error)
	// ListNotificationsSince returns notifications created after since, oldest first.
	ListNotificationsSince(ctx context.Context, receiverID string, since time.Time, limit int) ([]models.Notification, error)
}

// Store is the full collaborator contract. WithTx runs fn atomically: either
// every write made through tx is kept, or none is.
type Store interface {
	Users
	Games
	Ratings
	Notifications
	WithTx(ctx context.Context, fn func(tx Store) error) error
}
