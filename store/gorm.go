package store

import (
	"context"
	"errors"
	"time"

	"chess-matchmaking/models"

	"github.com/rotisserie/eris"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements Store on top of gorm (postgres in production).
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates the tables this service owns.
func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(
		&models.User{},
		&models.Game{},
		&models.Rating{},
		&models.RatingChange{},
		&models.Notification{},
	)
}

// Ping checks the underlying connection.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return eris.Wrap(err, "failed to get sql.DB")
	}
	return eris.Wrap(sqlDB.PingContext(ctx), "failed to ping database")
}

func (s *GormStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func translate(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return eris.Wrap(ErrDuplicate, msg)
	}
	return eris.Wrap(err, msg)
}

func (s *GormStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, translate(err, "failed to get user")
	}
	return &u, nil
}

func (s *GormStore) UpsertUsers(ctx context.Context, users []models.User) (int, error) {
	if len(users) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "display_name", "email", "is_banned", "updated_at"}),
	}).Create(&users)
	if res.Error != nil {
		return 0, translate(res.Error, "failed to upsert users")
	}
	return int(res.RowsAffected), nil
}

func (s *GormStore) LatestUserUpdate(ctx context.Context) (time.Time, error) {
	var u models.User
	err := s.db.WithContext(ctx).Order("updated_at DESC").First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, translate(err, "failed to read latest user update")
	}
	return u.UpdatedAt, nil
}

func (s *GormStore) CreateGame(ctx context.Context, game *models.Game) error {
	return translate(s.db.WithContext(ctx).Create(game).Error, "failed to create game")
}

func (s *GormStore) GetGame(ctx context.Context, id string) (*models.Game, error) {
	var g models.Game
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&g).Error; err != nil {
		return nil, translate(err, "failed to get game")
	}
	return &g, nil
}

func (s *GormStore) FinalizeGame(ctx context.Context, id string, winnerID *string, endedAt time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Game{}).
		Where("id = ? AND status <> ?", id, models.GameStatusFinished).
		Updates(map[string]interface{}{
			"status":    models.GameStatusFinished,
			"winner_id": winnerID,
			"ended_at":  endedAt,
		})
	if res.Error != nil {
		return false, translate(res.Error, "failed to finalize game")
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) MarkPlaying(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Game{}).
		Where("id = ? AND status = ?", id, models.GameStatusWaiting).
		Update("status", models.GameStatusPlaying)
	if res.Error != nil {
		return false, translate(res.Error, "failed to mark game playing")
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) FindPendingGameForUser(ctx context.Context, playerID string) (*models.Game, error) {
	var g models.Game
	err := s.db.WithContext(ctx).
		Where("status = ? AND (white_player_id = ? OR black_player_id = ?)", models.GameStatusWaiting, playerID, playerID).
		Order("created_at DESC").
		First(&g).Error
	if err != nil {
		return nil, translate(err, "failed to find pending game")
	}
	return &g, nil
}

func (s *GormStore) ListGamesByStatus(ctx context.Context, status models.GameStatus, limit int) ([]models.Game, error) {
	var games []models.Game
	err := s.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at DESC").
		Limit(limit).
		Find(&games).Error
	return games, translate(err, "failed to list games")
}

func (s *GormStore) ListUnarchivedFinished(ctx context.Context, limit int) ([]models.Game, error) {
	var games []models.Game
	err := s.db.WithContext(ctx).
		Where("status = ? AND archived_at IS NULL", models.GameStatusFinished).
		Order("ended_at ASC").
		Limit(limit).
		Find(&games).Error
	return games, translate(err, "failed to list unarchived games")
}

func (s *GormStore) MarkArchived(ctx context.Context, id, key string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Game{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"archived_at": at, "archive_key": key})
	if res.Error != nil {
		return translate(res.Error, "failed to mark game archived")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) GetRating(ctx context.Context, playerID string) (*models.Rating, error) {
	var r models.Rating
	if err := s.db.WithContext(ctx).Where("player_id = ?", playerID).First(&r).Error; err != nil {
		return nil, translate(err, "failed to get rating")
	}
	return &r, nil
}

func (s *GormStore) EnsureRating(ctx context.Context, playerID string, defaultScore int) (*models.Rating, error) {
	r := models.Rating{PlayerID: playerID, Score: defaultScore}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&r).Error
	if err != nil {
		return nil, translate(err, "failed to ensure rating")
	}
	return s.GetRating(ctx, playerID)
}

func counterColumn(result models.Result) string {
	switch result {
	case models.ResultWin:
		return "wins"
	case models.ResultLoss:
		return "losses"
	}
	return "draws"
}

func (s *GormStore) ApplyRatingDelta(ctx context.Context, playerID string, delta int, result models.Result) (*models.Rating, error) {
	col := counterColumn(result)
	res := s.db.WithContext(ctx).Model(&models.Rating{}).
		Where("player_id = ?", playerID).
		Updates(map[string]interface{}{
			"score": gorm.Expr("score + ?", delta),
			col:     gorm.Expr(col + " + 1"),
		})
	if res.Error != nil {
		return nil, translate(res.Error, "failed to apply rating delta")
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.GetRating(ctx, playerID)
}

func (s *GormStore) CreateRatingChange(ctx context.Context, change *models.RatingChange) error {
	return translate(s.db.WithContext(ctx).Create(change).Error, "failed to record rating change")
}

func (s *GormStore) ListRatingChanges(ctx context.Context, playerID string, limit int) ([]models.RatingChange, error) {
	var changes []models.RatingChange
	err := s.db.WithContext(ctx).
		Where("player_id = ?", playerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&changes).Error
	return changes, translate(err, "failed to list rating changes")
}

func (s *GormStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	return translate(s.db.WithContext(ctx).Create(n).Error, "failed to create notification")
}

func (s *GormStore) ListNotifications(ctx context.Context, receiverID string, limit int) ([]models.Notification, error) {
	var out []models.Notification
	err := s.db.WithContext(ctx).
		Where("receiver_id = ?", receiverID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, translate(err, "failed to list notifications")
}

func (s *GormStore) ListNotificationsSince(ctx context.Context, receiverID string, since time.Time, limit int) ([]models.Notification, error) {
	var out []models.Notification
	err := s.db.WithContext(ctx).
		Where("receiver_id = ? AND created_at > ?", receiverID, since).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, translate(err, "failed to list new notifications")
}
