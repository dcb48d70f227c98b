package models

import "time"

// Rating is one per player, created lazily with the default score.
type Rating struct {
	PlayerID  string    `gorm:"primaryKey;size:64" json:"player_id"`
	Score     int       `json:"score" gorm:"not null"`
	Wins      int       `json:"wins" gorm:"default:0"`
	Losses    int       `json:"losses" gorm:"default:0"`
	Draws     int       `json:"draws" gorm:"default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GamesPlayed is the number of finalized games that touched this rating
func (r *Rating) GamesPlayed() int {
	return r.Wins + r.Losses + r.Draws
}

// RatingChange records the adjustment applied to one player by one game.
// The (game, player) pair is unique so a game can never be applied twice.
type RatingChange struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	GameID     string    `gorm:"size:36;not null;uniqueIndex:idx_rating_change_game_player" json:"game_id"`
	PlayerID   string    `gorm:"size:64;not null;uniqueIndex:idx_rating_change_game_player;index" json:"player_id"`
	Result     Result    `gorm:"size:8;not null" json:"result"`
	Delta      int       `json:"delta"`
	ScoreAfter int       `json:"score_after"`
	CreatedAt  time.Time `json:"created_at"`
}
