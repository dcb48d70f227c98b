// models/game.go
package models

import (
	"time"
)

type GameStatus string

const (
	GameStatusWaiting  GameStatus = "waiting"  // created, peers still connecting
	GameStatusPlaying  GameStatus = "playing"
	GameStatusFinished GameStatus = "finished" // terminal
)

const ModeP2PRandom = "p2p_random"

type Color string

const (
	ColorWhite Color = "white"
	ColorBlack Color = "black"
)

// Valid reports whether c is white or black.
func (c Color) Valid() bool {
	return c == ColorWhite || c == ColorBlack
}

// Opposite returns the other color.
func (c Color) Opposite() Color {
	if c == ColorWhite {
		return ColorBlack
	}
	return ColorWhite
}

type Game struct {
	ID            string     `json:"id" gorm:"primaryKey;size:36"`
	WhitePlayerID string     `json:"player_white_id" gorm:"size:64;index;not null"`
	BlackPlayerID string     `json:"player_black_id" gorm:"size:64;index;not null"`
	Mode          string     `json:"mode" gorm:"size:32;not null"`
	Status        GameStatus `json:"status" gorm:"size:16;index;not null"` // waiting | playing | finished
	WinnerID      *string    `json:"winner_id"`
	EndedAt       *time.Time `json:"ended_at"`

	// 📦 Set once the finished game has been uploaded to object storage
	ArchivedAt *time.Time `json:"archived_at,omitempty" gorm:"index"`
	ArchiveKey string     `json:"archive_key,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasParticipant reports whether playerID is white or black in this game.
func (g *Game) HasParticipant(playerID string) bool {
	return playerID != "" && (g.WhitePlayerID == playerID || g.BlackPlayerID == playerID)
}

// PlayerColor returns the color played by playerID, or "" if not a participant.
func (g *Game) PlayerColor(playerID string) Color {
	switch playerID {
	case g.WhitePlayerID:
		return ColorWhite
	case g.BlackPlayerID:
		return ColorBlack
	}
	return ""
}

// PlayerOf returns the id of the player holding color c.
func (g *Game) PlayerOf(c Color) string {
	if c == ColorWhite {
		return g.WhitePlayerID
	}
	return g.BlackPlayerID
}

// Outcome is how a game ended: a draw, or a win for one color.
type Outcome struct {
	Draw   bool
	Winner Color
}

func DrawOutcome() Outcome            { return Outcome{Draw: true} }
func WinOutcome(winner Color) Outcome { return Outcome{Winner: winner} }

// Valid reports whether exactly one of Draw / Winner is set.
func (o Outcome) Valid() bool {
	if o.Draw {
		return o.Winner == ""
	}
	return o.Winner.Valid()
}

// ResultFor returns the per-player label for the given color.
func (o Outcome) ResultFor(c Color) Result {
	switch {
	case o.Draw:
		return ResultDraw
	case o.Winner == c:
		return ResultWin
	default:
		return ResultLoss
	}
}

// Label is the summary reported back to clients.
func (o Outcome) Label() string {
	switch {
	case o.Draw:
		return "draw"
	case o.Winner == ColorWhite:
		return "white_wins"
	default:
		return "black_wins"
	}
}

type Result string

const (
	ResultWin  Result = "win"
	ResultLoss Result = "loss"
	ResultDraw Result = "draw"
)
