package models

import "time"

// QueuedPlayer is a waiter in the matchmaking queue. IP/Port are the
// rendezvous address the opponent uses to open the P2P channel.
type QueuedPlayer struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	IP          string    `json:"ip,omitempty"`
	Port        int       `json:"port,omitempty"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Opponent is what a matched player learns about the other side
type Opponent struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	IP          string `json:"ip,omitempty"`
	Port        int    `json:"port,omitempty"`
	Rating      int    `json:"rating"`
}

// MatchResult is delivered once to each paired player.
type MatchResult struct {
	GameID    string    `json:"gameId"`
	Color     Color     `json:"color"`
	Opponent  Opponent  `json:"opponent"`
	Rating    int       `json:"rating"`
	MatchedAt time.Time `json:"matched_at"`
}
