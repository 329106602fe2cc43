package models

import (
	"time"
)

// Game lifecycle states. A game only ever moves forward:
// open -> active -> finished.
const (
	StatusOpen     = "open"
	StatusActive   = "active"
	StatusFinished = "finished"
)

type Game struct {
	ID        string     `json:"id"`
	Player1ID string     `json:"player1_id"`
	Player2ID *string    `json:"player2_id"` // nil while the game is open
	Status    string     `json:"status"`
	WinnerID  *string    `json:"winner_id"` // nil for open, active and drawn games
	CreatedAt time.Time  `json:"created_at"`
	EndedAt   *time.Time `json:"ended_at"`
}

// OpenGame is the lobby row for the open-games listing, game joined
// with the host's username.
type OpenGame struct {
	ID              string    `json:"id"`
	Player1ID       string    `json:"player1_id"`
	Player1Username string    `json:"player1_username"`
	CreatedAt       time.Time `json:"created_at"`
}
