package models

import (
	"time"
)

// Player represents the players table. A player is created on first
// reference by username and never deleted; the counters are only ever
// touched by atomic increments when a game finishes.
type Player struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Wins      int       `json:"wins"`
	Losses    int       `json:"losses"`
	Draws     int       `json:"draws"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
