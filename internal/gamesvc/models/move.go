package models

import (
	"time"
)

// Move is one entry of the append-only move ledger. Rows are immutable;
// the (game_id, position) unique constraint is what keeps two players
// out of the same cell under concurrent requests.
type Move struct {
	ID        string    `json:"id"`
	GameID    string    `json:"game_id"`
	PlayerID  string    `json:"player_id"`
	Position  int       `json:"position"`
	Timestamp time.Time `json:"timestamp"`
}
