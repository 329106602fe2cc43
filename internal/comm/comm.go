package comm

import (
	"encoding/json"
	"time"
)

// Topic game events travel on between gamesvc, socketsvc and archivesvc.
const GameTopic = "game.service"

// Event types carried in WSMessage.Type.
const (
	TypeGameUpdate   = "game-update"
	TypeGameFinished = "game-finished"
	TypeWatchGame    = "watch-game"
)

// WSMessage is the envelope used on both the websocket and NATS legs.
type WSMessage struct {
	Type     string          `json:"type"` // e.g. "game-update", "watch-game"
	Data     json.RawMessage `json:"data"`
	SocketId string          `json:"socketid"`
}

// GameEvent is the payload of game-update and game-finished messages.
// The board is derived from the ledger at publish time; clients polling
// the API see the same view.
type GameEvent struct {
	GameID       string     `json:"game_id"`
	Status       string     `json:"status"`
	Board        [9]string  `json:"board"`
	WinnerSymbol string     `json:"winner_symbol"`
	WinnerID     string     `json:"winner_id,omitempty"`
	IsDraw       bool       `json:"is_draw"`
	MoveCount    int        `json:"move_count"`
	Player1ID    string     `json:"player1_id"`
	Player2ID    string     `json:"player2_id,omitempty"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
}

// WatchGame is the payload a websocket client sends to start receiving
// updates for a game.
type WatchGame struct {
	GameID string `json:"game_id"`
}
