package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mekides/tictactoe-services/internal/gamesvc/game"
	"github.com/mekides/tictactoe-services/internal/gamesvc/models"
)

// LeaderboardEntry is a player row with the derived win rate. The rate
// is never stored; it is computed from the counters on every read.
type LeaderboardEntry struct {
	PlayerID string `json:"player_id"`
	Username string `json:"username"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
	Draws    int    `json:"draws"`
	WinRate  string `json:"win_rate"`
}

type PlayerService struct {
	players PlayerStore
}

func NewPlayerService(players PlayerStore) *PlayerService {
	return &PlayerService{players: players}
}

// Upsert creates the player on first reference and is a no-op lookup
// on every later call.
func (s *PlayerService) Upsert(ctx context.Context, username string) (*models.Player, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, game.E(game.KindInvalidInput, "username is required")
	}
	return s.players.Upsert(ctx, username)
}

// Get returns the player record for a username.
func (s *PlayerService) Get(ctx context.Context, username string) (*models.Player, error) {
	player, err := s.players.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if player == nil {
		return nil, game.E(game.KindNotFound, "player not found")
	}
	return player, nil
}

// Leaderboard returns all players ordered by wins descending with the
// derived win rate rendered fixed-point.
func (s *PlayerService) Leaderboard(ctx context.Context) ([]*LeaderboardEntry, error) {
	players, err := s.players.ListByWins(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]*LeaderboardEntry, 0, len(players))
	for _, p := range players {
		entries = append(entries, &LeaderboardEntry{
			PlayerID: p.ID,
			Username: p.Username,
			Wins:     p.Wins,
			Losses:   p.Losses,
			Draws:    p.Draws,
			WinRate:  WinRate(p),
		})
	}

	return entries, nil
}

// WinRate is wins over total games played, "0.000" when the player has
// not finished a game yet.
func WinRate(p *models.Player) string {
	total := p.Wins + p.Losses + p.Draws
	if total == 0 {
		return decimal.Zero.StringFixed(3)
	}
	return decimal.NewFromInt(int64(p.Wins)).
		Div(decimal.NewFromInt(int64(total))).
		StringFixed(3)
}
