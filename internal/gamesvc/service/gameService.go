package service

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/mekides/tictactoe-services/internal/comm"
	"github.com/mekides/tictactoe-services/internal/gamesvc/game"
	"github.com/mekides/tictactoe-services/internal/gamesvc/models"
	"github.com/mekides/tictactoe-services/internal/gamesvc/rules"
)

// openGamesLimit bounds the lobby listing.
const openGamesLimit = 50

// GameStore is the persistence surface GameService needs for games.
type GameStore interface {
	Create(ctx context.Context, player1ID string) (*models.Game, error)
	GetByID(ctx context.Context, id string) (*models.Game, error)
	Join(ctx context.Context, gameID, player2ID string) (*models.Game, error)
	Finish(ctx context.Context, gameID string, winnerID *string) (*models.Game, error)
	ListOpen(ctx context.Context, limit int) ([]*models.OpenGame, error)
	ListByPlayer(ctx context.Context, playerID string) ([]*models.Game, error)
}

// MoveStore is the append-only move ledger.
type MoveStore interface {
	Append(ctx context.Context, gameID, playerID string, position int) (*models.Move, error)
	List(ctx context.Context, gameID string) ([]models.Move, error)
}

// PlayerStore is the persistence surface for player records.
type PlayerStore interface {
	Upsert(ctx context.Context, username string) (*models.Player, error)
	GetByUsername(ctx context.Context, username string) (*models.Player, error)
	GetByID(ctx context.Context, id string) (*models.Player, error)
	ListByWins(ctx context.Context) ([]*models.Player, error)
}

// EventPublisher pushes best-effort game events to the socket relay.
// Implementations must never fail the request path.
type EventPublisher interface {
	GameUpdated(ev comm.GameEvent)
	GameFinished(ev comm.GameEvent)
}

// Snapshot is a point-in-time view of one game, board always derived
// fresh from the ledger at read time.
type Snapshot struct {
	Game         *models.Game   `json:"game"`
	Player1      *models.Player `json:"player1"`
	Player2      *models.Player `json:"player2"`
	Moves        []models.Move  `json:"moves"`
	Board        [9]string      `json:"board"`
	WinnerSymbol string         `json:"winner_symbol"`
	IsDraw       bool           `json:"is_draw"`
}

// HistoryEntry is one game in a player's history with the outcome
// derived relative to that player.
type HistoryEntry struct {
	GameID       string     `json:"game_id"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	EndedAt      *time.Time `json:"ended_at"`
	WinnerSymbol string     `json:"winner_symbol"`
	IsDraw       bool       `json:"is_draw"`
	MoveCount    int        `json:"move_count"`
	Outcome      string     `json:"outcome"` // won, lost, draw or in_progress
}

type GameService struct {
	games   GameStore
	moves   MoveStore
	players PlayerStore
	events  EventPublisher
}

func NewGameService(games GameStore, moves MoveStore, players PlayerStore, events EventPublisher) *GameService {
	return &GameService{
		games:   games,
		moves:   moves,
		players: players,
		events:  events,
	}
}

// Create opens a new game hosted by the given username. The host is
// upserted, so the first game a player ever creates also creates the
// player.
func (s *GameService) Create(ctx context.Context, username string) (*models.Game, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, game.E(game.KindInvalidInput, "username is required")
	}

	host, err := s.players.Upsert(ctx, username)
	if err != nil {
		return nil, err
	}

	return s.games.Create(ctx, host.ID)
}

// Join adds a second player to an open game and activates it. The
// joiner is upserted by username. The open-status pre-check gives the
// friendly error; the store's guarded update is what actually decides
// a race between two joiners.
func (s *GameService) Join(ctx context.Context, gameID, username string) (*models.Game, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, game.E(game.KindInvalidInput, "username is required")
	}

	g, err := s.games.GetByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, game.E(game.KindNotFound, "game not found")
	}
	if g.Status != models.StatusOpen {
		return nil, game.E(game.KindInvalidState, "game is not open")
	}

	joiner, err := s.players.Upsert(ctx, username)
	if err != nil {
		return nil, err
	}
	if joiner.ID == g.Player1ID {
		return nil, game.E(game.KindInvalidInput, "cannot join own game")
	}

	joined, err := s.games.Join(ctx, gameID, joiner.ID)
	if err != nil {
		return nil, err
	}

	s.publishUpdate(ctx, joined)

	return joined, nil
}

// SubmitMove runs the full move contract: validation in precondition
// order, ledger append, terminal detection and the finished-game
// updates. Turn order is a pure function of ledger length, so the
// engine carries no "current turn" field that could go stale.
func (s *GameService) SubmitMove(ctx context.Context, gameID, username string, position int) (string, error) {
	username = strings.TrimSpace(username)

	if position < 0 || position > 8 {
		return "", game.E(game.KindInvalidInput, "position must be between 0 and 8")
	}
	if username == "" {
		return "", game.E(game.KindInvalidInput, "username is required")
	}

	g, err := s.games.GetByID(ctx, gameID)
	if err != nil {
		return "", err
	}
	if g == nil {
		return "", game.E(game.KindNotFound, "game not found")
	}
	if g.Status != models.StatusActive {
		return "", game.E(game.KindInvalidState, "game is not active")
	}

	player, err := s.players.GetByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if player == nil {
		return "", game.E(game.KindNotFound, "player not found")
	}

	if player.ID != g.Player1ID && (g.Player2ID == nil || player.ID != *g.Player2ID) {
		return "", game.E(game.KindForbidden, "player is not part of this game")
	}

	moves, err := s.moves.List(ctx, gameID)
	if err != nil {
		return "", err
	}

	// player1 moves on even ledger lengths, player2 on odd.
	expectedID := g.Player1ID
	if len(moves)%2 == 1 {
		expectedID = *g.Player2ID
	}
	if player.ID != expectedID {
		return "", game.E(game.KindOutOfTurn, "not your turn")
	}

	board := rules.BoardFromMoves(moves, g.Player1ID, *g.Player2ID)
	if board[position] != rules.Empty {
		return "", game.E(game.KindCellOccupied, "cell already occupied")
	}

	// The append can still lose a race the checks above could not see;
	// the store translates the unique violation to CellOccupied.
	move, err := s.moves.Append(ctx, gameID, player.ID, position)
	if err != nil {
		return "", err
	}

	all := append(moves, *move)
	newBoard := rules.BoardFromMoves(all, g.Player1ID, *g.Player2ID)
	winner := rules.Winner(newBoard)

	if winner == rules.Empty && !rules.IsDraw(newBoard) {
		s.publishUpdate(ctx, g)
		return move.ID, nil
	}

	var winnerID *string
	switch winner {
	case rules.X:
		winnerID = &g.Player1ID
	case rules.O:
		winnerID = g.Player2ID
	}

	finished, err := s.games.Finish(ctx, gameID, winnerID)
	if err != nil {
		// A lost finish race means a retry already completed the game;
		// the move itself landed, so the request still succeeded.
		if game.IsKind(err, game.KindInvalidState) {
			log.Warnf("game %s already finished, skipping stat update", gameID)
			return move.ID, nil
		}
		return "", err
	}

	s.publishFinished(finished, newBoard, winner, len(all))

	return move.ID, nil
}

// Snapshot builds the game view the polling clients consume. The board
// is always recomputed from the ledger, never cached, so a read issued
// right after a move sees that move.
func (s *GameService) Snapshot(ctx context.Context, gameID string) (*Snapshot, error) {
	g, err := s.games.GetByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, game.E(game.KindNotFound, "game not found")
	}

	player1, err := s.players.GetByID(ctx, g.Player1ID)
	if err != nil {
		return nil, err
	}

	var player2 *models.Player
	if g.Player2ID != nil {
		player2, err = s.players.GetByID(ctx, *g.Player2ID)
		if err != nil {
			return nil, err
		}
	}

	moves, err := s.moves.List(ctx, gameID)
	if err != nil {
		return nil, err
	}

	player2ID := ""
	if g.Player2ID != nil {
		player2ID = *g.Player2ID
	}
	board := rules.BoardFromMoves(moves, g.Player1ID, player2ID)

	return &Snapshot{
		Game:         g,
		Player1:      player1,
		Player2:      player2,
		Moves:        moves,
		Board:        board.Strings(),
		WinnerSymbol: string(rules.Winner(board)),
		IsDraw:       rules.IsDraw(board),
	}, nil
}

// ListOpen returns the joinable games for the lobby, newest first.
func (s *GameService) ListOpen(ctx context.Context) ([]*models.OpenGame, error) {
	return s.games.ListOpen(ctx, openGamesLimit)
}

// History lists the player's games newest first, each with the outcome
// from that player's point of view.
func (s *GameService) History(ctx context.Context, username string) ([]*HistoryEntry, error) {
	player, err := s.players.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if player == nil {
		return nil, game.E(game.KindNotFound, "player not found")
	}

	gamesList, err := s.games.ListByPlayer(ctx, player.ID)
	if err != nil {
		return nil, err
	}

	entries := make([]*HistoryEntry, 0, len(gamesList))
	for _, g := range gamesList {
		moves, err := s.moves.List(ctx, g.ID)
		if err != nil {
			return nil, err
		}

		player2ID := ""
		if g.Player2ID != nil {
			player2ID = *g.Player2ID
		}
		board := rules.BoardFromMoves(moves, g.Player1ID, player2ID)
		winner := rules.Winner(board)

		outcome := "in_progress"
		if g.Status == models.StatusFinished {
			switch {
			case g.WinnerID == nil:
				outcome = "draw"
			case *g.WinnerID == player.ID:
				outcome = "won"
			default:
				outcome = "lost"
			}
		}

		entries = append(entries, &HistoryEntry{
			GameID:       g.ID,
			Status:       g.Status,
			CreatedAt:    g.CreatedAt,
			EndedAt:      g.EndedAt,
			WinnerSymbol: string(winner),
			IsDraw:       rules.IsDraw(board),
			MoveCount:    len(moves),
			Outcome:      outcome,
		})
	}

	return entries, nil
}

func (s *GameService) publishUpdate(ctx context.Context, g *models.Game) {
	if s.events == nil {
		return
	}
	ev, err := s.buildEvent(ctx, g.ID)
	if err != nil {
		log.Warnf("skipping game update event for %s: %v", g.ID, err)
		return
	}
	s.events.GameUpdated(*ev)
}

func (s *GameService) publishFinished(g *models.Game, board rules.Board, winner rules.Cell, moveCount int) {
	if s.events == nil {
		return
	}
	ev := &comm.GameEvent{
		GameID:       g.ID,
		Status:       g.Status,
		Board:        board.Strings(),
		WinnerSymbol: string(winner),
		IsDraw:       rules.IsDraw(board),
		MoveCount:    moveCount,
		Player1ID:    g.Player1ID,
		EndedAt:      g.EndedAt,
	}
	if g.Player2ID != nil {
		ev.Player2ID = *g.Player2ID
	}
	if g.WinnerID != nil {
		ev.WinnerID = *g.WinnerID
	}
	s.events.GameFinished(*ev)
}

// buildEvent derives a fresh event payload from the ledger, same as a
// snapshot read would.
func (s *GameService) buildEvent(ctx context.Context, gameID string) (*comm.GameEvent, error) {
	g, err := s.games.GetByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, game.E(game.KindNotFound, "game not found")
	}

	moves, err := s.moves.List(ctx, gameID)
	if err != nil {
		return nil, err
	}

	player2ID := ""
	if g.Player2ID != nil {
		player2ID = *g.Player2ID
	}
	board := rules.BoardFromMoves(moves, g.Player1ID, player2ID)
	winner := rules.Winner(board)

	ev := &comm.GameEvent{
		GameID:       g.ID,
		Status:       g.Status,
		Board:        board.Strings(),
		WinnerSymbol: string(winner),
		IsDraw:       rules.IsDraw(board),
		MoveCount:    len(moves),
		Player1ID:    g.Player1ID,
		Player2ID:    player2ID,
		EndedAt:      g.EndedAt,
	}
	if g.WinnerID != nil {
		ev.WinnerID = *g.WinnerID
	}
	return ev, nil
}
