package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mekides/tictactoe-services/internal/gamesvc/game"
	"github.com/mekides/tictactoe-services/internal/gamesvc/models"
)

type GameStore struct {
	db *pgxpool.Pool
}

func NewGameStore(db *pgxpool.Pool) *GameStore {
	return &GameStore{db: db}
}

// Create opens a new game hosted by player1.
func (s *GameStore) Create(ctx context.Context, player1ID string) (*models.Game, error) {
	query := `
		INSERT INTO games (id, player1_id, status)
		VALUES ($1, $2, $3)
		RETURNING id, player1_id, player2_id, status, winner_id, created_at, ended_at
	`

	g := &models.Game{}
	err := s.db.QueryRow(ctx, query, uuid.NewString(), player1ID, models.StatusOpen).Scan(
		&g.ID,
		&g.Player1ID,
		&g.Player2ID,
		&g.Status,
		&g.WinnerID,
		&g.CreatedAt,
		&g.EndedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	return g, nil
}

// GetByID returns nil, nil when the game does not exist.
func (s *GameStore) GetByID(ctx context.Context, id string) (*models.Game, error) {
	query := `
		SELECT id, player1_id, player2_id, status, winner_id, created_at, ended_at
		FROM games
		WHERE id = $1
	`

	g := &models.Game{}
	err := s.db.QueryRow(ctx, query, id).Scan(
		&g.ID,
		&g.Player1ID,
		&g.Player2ID,
		&g.Status,
		&g.WinnerID,
		&g.CreatedAt,
		&g.EndedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get game by ID: %w", err)
	}

	return g, nil
}

// Join sets player2 and flips the game to active in one guarded update.
// The status predicate makes the transition atomic: of two concurrent
// joins only one matches the open row, the other gets zero rows back
// and an InvalidState error.
func (s *GameStore) Join(ctx context.Context, gameID, player2ID string) (*models.Game, error) {
	query := `
		UPDATE games
		SET player2_id = $2, status = $3
		WHERE id = $1 AND status = $4
		RETURNING id, player1_id, player2_id, status, winner_id, created_at, ended_at
	`

	g := &models.Game{}
	err := s.db.QueryRow(ctx, query, gameID, player2ID, models.StatusActive, models.StatusOpen).Scan(
		&g.ID,
		&g.Player1ID,
		&g.Player2ID,
		&g.Status,
		&g.WinnerID,
		&g.CreatedAt,
		&g.EndedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, game.E(game.KindInvalidState, "game is not open")
		}
		return nil, fmt.Errorf("failed to join game: %w", err)
	}

	return g, nil
}

// Finish transitions an active game to finished and applies the stat
// increments in the same transaction. winnerID nil means a draw. The
// guarded game update serializes duplicate finish attempts (retries):
// the second one sees zero rows, the transaction rolls back and no
// counter moves twice. Increments are column arithmetic, never
// read-modify-write.
func (s *GameStore) Finish(ctx context.Context, gameID string, winnerID *string) (*models.Game, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin finish transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE games
		SET status = $2, winner_id = $3, ended_at = now()
		WHERE id = $1 AND status = $4
		RETURNING id, player1_id, player2_id, status, winner_id, created_at, ended_at
	`

	g := &models.Game{}
	err = tx.QueryRow(ctx, query, gameID, models.StatusFinished, winnerID, models.StatusActive).Scan(
		&g.ID,
		&g.Player1ID,
		&g.Player2ID,
		&g.Status,
		&g.WinnerID,
		&g.CreatedAt,
		&g.EndedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, game.E(game.KindInvalidState, "game is not active")
		}
		return nil, fmt.Errorf("failed to finish game: %w", err)
	}

	if g.Player2ID == nil {
		return nil, fmt.Errorf("finish on game %s with no second player", gameID)
	}

	if winnerID != nil {
		loserID := g.Player1ID
		if *winnerID == g.Player1ID {
			loserID = *g.Player2ID
		}
		if _, err := tx.Exec(ctx, `UPDATE players SET wins = wins + 1, updated_at = now() WHERE id = $1`, *winnerID); err != nil {
			return nil, fmt.Errorf("failed to increment wins: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE players SET losses = losses + 1, updated_at = now() WHERE id = $1`, loserID); err != nil {
			return nil, fmt.Errorf("failed to increment losses: %w", err)
		}
	} else {
		if _, err := tx.Exec(ctx, `UPDATE players SET draws = draws + 1, updated_at = now() WHERE id = ANY($1)`, []string{g.Player1ID, *g.Player2ID}); err != nil {
			return nil, fmt.Errorf("failed to increment draws: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit finish transaction: %w", err)
	}

	return g, nil
}

// ListOpen returns joinable games, newest first, for the lobby.
func (s *GameStore) ListOpen(ctx context.Context, limit int) ([]*models.OpenGame, error) {
	query := `
		SELECT g.id, g.player1_id, p.username, g.created_at
		FROM games g
		JOIN players p ON p.id = g.player1_id
		WHERE g.status = $1 AND g.player2_id IS NULL
		ORDER BY g.created_at DESC
		LIMIT $2
	`

	rows, err := s.db.Query(ctx, query, models.StatusOpen, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list open games: %w", err)
	}
	defer rows.Close()

	var games []*models.OpenGame
	for rows.Next() {
		g := &models.OpenGame{}
		err := rows.Scan(
			&g.ID,
			&g.Player1ID,
			&g.Player1Username,
			&g.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}

	return games, rows.Err()
}

// ListByPlayer returns every game the player took part in, newest first.
func (s *GameStore) ListByPlayer(ctx context.Context, playerID string) ([]*models.Game, error) {
	query := `
		SELECT id, player1_id, player2_id, status, winner_id, created_at, ended_at
		FROM games
		WHERE player1_id = $1 OR player2_id = $1
		ORDER BY created_at DESC
	`

	rows, err := s.db.Query(ctx, query, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list games for player: %w", err)
	}
	defer rows.Close()

	var games []*models.Game
	for rows.Next() {
		g := &models.Game{}
		err := rows.Scan(
			&g.ID,
			&g.Player1ID,
			&g.Player2ID,
			&g.Status,
			&g.WinnerID,
			&g.CreatedAt,
			&g.EndedAt,
		)
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}

	return games, rows.Err()
}
