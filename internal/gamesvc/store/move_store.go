package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mekides/tictactoe-services/internal/gamesvc/game"
	"github.com/mekides/tictactoe-services/internal/gamesvc/models"
)

// pgUniqueViolation is the SQLSTATE for a unique constraint violation.
const pgUniqueViolation = "23505"

type MoveStore struct {
	db *pgxpool.Pool
}

func NewMoveStore(db *pgxpool.Pool) *MoveStore {
	return &MoveStore{db: db}
}

// Append inserts one ledger row. The moves_game_cell_key unique
// constraint on (game_id, position) is the load-bearing backstop
// against double occupancy: when two writers race for the same cell
// the loser's insert fails here and surfaces as CellOccupied. Rows are
// never updated or deleted.
func (s *MoveStore) Append(ctx context.Context, gameID, playerID string, position int) (*models.Move, error) {
	query := `
		INSERT INTO moves (id, game_id, player_id, position)
		VALUES ($1, $2, $3, $4)
		RETURNING id, game_id, player_id, position, ts
	`

	m := &models.Move{}
	err := s.db.QueryRow(ctx, query, uuid.NewString(), gameID, playerID, position).Scan(
		&m.ID,
		&m.GameID,
		&m.PlayerID,
		&m.Position,
		&m.Timestamp,
	)
	if err != nil {
		if translated := translateAppendError(err); translated != nil {
			return nil, translated
		}
		return nil, fmt.Errorf("failed to append move: %w", err)
	}

	return m, nil
}

// translateAppendError maps a unique violation on the (game_id,
// position) constraint to the domain CellOccupied error. Retrying the
// insert would not help, the cell is genuinely taken.
func translateAppendError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return game.Wrap(game.KindCellOccupied, "cell already occupied", err)
	}
	return nil
}

// List returns the full ledger for a game ordered by timestamp (id as
// tie-break). Reads are restartable; callers re-read whenever they
// need to recompute the board.
func (s *MoveStore) List(ctx context.Context, gameID string) ([]models.Move, error) {
	query := `
		SELECT id, game_id, player_id, position, ts
		FROM moves
		WHERE game_id = $1
		ORDER BY ts ASC, id ASC
	`

	rows, err := s.db.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list moves: %w", err)
	}
	defer rows.Close()

	var moves []models.Move
	for rows.Next() {
		var m models.Move
		err := rows.Scan(
			&m.ID,
			&m.GameID,
			&m.PlayerID,
			&m.Position,
			&m.Timestamp,
		)
		if err != nil {
			return nil, err
		}
		moves = append(moves, m)
	}

	return moves, rows.Err()
}
