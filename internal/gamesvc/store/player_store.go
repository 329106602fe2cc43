package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mekides/tictactoe-services/internal/gamesvc/models"
)

type PlayerStore struct {
	db *pgxpool.Pool
}

func NewPlayerStore(db *pgxpool.Pool) *PlayerStore {
	return &PlayerStore{db: db}
}

// Upsert creates the player on first reference by username and returns
// the existing row on every later call. The ON CONFLICT clause makes
// the create idempotent under concurrent first references; the no-op
// update is there so RETURNING always yields a row.
func (s *PlayerStore) Upsert(ctx context.Context, username string) (*models.Player, error) {
	query := `
		INSERT INTO players (id, username)
		VALUES ($1, $2)
		ON CONFLICT (username) DO UPDATE SET updated_at = now()
		RETURNING id, username, wins, losses, draws, created_at, updated_at
	`

	p := &models.Player{}
	err := s.db.QueryRow(ctx, query, uuid.NewString(), username).Scan(
		&p.ID,
		&p.Username,
		&p.Wins,
		&p.Losses,
		&p.Draws,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert player %q: %w", username, err)
	}

	return p, nil
}

// GetByUsername returns nil, nil when no player has that username.
func (s *PlayerStore) GetByUsername(ctx context.Context, username string) (*models.Player, error) {
	query := `
		SELECT id, username, wins, losses, draws, created_at, updated_at
		FROM players
		WHERE username = $1
	`

	p := &models.Player{}
	err := s.db.QueryRow(ctx, query, username).Scan(
		&p.ID,
		&p.Username,
		&p.Wins,
		&p.Losses,
		&p.Draws,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get player by username: %w", err)
	}

	return p, nil
}

// GetByID returns nil, nil when the player does not exist.
func (s *PlayerStore) GetByID(ctx context.Context, id string) (*models.Player, error) {
	query := `
		SELECT id, username, wins, losses, draws, created_at, updated_at
		FROM players
		WHERE id = $1
	`

	p := &models.Player{}
	err := s.db.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Username,
		&p.Wins,
		&p.Losses,
		&p.Draws,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get player by ID: %w", err)
	}

	return p, nil
}

// ListByWins returns all players ordered by wins descending, for the
// leaderboard. Ties break on username so the ordering is stable.
func (s *PlayerStore) ListByWins(ctx context.Context) ([]*models.Player, error) {
	query := `
		SELECT id, username, wins, losses, draws, created_at, updated_at
		FROM players
		ORDER BY wins DESC, username ASC
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	var players []*models.Player
	for rows.Next() {
		p := &models.Player{}
		err := rows.Scan(
			&p.ID,
			&p.Username,
			&p.Wins,
			&p.Losses,
			&p.Draws,
			&p.CreatedAt,
			&p.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}

	return players, rows.Err()
}
