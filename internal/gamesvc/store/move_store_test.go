package store

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/mekides/tictactoe-services/internal/gamesvc/game"
)

func TestTranslateAppendError(t *testing.T) {
	uniqueErr := &pgconn.PgError{
		Code:           pgUniqueViolation,
		ConstraintName: "moves_game_cell_key",
	}

	translated := translateAppendError(uniqueErr)
	assert.NotNil(t, translated)
	assert.True(t, game.IsKind(translated, game.KindCellOccupied))
	assert.ErrorContains(t, translated, "cell already occupied")

	// the driver error stays reachable for logging
	var pgErr *pgconn.PgError
	assert.True(t, errors.As(translated, &pgErr))
}

func TestTranslateAppendErrorPassesThroughOthers(t *testing.T) {
	assert.Nil(t, translateAppendError(errors.New("connection refused")))
	assert.Nil(t, translateAppendError(&pgconn.PgError{Code: "23503"})) // foreign key violation is not a taken cell
}
