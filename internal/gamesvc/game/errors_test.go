package game

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	err := E(KindOutOfTurn, "not your turn")
	assert.Equal(t, KindOutOfTurn, KindOf(err))
	assert.True(t, IsKind(err, KindOutOfTurn))
	assert.False(t, IsKind(err, KindForbidden))

	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := Wrap(KindCellOccupied, "cell already occupied", errors.New("duplicate key"))
	wrapped := fmt.Errorf("append failed: %w", err)

	assert.True(t, IsKind(wrapped, KindCellOccupied))

	var tagged *Error
	assert.True(t, errors.As(wrapped, &tagged))
	assert.ErrorContains(t, tagged, "duplicate key")
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "invalid_input: position must be between 0 and 8",
		E(KindInvalidInput, "position must be between 0 and 8").Error())
	assert.Equal(t, "not_found: game not found",
		Ef(KindNotFound, "game %s", "not found").Error())
}
