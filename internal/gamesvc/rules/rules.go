// Package rules holds the pure tic-tac-toe rule engine: board topology,
// win detection and board reconstruction from the move ledger. Nothing
// here touches storage or transport.
package rules

import (
	"sort"

	"github.com/mekides/tictactoe-services/internal/gamesvc/models"
)

// Cell is a single board cell occupant.
type Cell string

const (
	Empty Cell = ""
	X     Cell = "X"
	O     Cell = "O"
)

// Board is the 9-cell grid, row-major:
//
//	0 1 2
//	3 4 5
//	6 7 8
type Board [9]Cell

// WinLines are the 8 winning index triples: 3 rows, 3 columns,
// 2 diagonals. Winner scans them in this order.
var WinLines = [8][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// BoardFromMoves rebuilds the board from ledger moves. Moves are sorted
// by timestamp ascending (id as tie-break, so any read order of the
// ledger produces the same board); player1 always plays X, player2
// always plays O. A move only lands on an empty cell - the ledger's
// uniqueness constraint should make the occupied case unreachable, but
// the board never trusts that.
func BoardFromMoves(moves []models.Move, player1ID, player2ID string) Board {
	sorted := make([]models.Move, len(moves))
	copy(sorted, moves)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var board Board
	for _, m := range sorted {
		if m.Position < 0 || m.Position > 8 {
			continue
		}
		if board[m.Position] != Empty {
			continue
		}
		if m.PlayerID == player1ID {
			board[m.Position] = X
		} else {
			board[m.Position] = O
		}
	}
	return board
}

// Winner returns the symbol occupying a full winning line, or Empty if
// no line is complete. Lines are scanned in WinLines order and the
// first match wins, which keeps the result deterministic even for
// boards that a correct ledger could never produce.
func Winner(b Board) Cell {
	for _, line := range WinLines {
		a, m, z := b[line[0]], b[line[1]], b[line[2]]
		if a != Empty && a == m && a == z {
			return a
		}
	}
	return Empty
}

// IsDraw reports whether every cell is occupied. It deliberately
// ignores win status; callers must check Winner first.
func IsDraw(b Board) bool {
	for _, c := range b {
		if c == Empty {
			return false
		}
	}
	return true
}

// Strings renders the board as the 9-element wire form used in
// snapshots and events, empty cells as "".
func (b Board) Strings() [9]string {
	var out [9]string
	for i, c := range b {
		out[i] = string(c)
	}
	return out
}
