// Package game defines the kind-tagged errors every rule violation is
// reported as. Stores and services return these; the HTTP layer maps
// kinds to status codes without string matching.
package game

import (
	"errors"
	"fmt"
)

// Kind classifies a rule violation.
type Kind string

const (
	KindInvalidInput Kind = "invalid_input"  // malformed or out-of-range request data
	KindNotFound     Kind = "not_found"      // referenced game or player does not exist
	KindInvalidState Kind = "invalid_state"  // operation not valid in the current lifecycle state
	KindForbidden    Kind = "forbidden"      // actor is not a participant of the game
	KindOutOfTurn    Kind = "out_of_turn"    // participant moving out of turn
	KindCellOccupied Kind = "cell_occupied"  // target cell already filled, including lost races
)

// Error is a kind-tagged domain error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds a new tagged error.
func E(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Ef builds a new tagged error with a formatted message.
func Ef(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap tags an underlying error, typically a translated driver error.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the kind from err, or "" if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
