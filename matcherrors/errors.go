package matcherrors

import (
	"errors"
	"fmt"
)

// Error kinds. Every sentinel below wraps exactly one of these so callers can
// classify with errors.Is without knowing the specific failure.
var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation failed")
	ErrStateConflict = errors.New("state conflict")
	ErrUnauthorized  = errors.New("unauthorized")
)

// Match and board errors. Used by the game, matchmaking, api and ws packages
// to avoid circular imports.
var (
	ErrMatchNotFound    = fmt.Errorf("match not found: %w", ErrNotFound)
	ErrCardNotFound     = fmt.Errorf("card not found: %w", ErrNotFound)
	ErrPlayerNotInMatch = fmt.Errorf("player is not in this match: %w", ErrNotFound)

	ErrOutOfRange       = fmt.Errorf("coordinate out of range: %w", ErrValidation)
	ErrCellOccupied     = fmt.Errorf("cell is already occupied: %w", ErrValidation)
	ErrInvalidPlacement = fmt.Errorf("cell was not freshly placed: %w", ErrValidation)
	ErrCardNotInHand    = fmt.Errorf("card is not in hand: %w", ErrValidation)
	ErrNotYourTurn      = fmt.Errorf("it is not your turn: %w", ErrValidation)
	ErrMatchNotActive   = fmt.Errorf("match is not active: %w", ErrValidation)
	ErrMatchNotWaiting  = fmt.Errorf("match is not waiting for players: %w", ErrValidation)
	ErrAlreadyInMatch   = fmt.Errorf("player is already in this match: %w", ErrValidation)
	ErrInvalidPlayer    = fmt.Errorf("player id is required: %w", ErrValidation)

	ErrMatchFull = fmt.Errorf("match already has two players: %w", ErrStateConflict)

	ErrInvalidToken = fmt.Errorf("invalid token: %w", ErrUnauthorized)
	ErrForbidden    = fmt.Errorf("player does not match the authenticated user: %w", ErrUnauthorized)
)

// Message returns the client-facing text for err: the specific sentinel's
// message without the kind suffix. Unknown errors map to a generic message.
func Message(err error) string {
	for _, s := range []error{
		ErrMatchNotFound, ErrCardNotFound, ErrPlayerNotInMatch,
		ErrOutOfRange, ErrCellOccupied, ErrInvalidPlacement, ErrCardNotInHand, ErrNotYourTurn,
		ErrMatchNotActive, ErrMatchNotWaiting, ErrAlreadyInMatch, ErrInvalidPlayer,
		ErrMatchFull, ErrInvalidToken, ErrForbidden,
	} {
		if errors.Is(err, s) {
			return trimKind(s)
		}
	}
	return "internal error"
}

// trimKind strips the ": <kind>" suffix added by the %w wrap.
func trimKind(s error) string {
	msg := s.Error()
	kind := errors.Unwrap(s).Error()
	return msg[:len(msg)-len(kind)-2]
}
