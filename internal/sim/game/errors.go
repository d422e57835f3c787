package game

import "errors"

var (
	// ErrBusy means an oracle request is in flight; the intent was ignored.
	ErrBusy = errors.New("game: busy")
	// ErrBadInput covers missing selections, blank actions and similar.
	ErrBadInput = errors.New("game: bad input")

	ErrUnknownAgent  = errors.New("game: unknown agent")
	ErrUnknownRecipe = errors.New("game: unknown recipe")
	ErrCommandRecipe = errors.New("game: command recipes cannot be run by the player")

	// ErrShortage means materials were insufficient; no turn was consumed.
	ErrShortage = errors.New("game: insufficient materials")
	// ErrOracle means no judgment was obtained; no turn was consumed.
	ErrOracle = errors.New("game: oracle unavailable")

	errMalformed = errors.New("malformed judgment")
)
