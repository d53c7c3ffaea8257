package brackets

import "errors"

var (
	ErrNotEnoughQualifiers   = errors.New("not enough qualified players to build a knockout bracket (minimum 2)")
	ErrBracketMatchNotFound  = errors.New("knockout match not found")
	ErrBracketMatchNotReady  = errors.New("knockout match inputs are not resolved yet")
	ErrBracketInvalidWinner  = errors.New("winner is not a participant of the knockout match")
	ErrBracketAlreadyDecided = errors.New("knockout match already has a different winner")
)
