package services

import "errors"

var (
	ErrNotFound         = errors.New("requested resource not found")
	ErrValidationFailed = errors.New("validation failed")

	ErrNilPlayer            = errors.New("player is nil")
	ErrPlayerNotFound       = errors.New("player not found")
	ErrPlayerNameRequired   = errors.New("player name is required")
	ErrPlayerNameInvalid    = errors.New("player name must not contain commas or line breaks")
	ErrInvalidGroupCount    = errors.New("group count must be positive")
	ErrNotEnoughPlayers     = errors.New("not enough players to pair (minimum 2)")
	ErrKnockoutNotGenerated = errors.New("knockout bracket has not been generated")

	ErrCheckInClosed      = errors.New("check-in window has closed")
	ErrAlreadyCheckedIn   = errors.New("player already checked in")
	ErrCheckInNotAllowed  = errors.New("only registered players can check in")
	ErrPlayerHasResults   = errors.New("player already has applied results")
	ErrWithdrawalNotFound = errors.New("no withdrawn player with that id")
	ErrPlayerIDTaken      = errors.New("player id is already in use")

	ErrInvalidCredentials   = errors.New("invalid organizer password")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrOrganizerAuthMissing = errors.New("organizer login is not configured")
)
