package domain

import "errors"

// Domain errors
var (
	ErrPlayerNotFound     = errors.New("player not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidUsername    = errors.New("username must be 3-20 characters of letters, digits, _ or -")
	ErrInvalidPassword    = errors.New("password must be at least 6 characters")
	ErrInvalidCredentials = errors.New("invalid username or password")

	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomNotWaiting   = errors.New("room is not accepting players")
	ErrRoomFull         = errors.New("room is full")
	ErrAlreadyInRoom    = errors.New("player already in room")
	ErrNotInRoom        = errors.New("player not in room")
	ErrNotCreator       = errors.New("only the room creator can start the game")
	ErrPlayersNotReady  = errors.New("not all players are ready")
	ErrNotEnoughPlayers = errors.New("not enough players to start the game")

	ErrGameNotFound           = errors.New("game not found")
	ErrGameFinished           = errors.New("game is already finished")
	ErrAnswerAlreadySubmitted = errors.New("answer already submitted for this question")
	ErrInvalidChoice          = errors.New("choice must be cooperate or betray")
	ErrInvalidPosition        = errors.New("round or question out of range")

	ErrVersionConflict = errors.New("concurrent modification detected")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrInternalError   = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrPlayerNotFound) ||
		errors.Is(err, ErrRoomNotFound) ||
		errors.Is(err, ErrGameNotFound)
}

// IsValidationError checks if an error is caused by bad input shape
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidUsername) ||
		errors.Is(err, ErrInvalidPassword) ||
		errors.Is(err, ErrInvalidChoice) ||
		errors.Is(err, ErrInvalidPosition) ||
		errors.Is(err, ErrInvalidRequest)
}

// IsStateError checks if an error is a business-rule violation that the
// caller should surface rather than retry
func IsStateError(err error) bool {
	return errors.Is(err, ErrRoomNotWaiting) ||
		errors.Is(err, ErrRoomFull) ||
		errors.Is(err, ErrAlreadyInRoom) ||
		errors.Is(err, ErrNotInRoom) ||
		errors.Is(err, ErrNotCreator) ||
		errors.Is(err, ErrPlayersNotReady) ||
		errors.Is(err, ErrNotEnoughPlayers) ||
		errors.Is(err, ErrGameFinished) ||
		errors.Is(err, ErrAnswerAlreadySubmitted)
}
