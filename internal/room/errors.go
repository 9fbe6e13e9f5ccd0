package room

import "errors"

// Local, recoverable failures reported synchronously to the initiating
// connection. None of them crashes a tick loop.
var (
	ErrRoomNotFound         = errors.New("room not found")
	ErrRoomFull             = errors.New("room full")
	ErrGameInProgress       = errors.New("game in progress")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrNotReady             = errors.New("players not ready")
	ErrEmptyRoster          = errors.New("empty roster")
	ErrInsufficientResource = errors.New("insufficient resource")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrBadRequest           = errors.New("bad request")
)
