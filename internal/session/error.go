package session

import "errors"

var (
	ErrSessionAlreadyActive = errors.New("session already active")
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionNotOpen       = errors.New("session is not open")
	ErrUserRequired         = errors.New("session must have a user_id")
	ErrNegativeOpening      = errors.New("opening amount cannot be negative")
)
