package models

import (
	"database/sql/driver"
	"errors"
)

type SessionStatus string

const (
	SessionInProgress SessionStatus = "IN_PROGRESS"
	SessionCompleted  SessionStatus = "COMPLETED"
	SessionAbandoned  SessionStatus = "ABANDONED"
)

var ErrInvalidTransition = errors.New("invalid session status transition")

func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionAbandoned
}

// CanTransitionTo holds the whole lifecycle: only an in-progress session moves,
// and only into one of the two terminal states.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	if s != SessionInProgress {
		return false
	}
	return next == SessionCompleted || next == SessionAbandoned
}

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionInProgress, SessionCompleted, SessionAbandoned:
		return true
	}
	return false
}

func (s SessionStatus) Value() (driver.Value, error) {
	return string(s), nil
}
