package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidInput       = errors.New("invalid input")
	ErrForbidden          = errors.New("access denied")
	ErrSelfModification   = errors.New("cannot change own role or delete own account")

	ErrQueryNotFound     = errors.New("query not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidConsultant = errors.New("invalid consultant")

	ErrFileRequired   = errors.New("no file uploaded")
	ErrFileTooLarge   = errors.New("file too large")
	ErrInvalidFileKey = errors.New("invalid file key")
)

// TransitionError is returned when a query cannot move from its current
// status. It matches ErrInvalidTransition with errors.Is.
type TransitionError struct {
	From QueryStatus
	To   QueryStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s (from %s)", ErrInvalidTransition, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
