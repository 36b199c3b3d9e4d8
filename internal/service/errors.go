package service

import "errors"

// Caller-visible failure taxonomy. Only this package returns these; the
// registries and the sweeper log and move on.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrGone            = errors.New("session expired")
	ErrConflict        = errors.New("session is full")
	ErrInvalidState    = errors.New("session is not active")
	ErrInternal        = errors.New("internal error")
)
