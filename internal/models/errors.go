package models

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("conflicting update")
	ErrValidation        = errors.New("validation failed")
	ErrNotLive           = errors.New("schedule is not live")
	ErrNotAttached       = errors.New("viewer is not attached to the chat channel")
)
