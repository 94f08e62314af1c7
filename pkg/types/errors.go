package types

import "errors"

// Detach errors.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnknownType     = errors.New("unknown entity type")
)

// Tracking errors.
var (
	ErrInvalidState      = errors.New("invalid state value")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrNotTracked        = errors.New("entity is not tracked")
	ErrInvalidModel      = errors.New("invalid model definition")
	ErrValidation        = errors.New("entity validation failed")
)

// Store errors.
var (
	ErrNotFound    = errors.New("record not found")
	ErrInvalidKey  = errors.New("invalid record key")
	ErrStoreClosed = errors.New("store is closed")
	ErrAlreadyOpen = errors.New("store is already open")
)
