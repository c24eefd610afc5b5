package models

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("invalid state")
	ErrNotOffered        = errors.New("ride not offered to driver")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrOutOfBounds       = errors.New("location outside grid")
)
