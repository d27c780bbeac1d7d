package domain

import "errors"

// Error taxonomy shared by every layer. Callers match with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrInvalidState     = errors.New("invalid state")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrGenerationFailed = errors.New("generation failed")
)
