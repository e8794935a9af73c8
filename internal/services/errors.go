package services

import (
	"errors"

	"gapcards-backend/internal/repository"
)

var (
	// ErrNotFound covers missing sheets, cards and students as well as
	// records owned by someone else.
	ErrNotFound = repository.ErrNotFound

	ErrGenerationUnavailable = errors.New("flashcard generation unavailable")
	ErrGenerationEmpty       = errors.New("flashcard generation produced no usable cards")
	ErrValidationFailed      = errors.New("candidate card failed validation")
	ErrPersistenceFailed     = errors.New("flashcard batch could not be saved")

	// ErrConflict is returned when a card changed under a review or when a
	// generation for the same sheet is already running.
	ErrConflict = errors.New("conflict")
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }
