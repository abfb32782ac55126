package services

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidGeneticData: empty or malformed marker input. Not retried.
	ErrInvalidGeneticData = errors.New("invalid genetic data")
	// ErrSessionConflict: an active session already holds the (child, kind) slot.
	ErrSessionConflict = errors.New("a check-in or consultation is already in progress")
	// ErrValidation: bad session input such as an out-of-range question index.
	ErrValidation = errors.New("validation failed")
	// ErrGenerationFailed: the generative capability failed or returned unusable output.
	// Session state is unchanged, so the caller may retry.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrSessionExpired: the session is no longer active.
	ErrSessionExpired = errors.New("session expired")
	ErrNotFound       = errors.New("not found")
	// ErrKnowledgeUnavailable: no vector store is configured for knowledge retrieval.
	ErrKnowledgeUnavailable = errors.New("knowledge retrieval is not configured")
)

// InitialEntryError reports that a genetic report was ingested but the
// follow-up initial entry could not be produced. The trait set is kept.
type InitialEntryError struct {
	Err error
}

func (e *InitialEntryError) Error() string {
	return fmt.Sprintf("initial entry not created: %v", e.Err)
}

func (e *InitialEntryError) Unwrap() error { return e.Err }

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func generationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrGenerationFailed, fmt.Sprintf(format, args...))
}
