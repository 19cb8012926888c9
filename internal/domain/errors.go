package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the app layer wraps exactly one of these.
var (
	// ErrNotFound covers unknown and expired containers, runs, games and questions alike.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned when the caller does not own the referenced container.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidState is returned when an operation is illegal in the current state.
	ErrInvalidState = errors.New("invalid state")
	// ErrGeneration indicates the text-completion provider failed or returned unusable output.
	ErrGeneration = errors.New("question generation failed")
	// ErrValidation indicates malformed caller input.
	ErrValidation = errors.New("validation failed")
)

var (
	// ErrSessionExpired is returned when a run, game or play session no longer exists.
	ErrSessionExpired = fmt.Errorf("%w: this session has expired, start over", ErrNotFound)
	// ErrQuestionNotFound is returned when a question id has no answer key.
	ErrQuestionNotFound = fmt.Errorf("%w: question not found", ErrNotFound)
	// ErrChallengeNotFound is returned for unknown share codes.
	ErrChallengeNotFound = fmt.Errorf("%w: challenge not found", ErrNotFound)

	// ErrNotOwner is returned when a user acts on another user's container.
	ErrNotOwner = fmt.Errorf("%w: container belongs to another user", ErrUnauthorized)
	// ErrSignInRequired is returned when a score-persisting operation is called by a guest.
	ErrSignInRequired = fmt.Errorf("%w: sign in required", ErrUnauthorized)

	ErrRunTerminated     = fmt.Errorf("%w: run is over", ErrInvalidState)
	ErrGameComplete      = fmt.Errorf("%w: game is complete", ErrInvalidState)
	ErrCellTaken         = fmt.Errorf("%w: cell already selected", ErrInvalidState)
	ErrQuestionPending   = fmt.Errorf("%w: answer the current question first", ErrInvalidState)
	ErrNoPendingQuestion = fmt.Errorf("%w: question is not the current question", ErrInvalidState)
	ErrFloorLocked       = fmt.Errorf("%w: floor is locked", ErrInvalidState)
	ErrFloorUnfinished   = fmt.Errorf("%w: floor has unanswered questions", ErrInvalidState)
	ErrSessionFinished   = fmt.Errorf("%w: session already finished", ErrInvalidState)
	ErrQuizIncomplete    = fmt.Errorf("%w: quiz has unanswered questions", ErrInvalidState)
	ErrAlreadyPlayed     = fmt.Errorf("%w: already played", ErrInvalidState)
	ErrOwnChallenge      = fmt.Errorf("%w: cannot play your own challenge", ErrInvalidState)
)

// Codes exposed to API callers.
const (
	CodeNotFound         = "NOT_FOUND"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeAlreadyAnswered  = "ALREADY_ANSWERED"
	CodeInvalidState     = "INVALID_STATE"
	CodeGenerationFailed = "GENERATION_FAILED"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeInternal         = "INTERNAL"
)

// Code maps an error to its API code.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrInvalidState):
		return CodeInvalidState
	case errors.Is(err, ErrGeneration):
		return CodeGenerationFailed
	case errors.Is(err, ErrValidation):
		return CodeValidationFailed
	default:
		return CodeInternal
	}
}

// Validationf builds an ErrValidation with a formatted detail.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
