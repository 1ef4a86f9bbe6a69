package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrValidation          = errors.New("validation failed")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrProviderFailure     = errors.New("provider failure")
	ErrModerationBlocked   = errors.New("moderation blocked")
	ErrDownloadFailed      = errors.New("download failed")
	ErrPersistence         = errors.New("persistence failure")
	ErrInvalidTransition   = errors.New("invalid status transition")
)

// ValidationError reports a rejected request shape. It is raised before any
// credit movement.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid returns a ValidationError with a formatted reason.
func Invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ModerationError is an explicit upstream refusal on content-policy grounds.
type ModerationError struct {
	Provider string
	Reason   string
}

func (e *ModerationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: content blocked by moderation", e.Provider)
	}
	return fmt.Sprintf("%s: content blocked by moderation (%s)", e.Provider, e.Reason)
}

func (e *ModerationError) Unwrap() error { return ErrModerationBlocked }

// SanitizeError maps err to a fixed message that is safe to store on a job
// record and return to a caller.
func SanitizeError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		var ve *ValidationError
		if errors.As(err, &ve) {
			return ve.Reason
		}
		return "invalid request"
	case errors.Is(err, ErrInsufficientCredits):
		return "insufficient credits"
	case errors.Is(err, ErrModerationBlocked):
		return "content was blocked by the provider's safety filters"
	case errors.Is(err, ErrProviderFailure):
		return "generation provider failed to produce a result"
	case errors.Is(err, ErrPersistence):
		return "failed to save generation result"
	case errors.Is(err, ErrNotFound):
		return "not found"
	default:
		return "generation failed"
	}
}
