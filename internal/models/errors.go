package models

import "errors"

var (
	ErrValidation         = errors.New("validation failed")
	ErrSubmission         = errors.New("submission failed")
	ErrPolling            = errors.New("status polling failed")
	ErrDownload           = errors.New("download failed")
	ErrCreditsUnavailable = errors.New("credits unavailable")
	ErrNoCredits          = errors.New("no credits available")
	ErrBusy               = errors.New("a video is already being processed")
	ErrNotFound           = errors.New("not found")
	ErrClosed             = errors.New("workflow closed")
)

// ValidationError describes why user input was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
