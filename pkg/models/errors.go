package models

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Error codes carried by phase results and API responses
const (
	ErrCodeBrowserLaunch   = "BROWSER_LAUNCH_FAILED"
	ErrCodeNavigation      = "NAVIGATION_FAILED"
	ErrCodeFieldNotFound   = "FIELD_NOT_FOUND"
	ErrCodeFieldInput      = "FIELD_INPUT_FAILED"
	ErrCodePageNotLoaded   = "PAGE_NOT_LOADED"
	ErrCodeCapture         = "CAPTURE_FAILED"
	ErrCodeSessionNotFound = "SESSION_NOT_FOUND"
	ErrCodeCanceled        = "CANCELED"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// EntryError is the internal error type carrying an error code.
// It supports error wrapping via Unwrap.
type EntryError struct {
	Code    string
	Message string
	Err     error
}

func (e *EntryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

// NewEntryError creates a new EntryError
func NewEntryError(code, message string, err error) *EntryError {
	return &EntryError{Code: code, Message: message, Err: err}
}

// ErrorCode extracts the code of err. Context cancellation maps to
// ErrCodeCanceled, anything untyped to ErrCodeInternal.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return ErrCodeCanceled
	}
	var ee *EntryError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ErrCodeInternal
}

// NewPhaseResult stamps the start of phase p
func NewPhaseResult(p Phase, start time.Time) PhaseResult {
	return PhaseResult{
		Phase:     p,
		Status:    StatusRunning,
		StartedAt: start,
	}
}

// Complete closes r with the outcome err. A nil err marks success.
func (r PhaseResult) Complete(err error) PhaseResult {
	r.Duration = time.Since(r.StartedAt).Milliseconds()
	if err == nil {
		r.Status = StatusSuccess
		return r
	}
	r.ErrorCode = ErrorCode(err)
	r.ErrorMessage = err.Error()
	if r.ErrorCode == ErrCodeCanceled {
		r.Status = StatusCanceled
	} else {
		r.Status = StatusFailed
	}
	return r
}

// SkippedPhase records a phase that never ran
func SkippedPhase(p Phase, reason string) PhaseResult {
	return PhaseResult{
		Phase:        p,
		Status:       StatusSkipped,
		ErrorMessage: reason,
	}
}
