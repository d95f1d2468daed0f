package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrExternalService   = errors.New("external service error")
	ErrAutomationPaused  = errors.New("automation is paused")
)

// Letter composer failures. Composition failures are validation errors, drafting and
// storage failures are external service errors.
var (
	ErrCompositionFailed   = fmt.Errorf("%w: letter composition failed", ErrValidation)
	ErrDraftingUnavailable = fmt.Errorf("%w: drafting service unavailable", ErrExternalService)
	ErrStorageWrite        = fmt.Errorf("%w: artifact storage write failed", ErrExternalService)
)

// AutomationError describes a failure while processing one client inside a sweep.
// It is recorded to the automation log and never returned to sweep callers.
type AutomationError struct {
	ClientID string
	Step     string
	Cause    error
}

func (e *AutomationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Step == "" {
		return fmt.Sprintf("automation failed for client %s: %v", e.ClientID, e.Cause)
	}
	return fmt.Sprintf("automation %s failed for client %s: %v", e.Step, e.ClientID, e.Cause)
}

func (e *AutomationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
