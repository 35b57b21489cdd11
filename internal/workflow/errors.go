package workflow

import (
	"fmt"

	"github.com/marcus/po/internal/models"
)

// TransitionError is returned when no transition path exists
type TransitionError struct {
	From   models.TaskStatus
	To     models.TaskStatus
	TaskID string
	Reason string
}

func (e *TransitionError) Error() string {
	if e.TaskID == "" {
		return fmt.Sprintf("cannot transition from %s to %s: %s", e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("cannot transition task %s from %s to %s: %s", e.TaskID, e.From, e.To, e.Reason)
}

// GuardError is one failed guard
type GuardError struct {
	GuardName string
	Reason    string
	TaskID    string
}

func (e *GuardError) Error() string {
	if e.TaskID == "" {
		return fmt.Sprintf("guard %s failed: %s", e.GuardName, e.Reason)
	}
	return fmt.Sprintf("guard %s failed for task %s: %s", e.GuardName, e.TaskID, e.Reason)
}

// ValidationError collects the failed guards of one transition
type ValidationError struct {
	Errors []*GuardError
}

// Add appends a guard failure
func (e *ValidationError) Add(g *GuardError) {
	e.Errors = append(e.Errors, g)
}

// HasErrors reports whether any guard failed
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d validation errors", len(e.Errors))
}

// Unwrap exposes the individual guard errors to errors.As
func (e *ValidationError) Unwrap() []error {
	out := make([]error, len(e.Errors))
	for i, g := range e.Errors {
		out[i] = g
	}
	return out
}
