package session

import (
	"errors"
	"fmt"
)

var (
	// ErrRequestInFlight is returned by Submit while a prediction is pending.
	// The call has no effect.
	ErrRequestInFlight = errors.New("a prediction request is already in flight")

	ErrInvalidTransition = errors.New("invalid transition")

	// ErrStaleCycle is returned when an action targets a cycle that has
	// already been replaced by a newer one.
	ErrStaleCycle = errors.New("cycle is no longer current")
)

// ValidationError rejects a correction before anything is sent.
type ValidationError struct {
	Label string
}

func (e *ValidationError) Error() string {
	if e.Label == "" {
		return "select the correct label before submitting"
	}
	return fmt.Sprintf("%q is not a known label", e.Label)
}
