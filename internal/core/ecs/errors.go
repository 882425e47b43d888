package ecs

import (
	"errors"
	"fmt"

	"github.com/sourcegraph/conc/panics"
)

// ErrMisuse reports a World operation invoked from the wrong phase: a
// re-entrant Update, a query while a frame is in flight, and so on. It
// always indicates a programming error in the caller.
var ErrMisuse = errors.New("world operation invoked out of phase")

// UpdateError wraps a panic raised by one entity's Update.
type UpdateError struct {
	ID        EntityID
	Recovered *panics.Recovered
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("entity %d update panicked: %v", e.ID, e.Recovered.Value)
}

func (e *UpdateError) Unwrap() error {
	if err, ok := e.Recovered.Value.(error); ok {
		return err
	}
	return nil
}

// ActionError wraps a panic raised by a deferred action.
type ActionError struct {
	Frame     uint64
	Recovered *panics.Recovered
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("deferred action panicked in frame %d: %v", e.Frame, e.Recovered.Value)
}

func (e *ActionError) Unwrap() error {
	if err, ok := e.Recovered.Value.(error); ok {
		return err
	}
	return nil
}
