package pool

import (
	"errors"
	"fmt"

	"github.com/sourcegraph/conc/panics"
)

var (
	// ErrPoolStopped is returned when work is submitted to a pool that is
	// draining or stopped, or when Stop is called twice.
	ErrPoolStopped = errors.New("invalid operation on thread pool (pool is stopping)")

	// ErrTaskAbandoned is returned by Task.Wait when the pool was stopped
	// before the task got a worker.
	ErrTaskAbandoned = errors.New("task abandoned: pool stopped before it ran")

	// ErrQueueFull is returned by Submit when Config.MaxQueued is reached.
	ErrQueueFull = errors.New("thread pool queue is full")

	ErrNilWork = errors.New("nil work submitted")
)

// PanicError carries a panic recovered from a task's work function.
type PanicError struct {
	Recovered *panics.Recovered
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Recovered.Value)
}

// Unwrap exposes the panic value when the work panicked with an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Recovered.Value.(error); ok {
		return err
	}
	return nil
}
