package pool

import (
	"context"
	"sync/atomic"

	"github.com/sourcegraph/conc/panics"
)

// Work is a unit of work executed by a pool worker. A returned error or a
// panic marks the task as failed; both are reported by Task.Wait.
type Work func() error

// State is the observable lifecycle of a Task.
type State int32

const (
	StateNotStarted State = iota
	StateStarted
	StateFinished
	StateAbandoned
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateStarted:
		return "started"
	case StateFinished:
		return "finished"
	case StateAbandoned:
		return "abandoned"
	}
	return "unknown"
}

// Task is the handle returned by Pool.Submit. The pool runs the wrapped work
// exactly once; any number of goroutines may Wait on it.
type Task struct {
	work  Work
	state atomic.Int32
	done  chan struct{}
	err   error // written before done is closed
}

func newTask(work Work) *Task {
	return &Task{
		work: work,
		done: make(chan struct{}),
	}
}

func (t *Task) State() State { return State(t.state.Load()) }

// Done is closed once the task finished or was abandoned.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the work has started and finished, then returns its
// error. Everything the work wrote is visible to the caller once Wait
// returns. A task dropped by Stop returns ErrTaskAbandoned.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

// WaitContext is Wait bounded by ctx. The task keeps running if ctx ends first.
func (t *Task) WaitContext(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run executes the work on the calling worker and publishes the result.
func (t *Task) run() error {
	t.state.Store(int32(StateStarted))

	var err error
	var pc panics.Catcher
	pc.Try(func() { err = t.work() })
	if r := pc.Recovered(); r != nil {
		err = &PanicError{Recovered: r}
	}

	t.err = err
	t.state.Store(int32(StateFinished))
	close(t.done)
	return err
}

func (t *Task) abandon() {
	t.err = ErrTaskAbandoned
	t.state.Store(int32(StateAbandoned))
	close(t.done)
}
