package event

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/l1jgo/frameloop/internal/core/appendbuf"
	"github.com/sourcegraph/conc/panics"
)

// Handler receives the integer parameter passed to Emit.
type Handler func(param int)

// Event is one queued emission.
type Event struct {
	Name  string
	Param int
}

// HandlerError wraps a panic raised by one handler during Dispatch.
type HandlerError struct {
	Event     Event
	HandlerID int
	Recovered *panics.Recovered
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %d for event %q panicked: %v", e.HandlerID, e.Event.Name, e.Recovered.Value)
}

func (e *HandlerError) Unwrap() error {
	if err, ok := e.Recovered.Value.(error); ok {
		return err
	}
	return nil
}

type subscription struct {
	id int
	fn Handler
}

// Bus is a named user-event bus. Emit may be called from any goroutine; the
// events are held until the owning goroutine calls Dispatch. Events emitted
// while a Dispatch is running are delivered by the next one.
type Bus struct {
	mu       sync.Mutex // protects handlers and nextID
	handlers map[string][]subscription
	nextID   int

	queued   *appendbuf.Buffer[Event]
	scratch  []Event
	disabled atomic.Bool
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[string][]subscription),
		queued:   appendbuf.New[Event](16),
	}
}

// Subscribe registers fn for events named name and returns its handler id.
func (b *Bus) Subscribe(name string, fn Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.handlers[name] = append(b.handlers[name], subscription{id: b.nextID, fn: fn})
	return b.nextID
}

// Unsubscribe removes the handler with the given id. It reports whether the
// handler was registered.
func (b *Bus) Unsubscribe(name string, id int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.handlers[name]
	for i, s := range subs {
		if s.id == id {
			b.handlers[name] = append(subs[:i:i], subs[i+1:]...)
			return true
		}
	}
	return false
}

// SetDisabled makes Emit drop events while true.
func (b *Bus) SetDisabled(disabled bool) { b.disabled.Store(disabled) }

// Emit queues an event for the next Dispatch.
func (b *Bus) Emit(name string, param int) {
	if b.disabled.Load() {
		return
	}
	b.queued.Append(Event{Name: name, Param: param})
}

// Pending reports how many events wait for Dispatch.
func (b *Bus) Pending() int { return b.queued.Len() }

// Dispatch delivers queued events in emit order and returns how many handler
// calls were made. A panicking handler does not stop delivery; every panic
// comes back as a *HandlerError in the joined error. Only one goroutine may
// Dispatch at a time.
func (b *Bus) Dispatch() (int, error) {
	events := b.queued.DrainInto(b.scratch)
	calls := 0
	var errs []error
	for _, ev := range events {
		b.mu.Lock()
		subs := append([]subscription(nil), b.handlers[ev.Name]...)
		b.mu.Unlock()
		for _, s := range subs {
			var pc panics.Catcher
			pc.Try(func() { s.fn(ev.Param) })
			if r := pc.Recovered(); r != nil {
				errs = append(errs, &HandlerError{Event: ev, HandlerID: s.id, Recovered: r})
			}
			calls++
		}
	}
	clear(events)
	b.scratch = events[:0]
	return calls, errors.Join(errs...)
}

// Discard drops every queued event without delivering it.
func (b *Bus) Discard() {
	events := b.queued.DrainInto(b.scratch)
	clear(events)
	b.scratch = events[:0]
}
