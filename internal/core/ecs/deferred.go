package ecs

import (
	"errors"

	"github.com/sourcegraph/conc/panics"
)

type deferredAction struct {
	fn     func()
	frames int // sync passes left to skip before fn runs
}

// QueueDeferredAction schedules fn to run on the frame goroutine during a
// sync phase. Safe from any goroutine; fn never runs on the caller's
// goroutine.
//
// Each sync phase runs every pending action whose remaining delay is zero
// and decrements the rest. An action queued with delayFrames = k before or
// during Update number n therefore runs in the sync phase of Update n+k.
// An action queued with delayFrames = 0 while deferred actions are running
// runs later in the same sync phase. Negative delays are treated as 0.
func (w *World) QueueDeferredAction(fn func(), delayFrames int) {
	if fn == nil {
		return
	}
	if delayFrames < 0 {
		delayFrames = 0
	}
	w.deferred.Append(deferredAction{fn: fn, frames: delayFrames})
}

// HasQueuedDeferredActions reports whether any deferred action is waiting.
// Frame goroutine only.
func (w *World) HasQueuedDeferredActions() bool {
	return len(w.pendingActions) > 0 || w.deferred.Len() > 0
}

func (w *World) runDeferredActions(frame uint64) (int, error) {
	incoming := w.deferred.DrainInto(w.actionScratch)
	w.pendingActions = append(w.pendingActions, incoming...)
	clear(incoming)
	w.actionScratch = incoming[:0]

	var errs []error
	ran := 0
	run := func(a deferredAction) {
		var pc panics.Catcher
		pc.Try(a.fn)
		if r := pc.Recovered(); r != nil {
			errs = append(errs, &ActionError{Frame: frame, Recovered: r})
		}
		ran++
	}

	kept := w.pendingActions[:0]
	for _, a := range w.pendingActions {
		if a.frames > 0 {
			a.frames--
			kept = append(kept, a)
			continue
		}
		run(a)
	}
	clear(w.pendingActions[len(kept):])
	w.pendingActions = kept

	// Actions queued while the pass above ran: zero delays run now, the
	// rest wait for the next sync without being decremented.
	for {
		incoming := w.deferred.DrainInto(w.actionScratch)
		if len(incoming) == 0 {
			w.actionScratch = incoming[:0]
			break
		}
		for _, a := range incoming {
			if a.frames > 0 {
				w.pendingActions = append(w.pendingActions, a)
				continue
			}
			run(a)
		}
		clear(incoming)
		w.actionScratch = incoming[:0]
	}
	return ran, errors.Join(errs...)
}
