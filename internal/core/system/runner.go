package system

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Runner executes systems in phase order each frame.
type Runner struct {
	systems []System
	sorted  bool
}

func NewRunner() *Runner {
	return &Runner{
		systems: make([]System, 0, 8),
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

// Tick runs every system once. A failing system does not stop later ones;
// all failures come back joined.
func (r *Runner) Tick(ctx context.Context, dt time.Duration) error {
	r.ensureSorted()
	var errs []error
	for _, s := range r.systems {
		if err := s.Update(ctx, dt); err != nil {
			errs = append(errs, fmt.Errorf("%s system %T: %w", s.Phase(), s, err))
		}
	}
	return errors.Join(errs...)
}

// TickPhase runs only the systems registered for phase.
func (r *Runner) TickPhase(ctx context.Context, phase Phase, dt time.Duration) error {
	r.ensureSorted()
	var errs []error
	for _, s := range r.systems {
		if s.Phase() != phase {
			continue
		}
		if err := s.Update(ctx, dt); err != nil {
			errs = append(errs, fmt.Errorf("%s system %T: %w", phase, s, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}
