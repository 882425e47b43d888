package system

import (
	"context"
	"time"
)

// Phase defines execution ordering within a single frame.
type Phase int

const (
	PhasePreUpdate  Phase = iota // 0: scripts, input, frame bookkeeping
	PhaseUpdate                  // 1: World.Update (parallel entity logic + sync)
	PhasePostUpdate              // 2: reactions to the synced collection
	PhaseOutput                  // 3: World.Draw
	PhasePersist                 // 4: snapshot writes
	PhaseCleanup                 // 5: end-of-frame housekeeping
)

func (p Phase) String() string {
	switch p {
	case PhasePreUpdate:
		return "pre_update"
	case PhaseUpdate:
		return "update"
	case PhasePostUpdate:
		return "post_update"
	case PhaseOutput:
		return "output"
	case PhasePersist:
		return "persist"
	case PhaseCleanup:
		return "cleanup"
	}
	return "unknown"
}

// System is the interface every frame system implements.
type System interface {
	Phase() Phase
	Update(ctx context.Context, dt time.Duration) error
}
