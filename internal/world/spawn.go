package world

import (
	"github.com/l1jgo/frameloop/internal/core/ecs"
	"github.com/l1jgo/frameloop/internal/data"
)

// Spawn hands every scenario entity to w and queues the scenario's
// deferred events. Entities join the world at the next sync. Returns the
// number of entities spawned.
func Spawn(w *ecs.World, s *data.Scenario) int {
	for _, e := range s.Emitters {
		w.TakeOwnershipOf(&Emitter{
			Pos:    Vec2{e.X, e.Y},
			Every:  e.Every,
			Burst:  e.Burst,
			Speed:  e.Speed,
			Life:   e.Life,
			Splits: e.Splits,
		})
	}
	for _, p := range s.Particles {
		w.TakeOwnershipOf(&Particle{
			Pos:    Vec2{p.X, p.Y},
			Vel:    Vec2{p.VX, p.VY},
			Life:   p.Life,
			Splits: p.Splits,
		})
	}
	for _, m := range s.Markers {
		w.TakeOwnershipOf(&Marker{Pos: Vec2{m.X, m.Y}, Label: m.Label})
	}
	for _, d := range s.Deferred {
		d := d
		w.QueueDeferredAction(func() {
			w.TriggerEvent(d.Event, d.Param)
		}, d.Delay)
	}
	return s.Total()
}
