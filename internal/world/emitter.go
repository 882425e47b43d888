package world

import (
	"math"
	"time"

	"github.com/l1jgo/frameloop/internal/core/ecs"
)

// Emitter spawns a ring of Burst particles every Every frames. Successive
// rings are rotated by half a slot so the pattern fans out.
type Emitter struct {
	Pos    Vec2
	Every  uint64
	Burst  int
	Speed  float64
	Life   time.Duration
	Splits int

	Emitted int
	rings   int
}

type emitterState struct {
	Pos     Vec2   `yaml:"pos"`
	Every   uint64 `yaml:"every"`
	Burst   int    `yaml:"burst"`
	Emitted int    `yaml:"emitted"`
}

func (e *Emitter) TypeID() ecs.TypeID { return TypeEmitter }

func (e *Emitter) Flags() ecs.Flags {
	return ecs.FlagUpdatable | ecs.FlagDrawable | ecs.FlagPersistent
}

func (e *Emitter) Update(ctx ecs.UpdateContext) {
	if e.Every == 0 || e.Burst <= 0 || ctx.Frame%e.Every != 0 {
		return
	}
	slot := 2 * math.Pi / float64(e.Burst)
	offset := float64(e.rings) * slot / 2
	for i := 0; i < e.Burst; i++ {
		ctx.World.TakeOwnershipOf(&Particle{
			Pos:    e.Pos,
			Vel:    FromAngle(offset+float64(i)*slot, e.Speed),
			Life:   e.Life,
			Splits: e.Splits,
		})
	}
	e.rings++
	e.Emitted += e.Burst
	ctx.World.TriggerEvent(EventEmit, e.Burst)
}

func (e *Emitter) Draw(rc ecs.RenderContext) {
	rc.DrawText(e.Pos.X, e.Pos.Y, "E")
}

func (e *Emitter) State() any {
	return emitterState{Pos: e.Pos, Every: e.Every, Burst: e.Burst, Emitted: e.Emitted}
}
