package system

import (
	"context"
	"time"

	"github.com/l1jgo/frameloop/internal/core/ecs"
	coresys "github.com/l1jgo/frameloop/internal/core/system"
)

// WorldSystem advances the world by one frame.
type WorldSystem struct {
	world *ecs.World
}

func NewWorldSystem(w *ecs.World) *WorldSystem {
	return &WorldSystem{world: w}
}

func (s *WorldSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *WorldSystem) Update(ctx context.Context, dt time.Duration) error {
	return s.world.Update(ctx, dt)
}
