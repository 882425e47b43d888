package system

import (
	"context"
	"time"

	"github.com/l1jgo/frameloop/internal/core/ecs"
	coresys "github.com/l1jgo/frameloop/internal/core/system"
	"github.com/l1jgo/frameloop/internal/scripting"
)

// ScriptSystem calls the Lua on_frame hook before the world updates.
type ScriptSystem struct {
	world  *ecs.World
	engine *scripting.Engine
}

func NewScriptSystem(w *ecs.World, e *scripting.Engine) *ScriptSystem {
	return &ScriptSystem{world: w, engine: e}
}

func (s *ScriptSystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }

func (s *ScriptSystem) Update(_ context.Context, _ time.Duration) error {
	s.engine.OnFrame(s.world.Frame())
	return nil
}
