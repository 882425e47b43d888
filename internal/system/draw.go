package system

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/frameloop/internal/core/ecs"
	coresys "github.com/l1jgo/frameloop/internal/core/system"
	"github.com/l1jgo/frameloop/internal/render"
)

// DrawSystem renders the world into a canvas every frame and writes the
// canvas to out every `every` frames (never when every is 0).
type DrawSystem struct {
	world  *ecs.World
	canvas *render.Canvas
	every  uint64
	out    io.Writer
	log    *zap.Logger
}

func NewDrawSystem(w *ecs.World, c *render.Canvas, every uint64, out io.Writer, log *zap.Logger) *DrawSystem {
	return &DrawSystem{world: w, canvas: c, every: every, out: out, log: log}
}

func (s *DrawSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *DrawSystem) Update(_ context.Context, _ time.Duration) error {
	s.canvas.Reset()
	if err := s.world.Draw(s.canvas); err != nil {
		return err
	}

	frame := s.world.Frame()
	if s.out == nil || s.every == 0 || frame%s.every != 0 {
		return nil
	}
	if _, err := fmt.Fprintf(s.out, "frame %d  entities %d  drawn %d\n", frame, s.world.Len(), s.canvas.Draws()); err != nil {
		return fmt.Errorf("write canvas: %w", err)
	}
	if _, err := s.canvas.WriteTo(s.out); err != nil {
		return fmt.Errorf("write canvas: %w", err)
	}
	s.log.Debug("canvas written", zap.Uint64("frame", frame))
	return nil
}
