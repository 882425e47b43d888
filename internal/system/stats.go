package system

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/frameloop/internal/core/ecs"
	"github.com/l1jgo/frameloop/internal/core/pool"
	coresys "github.com/l1jgo/frameloop/internal/core/system"
)

// StatsSystem logs world and pool counters every `every` frames.
type StatsSystem struct {
	world *ecs.World
	pool  *pool.Pool
	every uint64
	log   *zap.Logger
}

func NewStatsSystem(w *ecs.World, p *pool.Pool, every uint64, log *zap.Logger) *StatsSystem {
	return &StatsSystem{world: w, pool: p, every: every, log: log}
}

func (s *StatsSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *StatsSystem) Update(_ context.Context, _ time.Duration) error {
	frame := s.world.Frame()
	if s.every == 0 || frame%s.every != 0 {
		return nil
	}
	fields := []zap.Field{
		zap.Uint64("frame", frame),
		zap.Int("entities", s.world.Len()),
		zap.Bool("deferred_pending", s.world.HasQueuedDeferredActions()),
	}
	if s.pool != nil {
		st := s.pool.Stats()
		fields = append(fields,
			zap.Int("workers", st.Workers),
			zap.Int("queued", st.Queued),
			zap.Int64("completed", st.Completed),
			zap.Int64("failed", st.Failed),
		)
	}
	s.log.Info("frame stats", fields...)
	return nil
}
