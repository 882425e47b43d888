package system

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/l1jgo/frameloop/internal/core/ecs"
	"github.com/l1jgo/frameloop/internal/core/pool"
	coresys "github.com/l1jgo/frameloop/internal/core/system"
	"github.com/l1jgo/frameloop/internal/persist"
)

// Stateful entities contribute a YAML document to snapshots. Persistent
// entities without it are recorded with an empty state.
type Stateful interface {
	State() any
}

// SnapshotStore is the part of persist.SnapshotRepo the system writes to.
type SnapshotStore interface {
	Save(ctx context.Context, s *persist.Snapshot) error
	Prune(ctx context.Context, runID uuid.UUID, keep int) (int64, error)
}

type PersistConfig struct {
	Every   uint64        // frames between snapshots, 0 disables
	Keep    int           // snapshots retained per run, 0 keeps all
	Timeout time.Duration // bound on one write
}

// PersistSystem snapshots persistent entities. The snapshot is captured on
// the frame goroutine and written by a pool task; at most one write is in
// flight, and a new capture first waits for the previous write.
type PersistSystem struct {
	world *ecs.World
	pool  *pool.Pool
	store SnapshotStore
	cfg   PersistConfig
	runID uuid.UUID
	log   *zap.Logger

	pending *pool.Task
	saved   atomic.Int64
}

func NewPersistSystem(w *ecs.World, p *pool.Pool, store SnapshotStore, cfg PersistConfig, log *zap.Logger) *PersistSystem {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &PersistSystem{
		world: w,
		pool:  p,
		store: store,
		cfg:   cfg,
		runID: uuid.New(),
		log:   log,
	}
}

func (s *PersistSystem) Phase() coresys.Phase { return coresys.PhasePersist }

// RunID identifies this process's snapshots in the store.
func (s *PersistSystem) RunID() uuid.UUID { return s.runID }

// Saved returns the number of snapshots written successfully.
func (s *PersistSystem) Saved() int64 { return s.saved.Load() }

func (s *PersistSystem) Update(ctx context.Context, _ time.Duration) error {
	frame := s.world.Frame()
	if s.cfg.Every == 0 || frame == 0 || frame%s.cfg.Every != 0 {
		return nil
	}

	prevErr := s.waitPending()

	snap, err := s.Capture(frame)
	if err != nil {
		return errors.Join(prevErr, err)
	}

	write := func() error { return s.write(ctx, snap) }
	if s.pool == nil {
		return errors.Join(prevErr, write())
	}
	task, err := s.pool.Submit(write)
	if err != nil {
		// pool already stopped: write on this goroutine
		return errors.Join(prevErr, write())
	}
	s.pending = task
	return prevErr
}

// Capture builds a snapshot of every persistent entity. Frame goroutine
// only, outside Update and Draw.
func (s *PersistSystem) Capture(frame uint64) (*persist.Snapshot, error) {
	snap := &persist.Snapshot{
		ID:      uuid.New(),
		RunID:   s.runID,
		Frame:   frame,
		TakenAt: time.Now(),
	}
	var encErr error
	err := s.world.Each(nil, ecs.FlagPersistent, func(id ecs.EntityID, e ecs.Entity) {
		rec := persist.EntityRecord{
			ID:     uint64(id),
			TypeID: uint32(e.TypeID()),
			Flags:  uint32(e.Flags()),
		}
		if st, ok := e.(Stateful); ok {
			raw, err := yaml.Marshal(st.State())
			if err != nil {
				encErr = errors.Join(encErr, fmt.Errorf("encode entity %d: %w", id, err))
				return
			}
			rec.State = string(raw)
		}
		snap.Entities = append(snap.Entities, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("capture snapshot: %w", err)
	}
	return snap, encErr
}

func (s *PersistSystem) write(ctx context.Context, snap *persist.Snapshot) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Timeout)
	defer cancel()

	if err := s.store.Save(ctx, snap); err != nil {
		return fmt.Errorf("save snapshot frame %d: %w", snap.Frame, err)
	}
	s.saved.Add(1)
	s.log.Debug("snapshot saved",
		zap.Uint64("frame", snap.Frame),
		zap.Int("entities", len(snap.Entities)),
	)

	if s.cfg.Keep > 0 {
		deleted, err := s.store.Prune(ctx, s.runID, s.cfg.Keep)
		if err != nil {
			return fmt.Errorf("prune snapshots: %w", err)
		}
		if deleted > 0 {
			s.log.Debug("snapshots pruned", zap.Int64("deleted", deleted))
		}
	}
	return nil
}

func (s *PersistSystem) waitPending() error {
	if s.pending == nil {
		return nil
	}
	err := s.pending.Wait()
	s.pending = nil
	return err
}

// Close waits for the in-flight write, if any.
func (s *PersistSystem) Close() error {
	return s.waitPending()
}
