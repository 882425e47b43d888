package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/frameloop/internal/config"
	"github.com/l1jgo/frameloop/internal/core/ecs"
	"github.com/l1jgo/frameloop/internal/core/pool"
	coresys "github.com/l1jgo/frameloop/internal/core/system"
	"github.com/l1jgo/frameloop/internal/data"
	"github.com/l1jgo/frameloop/internal/persist"
	"github.com/l1jgo/frameloop/internal/render"
	"github.com/l1jgo/frameloop/internal/scripting"
	"github.com/l1jgo/frameloop/internal/system"
	"github.com/l1jgo/frameloop/internal/world"
)

// Deps holds everything one frame loop needs. It is built once by New and
// passed explicitly; nothing here is global.
type Deps struct {
	Config *config.Config
	Log    *zap.Logger
	Pool   *pool.Pool
	World  *ecs.World
	Runner *coresys.Runner
	Canvas *render.Canvas

	Scripts   *scripting.Engine     // nil when scripting.dir is empty
	DB        *persist.DB           // nil when database.driver is empty
	Snapshots *persist.SnapshotRepo // nil without DB
	Persist   *system.PersistSystem // nil without DB
}

// New wires config → pool → world → scripts → persistence → systems and
// spawns the configured scenario. out receives canvas dumps; nil disables
// them.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, out io.Writer) (*Deps, error) {
	d := &Deps{Config: cfg, Log: log}

	d.Pool = pool.New(pool.Config{
		Workers:       cfg.Pool.Workers,
		MaxQueued:     cfg.Pool.MaxQueued,
		LockOSThreads: cfg.Pool.LockOSThreads,
		Name:          cfg.Server.Name,
	}, log.Named("pool"))

	ext := ecs.Extent{
		MinX: cfg.World.ExtentXn, MaxX: cfg.World.ExtentXp,
		MinY: cfg.World.ExtentYn, MaxY: cfg.World.ExtentYp,
		MinZ: cfg.World.ExtentZn, MaxZ: cfg.World.ExtentZp,
	}
	d.World = ecs.NewWorld(ecs.WorldConfig{
		DisableParallelProcessing: cfg.World.DisableParallelProcessing,
		DisableUserEvents:         cfg.World.DisableUserEvents,
		MinBatch:                  cfg.World.MinBatch,
		Extent:                    ext,
	}, d.Pool, log.Named("world"))

	d.Runner = coresys.NewRunner()
	d.Runner.Register(system.NewWorldSystem(d.World))

	if cfg.Scripting.Dir != "" {
		eng, err := scripting.NewEngine(cfg.Scripting.Dir, d.World, log.Named("lua"))
		if err != nil {
			d.abort()
			return nil, fmt.Errorf("scripting: %w", err)
		}
		d.Scripts = eng
		d.Runner.Register(system.NewScriptSystem(d.World, eng))
	}

	if cfg.Database.Driver != "" {
		db, err := persist.Open(ctx, cfg.Database, log.Named("db"))
		if err != nil {
			d.abort()
			return nil, fmt.Errorf("database: %w", err)
		}
		d.DB = db
		if err := persist.RunMigrations(ctx, db); err != nil {
			d.abort()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		d.Snapshots = persist.NewSnapshotRepo(db)
		d.Persist = system.NewPersistSystem(d.World, d.Pool, d.Snapshots, system.PersistConfig{
			Every: cfg.Database.SnapshotEvery,
			Keep:  cfg.Database.SnapshotKeep,
		}, log.Named("persist"))
		d.Runner.Register(d.Persist)
	}

	d.Canvas = render.NewCanvas(cfg.Loop.CanvasWidth, cfg.Loop.CanvasHeight, ext)
	d.Runner.Register(system.NewDrawSystem(d.World, d.Canvas, cfg.Loop.DrawEvery, out, log.Named("draw")))
	d.Runner.Register(system.NewStatsSystem(d.World, d.Pool, statsEvery(cfg.Loop.FrameRate), log.Named("stats")))

	if cfg.Loop.Scenario != "" {
		sc, err := data.LoadScenario(cfg.Loop.Scenario)
		if err != nil {
			d.abort()
			return nil, err
		}
		n := world.Spawn(d.World, sc)
		log.Info("scenario loaded",
			zap.String("name", sc.Name),
			zap.Int("entities", n),
			zap.Int("deferred", len(sc.Deferred)),
		)
	}
	return d, nil
}

// statsEvery picks a frame interval of roughly ten seconds.
func statsEvery(frameRate time.Duration) uint64 {
	if frameRate <= 0 {
		return 0
	}
	n := uint64(10 * time.Second / frameRate)
	if n == 0 {
		n = 1
	}
	return n
}

// Tick runs one frame: every registered system in phase order.
func (d *Deps) Tick(ctx context.Context) error {
	return d.Runner.Tick(ctx, d.Config.Loop.FrameRate)
}

// Run ticks at Loop.FrameRate until ctx is done or Loop.MaxFrames frames
// have run. Frame errors are logged and do not stop the loop.
func (d *Deps) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.Config.Loop.FrameRate)
	defer ticker.Stop()

	var frames uint64
	for {
		select {
		case <-ticker.C:
			if err := d.Tick(ctx); err != nil {
				d.Log.Warn("frame failed", zap.Uint64("frame", d.World.Frame()), zap.Error(err))
			}
			frames++
			if limit := d.Config.Loop.MaxFrames; limit > 0 && frames >= limit {
				d.Log.Info("frame limit reached", zap.Uint64("frames", frames))
				return nil
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// Close flushes the pending snapshot, stops the pool within
// Pool.StopTimeout and releases scripts and the database.
func (d *Deps) Close() error {
	var errs []error
	if d.Persist != nil {
		if err := d.Persist.Close(); err != nil {
			errs = append(errs, fmt.Errorf("flush snapshot: %w", err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.Config.Pool.StopTimeout)
	defer cancel()
	if err := d.Pool.Stop(ctx); err != nil && !errors.Is(err, pool.ErrPoolStopped) {
		errs = append(errs, fmt.Errorf("stop pool: %w", err))
	}
	st := d.Pool.Stats()
	d.Log.Info("pool stopped",
		zap.Int64("completed", st.Completed),
		zap.Int64("failed", st.Failed),
		zap.Int64("abandoned", st.Abandoned),
	)

	if d.Scripts != nil {
		d.Scripts.Close()
	}
	if d.DB != nil {
		d.DB.Close()
	}
	return errors.Join(errs...)
}

// abort releases whatever New built before failing.
func (d *Deps) abort() {
	if d.Scripts != nil {
		d.Scripts.Close()
	}
	if d.DB != nil {
		d.DB.Close()
	}
	_ = d.Pool.Stop(context.Background())
}
