package ecs

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/l1jgo/frameloop/internal/core/appendbuf"
	"github.com/l1jgo/frameloop/internal/core/event"
	"github.com/l1jgo/frameloop/internal/core/pool"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/l1jgo/frameloop/internal/core/ecs"

// Extent is the spatial bounds of the world. The World only stores it;
// entities decide what to do at the edges.
type Extent struct {
	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64
}

// WorldConfig controls frame scheduling.
type WorldConfig struct {
	// DisableParallelProcessing runs every Update on the calling goroutine.
	DisableParallelProcessing bool
	// DisableUserEvents drops TriggerEvent calls.
	DisableUserEvents bool
	// MinBatch is the fewest entities handed to one update task.
	MinBatch int
	Extent   Extent
	// Tracer defaults to the global otel tracer provider.
	Tracer trace.Tracer
}

type worldPhase int32

const (
	phaseIdle worldPhase = iota
	phaseUpdating
	phaseSyncing
	phaseDrawing
)

func (p worldPhase) String() string {
	switch p {
	case phaseIdle:
		return "idle"
	case phaseUpdating:
		return "updating"
	case phaseSyncing:
		return "syncing"
	case phaseDrawing:
		return "drawing"
	}
	return "unknown"
}

type record struct {
	id   EntityID
	ent  Entity
	dead bool
}

type adoption struct {
	id  EntityID
	ent Entity
}

// World owns the authoritative entity collection and runs frames.
//
// Update, Draw, GetEntities, Reset and everything that reads the collection
// belong to one goroutine, the frame goroutine. DestroyEntity,
// TakeOwnershipOf, QueueDeferredAction and TriggerEvent may be called from
// anywhere, including from inside Entity.Update on a pool worker; they only
// append to buffers that the frame goroutine drains in the sync phase.
type World struct {
	cfg    WorldConfig
	pool   *pool.Pool
	log    *zap.Logger
	tracer trace.Tracer

	ids      *EntityPool
	registry *Registry
	events   *event.Bus

	entities []record
	index    map[EntityID]int

	toUpdate []record
	toDraw   []record

	toDestroy *appendbuf.Buffer[EntityID]
	toAdopt   *appendbuf.Buffer[adoption]
	deferred  *appendbuf.Buffer[deferredAction]

	pendingActions []deferredAction
	doomed         map[EntityID]struct{}

	destroyScratch []EntityID
	adoptScratch   []adoption
	actionScratch  []deferredAction

	frame atomic.Uint64
	phase atomic.Int32
}

// NewWorld creates an empty world. p may be nil, in which case updates run
// on the calling goroutine regardless of DisableParallelProcessing.
func NewWorld(cfg WorldConfig, p *pool.Pool, log *zap.Logger) *World {
	if cfg.MinBatch <= 0 {
		cfg.MinBatch = 32
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(tracerName)
	}
	if log == nil {
		log = zap.NewNop()
	}

	w := &World{
		cfg:       cfg,
		pool:      p,
		log:       log,
		tracer:    cfg.Tracer,
		ids:       NewEntityPool(),
		registry:  NewRegistry(),
		events:    event.NewBus(),
		entities:  make([]record, 0, 256),
		index:     make(map[EntityID]int, 256),
		toDestroy: appendbuf.New[EntityID](64),
		toAdopt:   appendbuf.New[adoption](64),
		deferred:  appendbuf.New[deferredAction](64),
		doomed:    make(map[EntityID]struct{}),
	}
	w.events.SetDisabled(cfg.DisableUserEvents)
	return w
}

func (w *World) Registry() *Registry { return w.registry }
func (w *World) Bounds() Extent      { return w.cfg.Extent }

// Frame returns the number of completed Update calls.
func (w *World) Frame() uint64 { return w.frame.Load() }

// Len returns the size of the authoritative collection. Frame goroutine only.
func (w *World) Len() int { return len(w.entities) }

// Parallel reports whether updates are spread across the pool.
func (w *World) Parallel() bool {
	return !w.cfg.DisableParallelProcessing && w.pool != nil
}

func (w *World) enter(want worldPhase) error {
	if !w.phase.CompareAndSwap(int32(phaseIdle), int32(want)) {
		return fmt.Errorf("%s while %s: %w", want, worldPhase(w.phase.Load()), ErrMisuse)
	}
	return nil
}

// Update runs one frame: snapshot, parallel update, wait, sync, advance.
//
// Panics raised by entity updates and deferred actions are captured and
// returned joined; the sync phase and the frame advance happen regardless so
// the collection never skips a structural change.
func (w *World) Update(ctx context.Context, dt time.Duration) error {
	if err := w.enter(phaseUpdating); err != nil {
		return err
	}
	defer w.phase.Store(int32(phaseIdle))

	frame := w.frame.Load()
	ctx, span := w.tracer.Start(ctx, "world.update",
		trace.WithAttributes(attribute.Int64("frame", int64(frame))))
	defer span.End()

	w.buildSnapshots()
	updateErr := w.dispatch(ctx, frame, dt)

	w.phase.Store(int32(phaseSyncing))
	syncErr := w.synchronize(ctx, frame)

	w.frame.Add(1)

	err := errors.Join(updateErr, syncErr)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "frame had failures")
	}
	return err
}

// buildSnapshots selects this frame's update and draw sets. It runs right
// after the previous sync phase, so the collection is quiescent.
func (w *World) buildSnapshots() {
	clear(w.toUpdate)
	clear(w.toDraw)
	w.toUpdate = w.toUpdate[:0]
	w.toDraw = w.toDraw[:0]
	for _, rec := range w.entities {
		flags := rec.ent.Flags()
		if flags.Has(FlagUpdatable) {
			w.toUpdate = append(w.toUpdate, rec)
		}
		if flags.Has(FlagDrawable) {
			w.toDraw = append(w.toDraw, rec)
		}
	}
}

// partitions returns how many tasks the update snapshot is split into.
func (w *World) partitions(n int) int {
	if !w.Parallel() {
		return 1
	}
	chunks := (n + w.cfg.MinBatch - 1) / w.cfg.MinBatch
	if workers := w.pool.Workers(); chunks > workers {
		chunks = workers
	}
	if chunks < 1 {
		chunks = 1
	}
	return chunks
}

func (w *World) dispatch(ctx context.Context, frame uint64, dt time.Duration) error {
	_, span := w.tracer.Start(ctx, "world.dispatch")
	defer span.End()

	n := len(w.toUpdate)
	chunks := w.partitions(n)
	span.SetAttributes(attribute.Int("entities", n), attribute.Int("tasks", chunks))
	if n == 0 {
		return nil
	}
	if chunks == 1 {
		return w.updateRange(w.toUpdate, frame, dt)
	}

	size := (n + chunks - 1) / chunks
	tasks := make([]*pool.Task, 0, chunks)
	var errs []error
	for start := 0; start < n; start += size {
		part := w.toUpdate[start:min(start+size, n)]
		task, err := w.pool.Submit(func() error {
			return w.updateRange(part, frame, dt)
		})
		if err != nil {
			// The frame must still complete; run the chunk here.
			errs = append(errs, fmt.Errorf("submit update task: %w", err))
			if uerr := w.updateRange(part, frame, dt); uerr != nil {
				errs = append(errs, uerr)
			}
			continue
		}
		tasks = append(tasks, task)
	}
	for _, t := range tasks {
		if err := t.Wait(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *World) updateRange(part []record, frame uint64, dt time.Duration) error {
	var errs []error
	for _, rec := range part {
		uctx := UpdateContext{World: w, Self: rec.id, Frame: frame, DT: dt}
		var pc panics.Catcher
		pc.Try(func() { rec.ent.Update(uctx) })
		if r := pc.Recovered(); r != nil {
			errs = append(errs, &UpdateError{ID: rec.id, Recovered: r})
		}
	}
	return errors.Join(errs...)
}

// synchronize applies structural changes in a fixed order: destructions,
// adoptions, deferred actions, then user events.
func (w *World) synchronize(ctx context.Context, frame uint64) error {
	_, span := w.tracer.Start(ctx, "world.sync")
	defer span.End()

	destroyed := w.destroyPending()
	adopted := w.takeOverPending()
	ran, actionErr := w.runDeferredActions(frame)
	delivered, eventErr := w.events.Dispatch()

	span.SetAttributes(
		attribute.Int("destroyed", destroyed),
		attribute.Int("adopted", adopted),
		attribute.Int("actions", ran),
		attribute.Int("events", delivered),
	)
	if destroyed > 0 || adopted > 0 {
		w.log.Debug("world sync",
			zap.Uint64("frame", frame),
			zap.Int("destroyed", destroyed),
			zap.Int("adopted", adopted),
			zap.Int("entities", len(w.entities)))
	}
	return errors.Join(actionErr, eventErr)
}

func (w *World) destroyPending() int {
	ids := w.toDestroy.DrainInto(w.destroyScratch)
	removed := 0
	for _, id := range ids {
		pos, ok := w.index[id]
		if !ok {
			if w.ids.Alive(id) {
				// allocated by TakeOwnershipOf but not adopted yet
				w.doomed[id] = struct{}{}
			}
			continue
		}
		rec := &w.entities[pos]
		rec.dead = true
		delete(w.index, id)
		w.registry.RemoveAll(id)
		w.ids.Destroy(id)
		if d, ok := rec.ent.(Destroyable); ok {
			d.OnDestroy()
		}
		removed++
	}
	w.destroyScratch = ids[:0]

	if removed > 0 {
		w.compact()
		w.pruneDrawSnapshot()
	}
	return removed
}

// compact drops dead records while keeping insertion order.
func (w *World) compact() {
	live := w.entities[:0]
	for _, rec := range w.entities {
		if rec.dead {
			continue
		}
		w.index[rec.id] = len(live)
		live = append(live, rec)
	}
	clear(w.entities[len(live):])
	w.entities = live
}

// pruneDrawSnapshot removes destroyed entities from the current draw set so
// Draw never sees an entity that left the collection.
func (w *World) pruneDrawSnapshot() {
	kept := w.toDraw[:0]
	for _, rec := range w.toDraw {
		if _, ok := w.index[rec.id]; ok {
			kept = append(kept, rec)
		}
	}
	clear(w.toDraw[len(kept):])
	w.toDraw = kept
}

func (w *World) takeOverPending() int {
	adopts := w.toAdopt.DrainInto(w.adoptScratch)
	added := 0
	for _, a := range adopts {
		if _, doomed := w.doomed[a.id]; doomed {
			w.ids.Destroy(a.id)
			if d, ok := a.ent.(Destroyable); ok {
				d.OnDestroy()
			}
			continue
		}
		w.index[a.id] = len(w.entities)
		w.entities = append(w.entities, record{id: a.id, ent: a.ent})
		if ad, ok := a.ent.(Adoptable); ok {
			ad.OnAdopt(a.id)
		}
		added++
	}
	clear(adopts)
	w.adoptScratch = adopts[:0]
	clear(w.doomed)
	return added
}

// Draw renders the current draw snapshot on the calling goroutine.
func (w *World) Draw(rc RenderContext) error {
	if err := w.enter(phaseDrawing); err != nil {
		return err
	}
	defer w.phase.Store(int32(phaseIdle))
	for _, rec := range w.toDraw {
		rec.ent.Draw(rc)
	}
	return nil
}

// TakeOwnershipOf hands e to the world. The returned id is valid at once;
// the entity joins the collection at the end of the current frame and is
// first updated and drawn in the next one. Safe from any goroutine.
func (w *World) TakeOwnershipOf(e Entity) EntityID {
	if e == nil {
		return 0
	}
	id := w.ids.Create()
	w.toAdopt.Append(adoption{id: id, ent: e})
	return id
}

// DestroyEntity schedules id for removal in the next sync phase. Stale and
// duplicate ids are ignored. Safe from any goroutine.
func (w *World) DestroyEntity(id EntityID) {
	if id.IsZero() {
		return
	}
	w.toDestroy.Append(id)
}

// Lookup resolves id against the authoritative collection. Callable from
// the frame goroutine and from Entity.Update.
func (w *World) Lookup(id EntityID) (Entity, bool) {
	pos, ok := w.index[id]
	if !ok {
		return nil, false
	}
	return w.entities[pos].ent, true
}

// RegisterEventHandler subscribes fn to the named user event. Handlers run
// on the frame goroutine during the sync phase.
func (w *World) RegisterEventHandler(name string, fn func(param int)) int {
	return w.events.Subscribe(name, fn)
}

func (w *World) RemoveEventHandler(name string, handlerID int) bool {
	return w.events.Unsubscribe(name, handlerID)
}

// TriggerEvent queues a user event for the next sync phase. Safe from any
// goroutine; a no-op when user events are disabled.
func (w *World) TriggerEvent(name string, param int) {
	w.events.Emit(name, param)
}

// Reset destroys every entity and drops all pending structural changes,
// deferred actions and queued events. The frame counter is kept.
func (w *World) Reset() error {
	if err := w.enter(phaseSyncing); err != nil {
		return err
	}
	defer w.phase.Store(int32(phaseIdle))

	for _, rec := range w.entities {
		w.registry.RemoveAll(rec.id)
		w.ids.Destroy(rec.id)
		if d, ok := rec.ent.(Destroyable); ok {
			d.OnDestroy()
		}
	}
	clear(w.entities)
	w.entities = w.entities[:0]
	clear(w.index)

	for _, a := range w.toAdopt.DrainInto(nil) {
		w.ids.Destroy(a.id)
		if d, ok := a.ent.(Destroyable); ok {
			d.OnDestroy()
		}
	}
	w.toDestroy.DrainInto(nil)
	w.deferred.DrainInto(nil)
	clear(w.pendingActions)
	w.pendingActions = w.pendingActions[:0]
	w.events.Discard()

	clear(w.toUpdate)
	clear(w.toDraw)
	w.toUpdate = w.toUpdate[:0]
	w.toDraw = w.toDraw[:0]

	w.log.Debug("world reset", zap.Uint64("frame", w.frame.Load()))
	return nil
}
