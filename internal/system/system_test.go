package system

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/l1jgo/frameloop/internal/config"
	"github.com/l1jgo/frameloop/internal/core/ecs"
	"github.com/l1jgo/frameloop/internal/core/pool"
	coresys "github.com/l1jgo/frameloop/internal/core/system"
	"github.com/l1jgo/frameloop/internal/persist"
	"github.com/l1jgo/frameloop/internal/render"
	"github.com/l1jgo/frameloop/internal/scripting"
	"github.com/l1jgo/frameloop/internal/world"
)

var extent = ecs.Extent{MinX: -10, MaxX: 10, MinY: -10, MaxY: 10, MinZ: -10, MaxZ: 10}

func newWorld(t *testing.T) (*ecs.World, *pool.Pool) {
	t.Helper()
	log := zaptest.NewLogger(t)
	p := pool.New(pool.Config{Workers: 2}, log)
	t.Cleanup(func() { _ = p.Stop(context.Background()) })
	return ecs.NewWorld(ecs.WorldConfig{Extent: extent, MinBatch: 1}, p, log), p
}

type memStore struct {
	mu     sync.Mutex
	saved  []*persist.Snapshot
	pruned int
	fail   error
}

func (m *memStore) Save(_ context.Context, s *persist.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.saved = append(m.saved, s)
	return nil
}

func (m *memStore) Prune(_ context.Context, _ uuid.UUID, _ int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruned++
	return 0, nil
}

func (m *memStore) frames() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]uint64, 0, len(m.saved))
	for _, s := range m.saved {
		out = append(out, s.Frame)
	}
	return out
}

func TestRunnerDrivesWorldAndCanvas(t *testing.T) {
	w, _ := newWorld(t)
	log := zaptest.NewLogger(t)
	var out bytes.Buffer

	canvas := render.NewCanvas(21, 11, extent)
	r := coresys.NewRunner()
	r.Register(NewDrawSystem(w, canvas, 2, &out, log))
	r.Register(NewWorldSystem(w))

	w.TakeOwnershipOf(&world.Marker{Pos: world.Vec2{X: -5, Y: 5}, Label: "M"})
	w.TakeOwnershipOf(&world.Particle{Vel: world.Vec2{X: 1}})

	require.NoError(t, r.Tick(context.Background(), 10*time.Millisecond))
	assert.Equal(t, uint64(1), w.Frame())
	assert.Empty(t, out.String(), "frame 1 is not a dump frame")
	// adopted during frame 0, so not in frame 0's draw snapshot
	assert.Zero(t, canvas.Draws())

	require.NoError(t, r.Tick(context.Background(), 10*time.Millisecond))
	assert.True(t, strings.HasPrefix(out.String(), "frame 2  entities 2  drawn 2\n"), out.String())
	assert.Contains(t, out.String(), "M")
}

func TestScriptSystemCallsHook(t *testing.T) {
	w, _ := newWorld(t)
	log := zaptest.NewLogger(t)
	e, err := scripting.NewEngine("", w, log)
	require.NoError(t, err)
	defer e.Close()
	require.NoError(t, e.DoString(`
calls = 0
function on_frame(f) calls = calls + 1; marker(0, 0, "s") end
`))

	r := coresys.NewRunner()
	r.Register(NewWorldSystem(w))
	r.Register(NewScriptSystem(w, e))
	for i := 0; i < 3; i++ {
		require.NoError(t, r.Tick(context.Background(), time.Millisecond))
	}
	assert.Equal(t, 3, w.Len())
	assert.Zero(t, e.Errors())
}

func TestPersistSystemSnapshotsEveryN(t *testing.T) {
	w, p := newWorld(t)
	store := &memStore{}
	ps := NewPersistSystem(w, p, store, PersistConfig{Every: 3, Keep: 2}, zaptest.NewLogger(t))

	w.TakeOwnershipOf(&world.Marker{Label: "A"})
	w.TakeOwnershipOf(&world.Emitter{Every: 100, Burst: 1})

	r := coresys.NewRunner()
	r.Register(ps)
	r.Register(NewWorldSystem(w))
	for i := 0; i < 7; i++ {
		require.NoError(t, r.Tick(context.Background(), time.Millisecond))
	}
	require.NoError(t, ps.Close())

	assert.Equal(t, []uint64{3, 6}, store.frames())
	assert.Equal(t, int64(2), ps.Saved())
	assert.Equal(t, 2, store.pruned)

	snap := store.saved[1]
	assert.Equal(t, ps.RunID(), snap.RunID)
	require.Len(t, snap.Entities, 2)
	types := map[uint32]string{}
	for _, e := range snap.Entities {
		types[e.TypeID] = e.State
	}
	assert.Contains(t, types[uint32(world.TypeMarker)], "label: A")
	assert.Contains(t, types[uint32(world.TypeEmitter)], "every: 100")
}

func TestPersistSystemReportsWriteFailureNextTime(t *testing.T) {
	w, p := newWorld(t)
	boom := errors.New("disk full")
	store := &memStore{fail: boom}
	ps := NewPersistSystem(w, p, store, PersistConfig{Every: 1}, zaptest.NewLogger(t))

	require.NoError(t, w.Update(context.Background(), 0))
	require.NoError(t, ps.Update(context.Background(), 0))

	require.NoError(t, w.Update(context.Background(), 0))
	assert.ErrorIs(t, ps.Update(context.Background(), 0), boom)

	assert.ErrorIs(t, ps.Close(), boom)
	assert.NoError(t, ps.Close())
}

func TestPersistSystemWritesInlineAfterPoolStop(t *testing.T) {
	w, p := newWorld(t)
	store := &memStore{}
	ps := NewPersistSystem(w, p, store, PersistConfig{Every: 1}, zaptest.NewLogger(t))

	require.NoError(t, w.Update(context.Background(), 0))
	require.NoError(t, p.Stop(context.Background()))
	require.NoError(t, ps.Update(context.Background(), 0))
	assert.Equal(t, []uint64{1}, store.frames())
}

func TestPersistSystemWithSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := persist.Open(ctx, config.DatabaseConfig{Driver: "sqlite"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, persist.RunMigrations(ctx, db))
	repo := persist.NewSnapshotRepo(db)

	w, p := newWorld(t)
	ps := NewPersistSystem(w, p, repo, PersistConfig{Every: 2, Keep: 1}, zaptest.NewLogger(t))
	w.TakeOwnershipOf(&world.Particle{Vel: world.Vec2{X: 1, Y: 1}})

	for i := 0; i < 4; i++ {
		require.NoError(t, w.Update(ctx, 100*time.Millisecond))
		require.NoError(t, ps.Update(ctx, 100*time.Millisecond))
	}
	require.NoError(t, ps.Close())

	n, err := repo.Count(ctx, ps.RunID())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	latest, err := repo.Latest(ctx, ps.RunID())
	require.NoError(t, err)
	assert.Equal(t, uint64(4), latest.Frame)
	require.Len(t, latest.Entities, 1)
	assert.Contains(t, latest.Entities[0].State, "age: 300ms")
}

func TestStatsSystem(t *testing.T) {
	w, p := newWorld(t)
	s := NewStatsSystem(w, p, 1, zaptest.NewLogger(t))
	assert.Equal(t, coresys.PhaseCleanup, s.Phase())
	require.NoError(t, w.Update(context.Background(), 0))
	assert.NoError(t, s.Update(context.Background(), 0))
}
