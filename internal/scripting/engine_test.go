package scripting

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap/zaptest"

	"github.com/l1jgo/frameloop/internal/core/ecs"
	"github.com/l1jgo/frameloop/internal/world"
)

func newEngine(t *testing.T, src string) (*Engine, *ecs.World) {
	t.Helper()
	log := zaptest.NewLogger(t)
	w := ecs.NewWorld(ecs.WorldConfig{DisableParallelProcessing: true}, nil, log)

	dir := t.TempDir()
	if src != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "test.lua"), []byte(src), 0o644))
	}
	e, err := NewEngine(dir, w, log)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e, w
}

func step(t *testing.T, w *ecs.World, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, w.Update(context.Background(), time.Millisecond))
	}
}

func num(t *testing.T, e *Engine, name string) int {
	t.Helper()
	v := e.vm.GetGlobal(name)
	require.Equal(t, lua.LTNumber, v.Type(), "global %s", name)
	return int(lua.LVAsNumber(v))
}

func TestDeferFiresAfterDelay(t *testing.T) {
	e, w := newEngine(t, `
fired_at = -1
defer(2, function() fired_at = frame() end)
`)
	step(t, w, 3)
	assert.Equal(t, 2, num(t, e, "fired_at"))
	assert.Zero(t, e.Errors())
}

func TestEventHandlersRunAtSync(t *testing.T) {
	e, w := newEngine(t, `
total = 0
on("ping", function(p) total = total + p end)
`)
	require.NoError(t, e.DoString(`trigger("ping", 4)`))
	assert.Equal(t, 0, num(t, e, "total"))

	w.TriggerEvent("ping", 3)
	step(t, w, 1)
	assert.Equal(t, 7, num(t, e, "total"))
}

func TestOffRemovesHandler(t *testing.T) {
	e, w := newEngine(t, `
hits = 0
local id = on("ping", function() hits = hits + 1 end)
removed = off("ping", id)
`)
	w.TriggerEvent("ping", 0)
	step(t, w, 1)
	assert.Equal(t, 0, num(t, e, "hits"))
	assert.Equal(t, "true", e.vm.GetGlobal("removed").String())
}

func TestMarkerAndCount(t *testing.T) {
	e, w := newEngine(t, `
id = marker(1, 2, "M")
`)
	step(t, w, 1)
	require.NoError(t, e.DoString(`n = count()`))
	assert.Equal(t, 1, num(t, e, "n"))

	got, err := w.GetEntities(nil, []ecs.TypeID{world.TypeMarker}, ecs.FlagNone)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "M", got[0].(*world.Marker).Label)

	require.NoError(t, e.DoString(`destroy(id)`))
	step(t, w, 1)
	assert.Zero(t, w.Len())
}

func TestOnFrameHook(t *testing.T) {
	e, w := newEngine(t, `
seen = 0
function on_frame(f) seen = f end
`)
	step(t, w, 5)
	e.OnFrame(w.Frame())
	assert.Equal(t, 5, num(t, e, "seen"))
}

func TestCallbackErrorsAreLoggedNotFatal(t *testing.T) {
	e, w := newEngine(t, `
on("bad", function() error("boom") end)
ok_after = 0
defer(1, function() ok_after = 1 end)
`)
	w.TriggerEvent("bad", 0)
	step(t, w, 2)
	assert.Equal(t, 1, e.Errors())
	assert.Equal(t, 1, num(t, e, "ok_after"))
}

func TestLoadErrorFailsEngine(t *testing.T) {
	log := zaptest.NewLogger(t)
	w := ecs.NewWorld(ecs.WorldConfig{}, nil, log)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.lua"), []byte("this is not lua"), 0o644))

	_, err := NewEngine(dir, w, log)
	assert.Error(t, err)
}

func TestMissingDirIsEmpty(t *testing.T) {
	log := zaptest.NewLogger(t)
	w := ecs.NewWorld(ecs.WorldConfig{}, nil, log)
	e, err := NewEngine(filepath.Join(t.TempDir(), "nope"), w, log)
	require.NoError(t, err)
	e.Close()
	e.Close()
}

func TestEntityIDsSurviveLargeGenerations(t *testing.T) {
	e, _ := newEngine(t, "")
	id := ecs.NewEntityID(7, 1<<30)
	e.vm.SetGlobal("held", entityIDValue(id))
	require.NoError(t, e.DoString(`copy = held .. ""`))

	e.vm.Push(e.vm.GetGlobal("copy"))
	got := checkEntityID(e.vm, e.vm.GetTop())
	e.vm.Pop(1)
	assert.Equal(t, id, got)
	assert.Equal(t, uint32(1<<30), got.Generation())
}

func TestDestroyRejectsNonID(t *testing.T) {
	e, _ := newEngine(t, "")
	assert.Error(t, e.DoString(`destroy("not-an-id")`))
}
