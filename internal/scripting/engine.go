package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/l1jgo/frameloop/internal/core/ecs"
	"github.com/l1jgo/frameloop/internal/world"
)

// Engine wraps a single gopher-lua VM bound to one World.
//
// Lua only ever runs on the frame goroutine: scripts are loaded at startup,
// hooks are called between frames, and the callbacks registered through
// on() and defer() are run by the World during its sync phase.
type Engine struct {
	vm    *lua.LState
	world *ecs.World
	log   *zap.Logger

	subs   []subscription
	errors int
}

type subscription struct {
	event string
	id    int
}

// NewEngine creates a Lua engine for w and loads every .lua file in dir.
// An empty dir yields an engine with no scripts.
func NewEngine(dir string, w *ecs.World, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, world: w, log: log}
	e.registerAPI()

	if dir != "" {
		if err := e.loadDir(dir); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load scripts: %w", err)
		}
	}
	return e, nil
}

func (e *Engine) registerAPI() {
	api := map[string]lua.LGFunction{
		"frame":   e.luaFrame,
		"count":   e.luaCount,
		"on":      e.luaOn,
		"off":     e.luaOff,
		"trigger": e.luaTrigger,
		"defer":   e.luaDefer,
		"destroy": e.luaDestroy,
		"marker":  e.luaMarker,
		"log":     e.luaLog,
	}
	for name, fn := range api {
		e.vm.SetGlobal(name, e.vm.NewFunction(fn))
	}
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// DoString runs a chunk of Lua source.
func (e *Engine) DoString(src string) error {
	return e.vm.DoString(src)
}

// OnFrame calls the global on_frame(frame) hook if a script defined one.
// Frame goroutine only, outside Update.
func (e *Engine) OnFrame(frame uint64) {
	if e.vm == nil {
		return
	}
	fn, ok := e.vm.GetGlobal("on_frame").(*lua.LFunction)
	if !ok {
		return
	}
	e.call("on_frame", fn, lua.LNumber(frame))
}

// Global returns the string form of a Lua global.
func (e *Engine) Global(name string) string {
	if e.vm == nil {
		return ""
	}
	return e.vm.GetGlobal(name).String()
}

// Errors returns how many Lua callbacks have failed so far.
func (e *Engine) Errors() int { return e.errors }

// Close removes the engine's event handlers from the world and shuts the
// VM down. Callbacks already queued with defer() become no-ops.
func (e *Engine) Close() {
	if e.vm == nil {
		return
	}
	for _, s := range e.subs {
		e.world.RemoveEventHandler(s.event, s.id)
	}
	e.subs = nil
	e.vm.Close()
	e.vm = nil
}

func (e *Engine) call(what string, fn *lua.LFunction, args ...lua.LValue) {
	if e.vm == nil {
		return
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, args...); err != nil {
		e.errors++
		e.log.Error("lua "+what+" error", zap.Error(err))
	}
}

func (e *Engine) luaFrame(L *lua.LState) int {
	L.Push(lua.LNumber(e.world.Frame()))
	return 1
}

func (e *Engine) luaCount(L *lua.LState) int {
	L.Push(lua.LNumber(e.world.Len()))
	return 1
}

// on(name, fn) -> handler id
func (e *Engine) luaOn(L *lua.LState) int {
	name := L.CheckString(1)
	fn := L.CheckFunction(2)
	id := e.world.RegisterEventHandler(name, func(param int) {
		e.call("event "+name, fn, lua.LNumber(param))
	})
	e.subs = append(e.subs, subscription{event: name, id: id})
	L.Push(lua.LNumber(id))
	return 1
}

// off(name, id) -> removed
func (e *Engine) luaOff(L *lua.LState) int {
	name := L.CheckString(1)
	id := L.CheckInt(2)
	removed := e.world.RemoveEventHandler(name, id)
	for i, s := range e.subs {
		if s.event == name && s.id == id {
			e.subs = append(e.subs[:i], e.subs[i+1:]...)
			break
		}
	}
	L.Push(lua.LBool(removed))
	return 1
}

// trigger(name [, param])
func (e *Engine) luaTrigger(L *lua.LState) int {
	e.world.TriggerEvent(L.CheckString(1), L.OptInt(2, 0))
	return 0
}

// defer(frames, fn)
func (e *Engine) luaDefer(L *lua.LState) int {
	frames := L.CheckInt(1)
	fn := L.CheckFunction(2)
	e.world.QueueDeferredAction(func() {
		e.call("deferred action", fn)
	}, frames)
	return 0
}

// destroy(id)
func (e *Engine) luaDestroy(L *lua.LState) int {
	e.world.DestroyEntity(checkEntityID(L, 1))
	return 0
}

// marker(x, y, label) -> entity id
func (e *Engine) luaMarker(L *lua.LState) int {
	m := &world.Marker{
		Pos:   world.Vec2{X: float64(L.CheckNumber(1)), Y: float64(L.CheckNumber(2))},
		Label: L.OptString(3, "#"),
	}
	L.Push(entityIDValue(e.world.TakeOwnershipOf(m)))
	return 1
}

// Entity ids cross into Lua as decimal strings. The generation sits in the
// upper 32 bits, so a Lua number (float64) would lose precision once the
// generation passes 2^21.
func entityIDValue(id ecs.EntityID) lua.LValue {
	return lua.LString(strconv.FormatUint(uint64(id), 10))
}

func checkEntityID(L *lua.LState, n int) ecs.EntityID {
	id, err := strconv.ParseUint(L.CheckString(n), 10, 64)
	if err != nil {
		L.ArgError(n, "entity id expected")
		return 0
	}
	return ecs.EntityID(id)
}

func (e *Engine) luaLog(L *lua.LState) int {
	e.log.Info("lua", zap.String("msg", L.CheckString(1)), zap.Uint64("frame", e.world.Frame()))
	return 0
}
