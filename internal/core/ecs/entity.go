package ecs

import (
	"sync"
	"time"
)

// EntityID encodes a 32-bit index in the lower bits and a 32-bit generation
// in the upper bits. Generation increments on destroy to invalidate stale refs.
// IDs are handed out starting at generation 1, so the zero EntityID is never
// a live entity.
type EntityID uint64

func NewEntityID(index uint32, generation uint32) EntityID {
	return EntityID(uint64(generation)<<32 | uint64(index))
}

func (id EntityID) Index() uint32      { return uint32(id) }
func (id EntityID) Generation() uint32 { return uint32(id >> 32) }
func (id EntityID) IsZero() bool       { return id == 0 }

// EntityPool manages entity allocation with generational indices and a free list.
// Create may run on worker goroutines (adoption happens mid-frame), so the
// pool carries its own lock.
type EntityPool struct {
	mu          sync.Mutex
	generations []uint32
	freeList    []uint32
	nextIndex   uint32
}

func NewEntityPool() *EntityPool {
	return &EntityPool{
		generations: make([]uint32, 0, 1024),
		freeList:    make([]uint32, 0, 256),
	}
}

func (p *EntityPool) Create() EntityID {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.freeList) > 0 {
		idx := p.freeList[len(p.freeList)-1]
		p.freeList = p.freeList[:len(p.freeList)-1]
		return NewEntityID(idx, p.generations[idx])
	}
	idx := p.nextIndex
	p.nextIndex++
	if int(idx) >= len(p.generations) {
		p.generations = append(p.generations, 1)
	}
	return NewEntityID(idx, p.generations[idx])
}

func (p *EntityPool) Alive(id EntityID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := id.Index()
	if idx >= p.nextIndex {
		return false
	}
	return p.generations[idx] == id.Generation()
}

// Destroy invalidates id and recycles its index. It reports false for stale
// or unknown ids.
func (p *EntityPool) Destroy(id EntityID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := id.Index()
	if idx >= p.nextIndex {
		return false
	}
	if p.generations[idx] != id.Generation() {
		return false // already destroyed (stale reference)
	}
	p.generations[idx]++
	if p.generations[idx] == 0 {
		p.generations[idx] = 1
	}
	p.freeList = append(p.freeList, idx)
	return true
}

// TypeID identifies an entity's concrete kind for filtered queries.
type TypeID uint32

// Flags is the set of capabilities an entity advertises to the World.
type Flags uint32

const (
	FlagUpdatable Flags = 1 << iota
	FlagDrawable
	FlagPersistent // included in persisted snapshots

	FlagNone Flags = 0
)

// Has reports whether every bit of want is set.
func (f Flags) Has(want Flags) bool { return f&want == want }

// RenderContext is supplied by the renderer for the duration of one Draw.
// Implementations need not be safe for concurrent use.
type RenderContext interface {
	DrawText(x, y float64, text string)
}

// UpdateContext is passed to Entity.Update. It is valid only for the
// duration of the call.
type UpdateContext struct {
	World *World
	Self  EntityID
	Frame uint64
	DT    time.Duration
}

// Entity is the unit the World schedules. Update runs on a pool worker when
// parallel processing is enabled; an entity is updated by exactly one worker
// per frame and may only mutate its own fields. Structural changes go
// through World.DestroyEntity, World.TakeOwnershipOf and
// World.QueueDeferredAction.
type Entity interface {
	TypeID() TypeID
	Flags() Flags
	Update(ctx UpdateContext)
	Draw(rc RenderContext)
}

// Adoptable entities are told their id when they join the collection.
type Adoptable interface {
	OnAdopt(id EntityID)
}

// Destroyable entities are notified on the sync goroutine when removed.
type Destroyable interface {
	OnDestroy()
}
