package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntityPoolGenerations(t *testing.T) {
	p := NewEntityPool()

	a := p.Create()
	assert.False(t, a.IsZero())
	assert.Equal(t, uint32(0), a.Index())
	assert.True(t, p.Alive(a))

	assert.True(t, p.Destroy(a))
	assert.False(t, p.Alive(a))
	assert.False(t, p.Destroy(a), "stale id")

	b := p.Create()
	assert.Equal(t, a.Index(), b.Index(), "index recycled")
	assert.NotEqual(t, a, b)
	assert.True(t, p.Alive(b))
	assert.False(t, p.Alive(a))
}

func TestEntityPoolUnknownID(t *testing.T) {
	p := NewEntityPool()
	id := NewEntityID(42, 1)
	assert.False(t, p.Alive(id))
	assert.False(t, p.Destroy(id))
	assert.False(t, p.Alive(0))
}

func TestFlagsHas(t *testing.T) {
	f := FlagUpdatable | FlagDrawable
	assert.True(t, f.Has(FlagUpdatable))
	assert.True(t, f.Has(FlagUpdatable|FlagDrawable))
	assert.False(t, f.Has(FlagPersistent))
	assert.True(t, f.Has(FlagNone))
}
