package world

import (
	"math"

	"github.com/l1jgo/frameloop/internal/core/ecs"
)

// Entity type ids.
const (
	TypeParticle ecs.TypeID = iota + 1
	TypeEmitter
	TypeMarker
)

// Event names raised by the demo entities.
const (
	EventEmit   = "emit"   // param: particles spawned
	EventExpire = "expire" // param: particle generation
)

type Vec2 struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

func (v Vec2) Add(o Vec2) Vec2      { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }
func (v Vec2) Len() float64         { return math.Hypot(v.X, v.Y) }

func FromAngle(rad, length float64) Vec2 {
	return Vec2{math.Cos(rad) * length, math.Sin(rad) * length}
}

// bounce keeps p inside [lo, hi] on one axis and flips the velocity
// component when it crosses an edge. It reports whether a bounce happened.
func bounce(p, v *float64, lo, hi float64) bool {
	switch {
	case *p < lo:
		*p = lo + (lo - *p)
		*v = -*v
	case *p > hi:
		*p = hi - (*p - hi)
		*v = -*v
	default:
		return false
	}
	// a step longer than the whole extent can still land outside
	*p = math.Max(lo, math.Min(hi, *p))
	return true
}
