package world

import (
	"time"

	"github.com/l1jgo/frameloop/internal/core/ecs"
)

// Particle moves in a straight line, bounces off the world bounds and
// destroys itself once it is older than Life. Each bounce while Splits > 0
// adopts a mirrored child particle.
type Particle struct {
	Pos        Vec2
	Vel        Vec2
	Age        time.Duration
	Life       time.Duration // 0 = immortal
	Splits     int
	Generation int
	Bounces    int

	id ecs.EntityID
}

type particleState struct {
	Pos        Vec2          `yaml:"pos"`
	Vel        Vec2          `yaml:"vel"`
	Age        time.Duration `yaml:"age"`
	Life       time.Duration `yaml:"life"`
	Splits     int           `yaml:"splits"`
	Generation int           `yaml:"generation"`
	Bounces    int           `yaml:"bounces"`
}

func (p *Particle) TypeID() ecs.TypeID { return TypeParticle }

func (p *Particle) Flags() ecs.Flags {
	return ecs.FlagUpdatable | ecs.FlagDrawable | ecs.FlagPersistent
}

func (p *Particle) OnAdopt(id ecs.EntityID) { p.id = id }
func (p *Particle) ID() ecs.EntityID        { return p.id }

func (p *Particle) Update(ctx ecs.UpdateContext) {
	secs := ctx.DT.Seconds()
	p.Pos = p.Pos.Add(p.Vel.Scale(secs))
	p.Age += ctx.DT

	b := ctx.World.Bounds()
	bx := bounce(&p.Pos.X, &p.Vel.X, b.MinX, b.MaxX)
	by := bounce(&p.Pos.Y, &p.Vel.Y, b.MinY, b.MaxY)
	if bx || by {
		p.Bounces++
		if p.Splits > 0 {
			p.Splits--
			ctx.World.TakeOwnershipOf(&Particle{
				Pos:        p.Pos,
				Vel:        Vec2{-p.Vel.Y, p.Vel.X},
				Life:       p.Life,
				Splits:     p.Splits,
				Generation: p.Generation + 1,
			})
		}
	}

	if p.Life > 0 && p.Age >= p.Life {
		ctx.World.DestroyEntity(ctx.Self)
		ctx.World.TriggerEvent(EventExpire, p.Generation)
	}
}

func (p *Particle) Draw(rc ecs.RenderContext) {
	glyph := "*"
	if p.Generation > 0 {
		glyph = "."
	}
	rc.DrawText(p.Pos.X, p.Pos.Y, glyph)
}

func (p *Particle) State() any {
	return particleState{
		Pos:        p.Pos,
		Vel:        p.Vel,
		Age:        p.Age,
		Life:       p.Life,
		Splits:     p.Splits,
		Generation: p.Generation,
		Bounces:    p.Bounces,
	}
}
