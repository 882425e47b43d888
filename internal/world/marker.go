package world

import "github.com/l1jgo/frameloop/internal/core/ecs"

// Marker is a static label. It is drawn but never updated.
type Marker struct {
	Pos   Vec2
	Label string
}

type markerState struct {
	Pos   Vec2   `yaml:"pos"`
	Label string `yaml:"label"`
}

func (m *Marker) TypeID() ecs.TypeID       { return TypeMarker }
func (m *Marker) Flags() ecs.Flags         { return ecs.FlagDrawable | ecs.FlagPersistent }
func (m *Marker) Update(ecs.UpdateContext) {}

func (m *Marker) Draw(rc ecs.RenderContext) {
	rc.DrawText(m.Pos.X, m.Pos.Y, m.Label)
}

func (m *Marker) State() any {
	return markerState{Pos: m.Pos, Label: m.Label}
}
