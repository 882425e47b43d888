package ecs

import (
	"fmt"
	"slices"
)

// matches reports whether e carries every flag in flags and, when types is
// non-empty, is one of types.
func matches(e Entity, types []TypeID, flags Flags) bool {
	if !e.Flags().Has(flags) {
		return false
	}
	return len(types) == 0 || slices.Contains(types, e.TypeID())
}

// GetEntities appends to out every entity matching the filters and returns
// the extended slice. It reads the authoritative collection and fails with
// ErrMisuse while entity updates or Draw are in flight.
func (w *World) GetEntities(out []Entity, types []TypeID, flags Flags) ([]Entity, error) {
	err := w.Each(types, flags, func(_ EntityID, e Entity) {
		out = append(out, e)
	})
	return out, err
}

// Each calls fn for every matching entity in insertion order. Allowed between
// frames and from deferred actions or event handlers; fn must not call
// Update, Draw or Reset.
func (w *World) Each(types []TypeID, flags Flags, fn func(EntityID, Entity)) error {
	if p := worldPhase(w.phase.Load()); p != phaseIdle && p != phaseSyncing {
		return fmt.Errorf("query while %s: %w", p, ErrMisuse)
	}
	for _, rec := range w.entities {
		if matches(rec.ent, types, flags) {
			fn(rec.id, rec.ent)
		}
	}
	return nil
}
