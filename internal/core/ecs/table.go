package ecs

// Removable is implemented by all side tables so the Registry can
// bulk-remove an entity's data on destroy.
type Removable interface {
	Remove(id EntityID)
}

// Table is a typed per-entity side table. It is not synchronized: write it
// from the sync goroutine only (between frames or inside deferred actions);
// entities may read it during Update.
type Table[T any] struct {
	data map[EntityID]*T
}

func NewTable[T any]() *Table[T] {
	return &Table[T]{
		data: make(map[EntityID]*T, 64),
	}
}

func (t *Table[T]) Set(id EntityID, v *T) { t.data[id] = v }

func (t *Table[T]) Get(id EntityID) (*T, bool) {
	v, ok := t.data[id]
	return v, ok
}

func (t *Table[T]) Remove(id EntityID) { delete(t.data, id) }

func (t *Table[T]) Has(id EntityID) bool {
	_, ok := t.data[id]
	return ok
}

func (t *Table[T]) Len() int { return len(t.data) }

func (t *Table[T]) Each(fn func(EntityID, *T)) {
	for id, v := range t.data {
		fn(id, v)
	}
}

// Registry tracks side tables and clears destroyed entities from all of them.
type Registry struct {
	tables []Removable
}

func NewRegistry() *Registry {
	return &Registry{
		tables: make([]Removable, 0, 8),
	}
}

func (r *Registry) Register(t Removable) {
	r.tables = append(r.tables, t)
}

// RemoveAll clears the given entity from every registered table.
func (r *Registry) RemoveAll(id EntityID) {
	for _, t := range r.tables {
		t.Remove(id)
	}
}
