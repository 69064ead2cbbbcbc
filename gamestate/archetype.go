package gamestate

import (
	"sort"
	"strconv"
	"strings"

	"pkg.world.dev/world-engine/ecstore/component"
	"pkg.world.dev/world-engine/ecstore/types"
)

// Archetype holds every entity that has exactly the same component set. Each component is stored as a
// column; row i of every column belongs to entities[i].
type Archetype struct {
	id         types.ArchetypeID
	components []component.Desc
	colIndex   map[types.ComponentID]int
	entities   []types.EntityID
	columns    [][]any

	dataVersions  []uint64
	layoutVersion uint64
}

func newArchetype(id types.ArchetypeID, comps []component.Desc) *Archetype {
	a := &Archetype{
		id:           id,
		components:   comps,
		colIndex:     make(map[types.ComponentID]int, len(comps)),
		columns:      make([][]any, len(comps)),
		dataVersions: make([]uint64, len(comps)),
	}
	for i, c := range comps {
		a.colIndex[c.ID()] = i
	}
	return a
}

func (a *Archetype) ID() types.ArchetypeID {
	return a.id
}

// Components returns the component set ordered by component id. The slice must not be modified.
func (a *Archetype) Components() []component.Desc {
	return a.components
}

func (a *Archetype) Has(desc component.Desc) bool {
	_, ok := a.column(desc)
	return ok
}

func (a *Archetype) Len() int {
	return len(a.entities)
}

// Entities returns the entity of every row. The slice must not be modified.
func (a *Archetype) Entities() []types.EntityID {
	return a.entities
}

// LayoutVersion changes whenever a row is added to or removed from the archetype.
func (a *Archetype) LayoutVersion() uint64 {
	return a.layoutVersion
}

// DataVersion returns the world version of the last write to the desc column.
func (a *Archetype) DataVersion(desc component.Desc) (uint64, bool) {
	col, ok := a.column(desc)
	if !ok {
		return 0, false
	}
	return a.dataVersions[col], true
}

// Value returns the stored value of desc at row. The value is owned by the world.
func (a *Archetype) Value(row int, desc component.Desc) (any, bool) {
	col, ok := a.column(desc)
	if !ok || row < 0 || row >= len(a.entities) {
		return nil, false
	}
	return a.columns[col][row], true
}

func (a *Archetype) column(desc component.Desc) (int, bool) {
	if desc.Registry() == nil {
		return 0, false
	}
	col, ok := a.colIndex[desc.ID()]
	if !ok || a.components[col] != desc {
		return 0, false
	}
	return col, true
}

// push appends a row. values are in column order.
func (a *Archetype) push(id types.EntityID, values []any, version uint64) int {
	a.entities = append(a.entities, id)
	for col := range a.columns {
		a.columns[col] = append(a.columns[col], values[col])
		a.dataVersions[col] = version
	}
	a.layoutVersion = version
	return len(a.entities) - 1
}

// swapRemove removes row by moving the last row into it. It returns the removed values in column order
// and the entity that now occupies row (the removed entity itself when row was the last one).
func (a *Archetype) swapRemove(row int, version uint64) (values []any, swapped types.EntityID) {
	last := len(a.entities) - 1
	removed := a.entities[row]
	values = make([]any, len(a.columns))
	for col := range a.columns {
		values[col] = a.columns[col][row]
		a.columns[col][row] = a.columns[col][last]
		a.columns[col][last] = nil
		a.columns[col] = a.columns[col][:last]
		a.dataVersions[col] = version
	}
	swapped = a.entities[last]
	a.entities[row] = swapped
	a.entities = a.entities[:last]
	a.layoutVersion = version
	if row == last {
		swapped = removed
	}
	return values, swapped
}

func (a *Archetype) set(row, col int, value any, version uint64) {
	a.columns[col][row] = value
	a.dataVersions[col] = version
}

func sortComponentSet(components []component.Desc) error {
	sort.Slice(components, func(i, j int) bool {
		return components[i].ID() < components[j].ID()
	})
	for i := 1; i < len(components); i++ {
		if components[i] == components[i-1] {
			return ErrDuplicateComponent
		}
	}
	return nil
}

func componentSetKey(components []component.Desc) string {
	var b strings.Builder
	for i, c := range components {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(int(c.ID())))
	}
	return b.String()
}
