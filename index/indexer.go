package index

import (
	"pkg.world.dev/world-engine/ecstore/changes"
	"pkg.world.dev/world-engine/ecstore/gamestate"
	"pkg.world.dev/world-engine/ecstore/search/filter"
	"pkg.world.dev/world-engine/ecstore/types"
)

// Indexer keeps an Index in sync with a world. Each Update re-keys the entities of archetypes whose
// indexed columns or layout changed, and drops entities that no longer match.
type Indexer struct {
	index    *Index
	filter   filter.ComponentFilter
	detector *changes.Detector
	world    *gamestate.World
	search   *gamestate.Search
	members  map[types.EntityID]types.ArchetypeID
}

// NewIndexer indexes entities in archetypes that match include, do not match exclude, and carry every
// index column. exclude may be nil.
func NewIndexer(idx *Index, include, exclude filter.ComponentFilter) *Indexer {
	f := filter.And(include, filter.Contains(idx.columns...))
	if exclude != nil {
		f = filter.And(f, filter.Not(exclude))
	}
	return &Indexer{
		index:    idx,
		filter:   f,
		detector: changes.New(),
		members:  make(map[types.EntityID]types.ArchetypeID),
	}
}

func (ix *Indexer) Index() *Index {
	return ix.index
}

// Update brings the index up to date with w.
func (ix *Indexer) Update(w *gamestate.World) {
	if ix.world != w {
		ix.reset(w)
	}
	changedArchs := make(map[types.ArchetypeID]bool)
	rekeyed := make(map[types.EntityID]bool)
	for _, arch := range ix.search.Archetypes() {
		changed := false
		for _, col := range ix.index.columns {
			// Every column is observed so each cursor advances.
			if ix.detector.Changed(arch, col, arch.LayoutVersion()) {
				changed = true
			}
		}
		if !changed {
			continue
		}
		changedArchs[arch.ID()] = true
		values := make([]any, len(ix.index.columns))
		for row, id := range arch.Entities() {
			for i, col := range ix.index.columns {
				values[i], _ = arch.Value(row, col)
			}
			_ = ix.index.Insert(id, values...)
			ix.members[id] = arch.ID()
			rekeyed[id] = true
		}
	}
	for id, archID := range ix.members {
		if rekeyed[id] {
			continue
		}
		if changedArchs[archID] || !w.Exists(id) {
			ix.index.Remove(id)
			delete(ix.members, id)
		}
	}
}

func (ix *Indexer) reset(w *gamestate.World) {
	ix.world = w
	ix.search = w.Search(ix.filter)
	ix.detector.Reset()
	for id := range ix.members {
		ix.index.Remove(id)
	}
	ix.members = make(map[types.EntityID]types.ArchetypeID)
}
