package gamestate

import (
	"github.com/rotisserie/eris"

	"pkg.world.dev/world-engine/ecstore/search/filter"
	"pkg.world.dev/world-engine/ecstore/types"
)

type CallbackFn func(types.EntityID) bool

var ErrNoMatch = eris.New("no entity matches the search")

type cache struct {
	archetypes []types.ArchetypeID
	seen       int
}

// Search iterates the entities of every archetype matching a filter. Matching archetypes are cached, and
// only archetypes created since the last evaluation are checked again, so a Search should be kept and
// reused rather than rebuilt every tick.
type Search struct {
	archMatches *cache
	filter      filter.ComponentFilter
	world       *World
}

func (w *World) Search(f filter.ComponentFilter) *Search {
	return &Search{
		archMatches: &cache{},
		filter:      f,
		world:       w,
	}
}

// Archetypes returns the archetypes matching the filter, in creation order.
func (s *Search) Archetypes() []*Archetype {
	ids := s.evaluateSearch()
	out := make([]*Archetype, len(ids))
	for i, id := range ids {
		out[i] = s.world.archetypes[id]
	}
	return out
}

// Each iterates over all entities that match the search.
// If you would like to stop the iteration, return false to the callback. To continue iterating, return true.
// The world must not be structurally modified from inside the callback.
func (s *Search) Each(callback CallbackFn) {
	for _, archID := range s.evaluateSearch() {
		for _, id := range s.world.archetypes[archID].entities {
			if !callback(id) {
				return
			}
		}
	}
}

// Count returns the number of entities that match the search.
func (s *Search) Count() int {
	n := 0
	for _, archID := range s.evaluateSearch() {
		n += len(s.world.archetypes[archID].entities)
	}
	return n
}

// First returns the first entity that matches the search.
func (s *Search) First() (types.EntityID, error) {
	for _, archID := range s.evaluateSearch() {
		if ids := s.world.archetypes[archID].entities; len(ids) > 0 {
			return ids[0], nil
		}
	}
	return types.NullEntityID, eris.Wrap(ErrNoMatch, "")
}

// Collect returns every matching entity. Unlike Each, the result stays valid while the world changes.
func (s *Search) Collect() []types.EntityID {
	out := make([]types.EntityID, 0, s.Count())
	s.Each(func(id types.EntityID) bool {
		out = append(out, id)
		return true
	})
	return out
}

func (s *Search) evaluateSearch() []types.ArchetypeID {
	c := s.archMatches
	for i := c.seen; i < len(s.world.archetypes); i++ {
		if s.filter.MatchesComponents(s.world.archetypes[i].components) {
			c.archetypes = append(c.archetypes, types.ArchetypeID(i))
		}
	}
	c.seen = len(s.world.archetypes)
	return c.archetypes
}
