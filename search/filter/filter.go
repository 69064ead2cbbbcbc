// Package filter selects archetypes by their component set.
package filter

import (
	"pkg.world.dev/world-engine/ecstore/component"
)

// ComponentFilter is a filter that filters archetypes based on their components.
type ComponentFilter interface {
	// MatchesComponents returns true if an archetype with these components matches the filter.
	MatchesComponents(components []component.Desc) bool
}

type all struct{}

func All() ComponentFilter {
	return all{}
}

func (all) MatchesComponents([]component.Desc) bool {
	return true
}

type contains struct {
	components []component.Desc
}

// Contains matches archetypes that contain all the components specified.
func Contains(components ...component.Desc) ComponentFilter {
	return &contains{components: components}
}

func (f *contains) MatchesComponents(components []component.Desc) bool {
	for _, c := range f.components {
		if !MatchComponent(components, c) {
			return false
		}
	}
	return true
}

type exact struct {
	components []component.Desc
}

// Exact matches archetypes that contain exactly the same components specified.
func Exact(components ...component.Desc) ComponentFilter {
	return exact{components: components}
}

func (f exact) MatchesComponents(components []component.Desc) bool {
	if len(components) != len(f.components) {
		return false
	}
	matchComponent := CreateComponentMatcher(f.components)
	for _, c := range components {
		if !matchComponent(c) {
			return false
		}
	}
	return true
}

type not struct {
	filter ComponentFilter
}

func Not(filter ComponentFilter) ComponentFilter {
	return &not{filter: filter}
}

func (f *not) MatchesComponents(components []component.Desc) bool {
	return !f.filter.MatchesComponents(components)
}

type and struct {
	filters []ComponentFilter
}

func And(filters ...ComponentFilter) ComponentFilter {
	return &and{filters: filters}
}

func (f *and) MatchesComponents(components []component.Desc) bool {
	for _, filter := range f.filters {
		if !filter.MatchesComponents(components) {
			return false
		}
	}
	return true
}

type or struct {
	filters []ComponentFilter
}

func Or(filters ...ComponentFilter) ComponentFilter {
	return &or{filters: filters}
}

func (f *or) MatchesComponents(components []component.Desc) bool {
	for _, filter := range f.filters {
		if filter.MatchesComponents(components) {
			return true
		}
	}
	return false
}
