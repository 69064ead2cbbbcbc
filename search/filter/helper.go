package filter

import (
	"pkg.world.dev/world-engine/ecstore/component"
)

// MatchComponent returns true if the given slice of components contains the given component.
func MatchComponent(components []component.Desc, c component.Desc) bool {
	for _, other := range components {
		if other == c {
			return true
		}
	}
	return false
}

// CreateComponentMatcher creates a function given a slice of components. This function will
// take a parameter that is a single component and return true if it is in the slice of components
// or false otherwise
func CreateComponentMatcher(components []component.Desc) func(component.Desc) bool {
	set := make(map[component.Desc]struct{}, len(components))
	for _, c := range components {
		set[c] = struct{}{}
	}
	return func(c component.Desc) bool {
		_, ok := set[c]
		return ok
	}
}
