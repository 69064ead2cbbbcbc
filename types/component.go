package types

// ComponentID is the process-lifetime index the registry assigns to a component path.
type ComponentID int
