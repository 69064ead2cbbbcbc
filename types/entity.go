package types

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// EntityID identifies an entity. Namespace partitions the id space between independently allocating
// sources (the local world and mirrored remote worlds), and Gen is bumped every time the ID slot is
// recycled so that stale handles can be detected.
type EntityID struct {
	Namespace uint8
	ID        uint64
	Gen       int32
}

var (
	// NullEntityID is the canonical "no entity" value.
	NullEntityID = EntityID{Gen: -1}

	// ResourceEntityID is the reserved entity that holds world resources.
	ResourceEntityID = EntityID{}
)

// IsNull reports whether id is the null sentinel.
func (id EntityID) IsNull() bool {
	return id.Gen == -1
}

// String renders the id in its wire form, "<namespace>:<id>:<gen>".
func (id EntityID) String() string {
	return fmt.Sprintf("%d:%d:%d", id.Namespace, id.ID, id.Gen)
}

func (id EntityID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *EntityID) UnmarshalText(text []byte) error {
	parsed, err := ParseEntityID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseEntityID parses the "<namespace>:<id>:<gen>" form produced by EntityID.String.
func ParseEntityID(s string) (EntityID, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 { //nolint:gomnd // namespace, id, gen
		return NullEntityID, eris.Errorf("invalid entity id %q: expected <namespace>:<id>:<gen>", s)
	}
	ns, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return NullEntityID, eris.Wrapf(err, "invalid namespace in entity id %q", s)
	}
	id, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return NullEntityID, eris.Wrapf(err, "invalid id in entity id %q", s)
	}
	gen, err := strconv.ParseInt(parts[2], 10, 32)
	if err != nil {
		return NullEntityID, eris.Wrapf(err, "invalid generation in entity id %q", s)
	}
	return EntityID{Namespace: uint8(ns), ID: id, Gen: int32(gen)}, nil
}

// Compare orders ids by namespace, then id, then generation.
func Compare(a, b EntityID) int {
	if c := cmp.Compare(a.Namespace, b.Namespace); c != 0 {
		return c
	}
	if c := cmp.Compare(a.ID, b.ID); c != 0 {
		return c
	}
	return cmp.Compare(a.Gen, b.Gen)
}

// ArchetypeID is the index of an archetype inside a world.
type ArchetypeID int

// NoArchetype marks an entity that has been allocated but not yet placed.
const NoArchetype ArchetypeID = -1

// EntityLocation records where an entity currently lives. Gen < 0 marks an empty slot.
type EntityLocation struct {
	Archetype ArchetypeID
	Index     int
	Gen       int32
}

// EmptyLocation is the value stored for unallocated slots.
var EmptyLocation = EntityLocation{Archetype: NoArchetype, Index: -1, Gen: -1}

// Empty reports whether the location belongs to no entity.
func (l EntityLocation) Empty() bool {
	return l.Gen < 0
}
