// Package entity issues entity ids and tracks where each live entity is stored.
//
// Ids are partitioned by namespace. Only the local namespace is allocated from (and recycled into);
// other namespaces are populated through AllocateMirror when entities from a remote world are
// replicated and must keep their foreign identity.
package entity

import (
	"github.com/rotisserie/eris"

	"pkg.world.dev/world-engine/ecstore/types"
)

// DefaultMaxMirrorGap bounds how far past the end of the local slot table a mirrored local id may land.
const DefaultMaxMirrorGap = 1 << 20

var ErrIDOutOfRange = eris.New("entity id is outside the allocatable range")

type Allocator struct {
	local uint8
	// Local slots are dense. gens keeps the last generation handed out for each slot, so a recycled
	// slot continues from it even after its location was reset.
	locations []types.EntityLocation
	gens      []int32
	// Remote namespaces are never allocated from, so they are kept sparse.
	remote map[uint8]map[uint64]types.EntityLocation
	free   []uint64
	live   int
	maxGap uint64
}

type Option func(*Allocator)

// WithMaxMirrorGap sets how many slots past the current end of the local table AllocateMirror may grow.
func WithMaxMirrorGap(gap uint64) Option {
	return func(a *Allocator) {
		a.maxGap = gap
	}
}

// New creates an allocator that issues ids in the given local namespace.
func New(localNamespace uint8, opts ...Option) *Allocator {
	a := &Allocator{
		local:  localNamespace,
		remote: make(map[uint8]map[uint64]types.EntityLocation),
		maxGap: DefaultMaxMirrorGap,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Allocator) LocalNamespace() uint8 {
	return a.local
}

// Len returns the number of live ids across all namespaces.
func (a *Allocator) Len() int {
	return a.live
}

func (a *Allocator) grow(size int) {
	for len(a.locations) < size {
		a.locations = append(a.locations, types.EmptyLocation)
		a.gens = append(a.gens, -1)
	}
}

// Allocate returns count fresh ids in the local namespace. Freed slots are reused first (most recently
// freed first) with their generation bumped by one; after that new slots are appended. Every returned id
// is live immediately with a location of types.NoArchetype; callers place it with Set.
func (a *Allocator) Allocate(count int) []types.EntityID {
	ids := make([]types.EntityID, 0, count)
	for len(ids) < count && len(a.free) > 0 {
		last := len(a.free) - 1
		slot := a.free[last]
		a.free = a.free[:last]
		ids = append(ids, a.occupy(slot, a.gens[slot]+1))
	}
	for len(ids) < count {
		slot := uint64(len(a.locations))
		a.grow(len(a.locations) + 1)
		ids = append(ids, a.occupy(slot, 0))
	}
	return ids
}

func (a *Allocator) occupy(slot uint64, gen int32) types.EntityID {
	a.gens[slot] = gen
	a.locations[slot] = unplaced(gen)
	a.live++
	return types.EntityID{Namespace: a.local, ID: slot, Gen: gen}
}

func unplaced(gen int32) types.EntityLocation {
	return types.EntityLocation{Archetype: types.NoArchetype, Index: -1, Gen: gen}
}

// AllocateMirror makes an externally assigned id live. It returns false, and changes nothing, when the
// slot is already occupied, so callers can tell a first mirror from a repeated one. Local ids more than
// the mirror gap past the end of the slot table fail with ErrIDOutOfRange.
func (a *Allocator) AllocateMirror(id types.EntityID) (bool, error) {
	if id.IsNull() || id.Gen < 0 {
		return false, eris.Wrapf(ErrIDOutOfRange, "entity %s has a negative generation", id)
	}
	if id.Namespace != a.local {
		ns, ok := a.remote[id.Namespace]
		if !ok {
			ns = make(map[uint64]types.EntityLocation)
			a.remote[id.Namespace] = ns
		}
		if _, taken := ns[id.ID]; taken {
			return false, nil
		}
		ns[id.ID] = unplaced(id.Gen)
		a.live++
		return true, nil
	}

	end := uint64(len(a.locations))
	switch {
	case id.ID < end:
		if !a.locations[id.ID].Empty() {
			return false, nil
		}
		a.removeFromFreeList(id.ID)
	case id.ID-end >= a.maxGap:
		return false, eris.Wrapf(ErrIDOutOfRange, "entity %s is more than %d slots past the %d allocated",
			id, a.maxGap, end)
	default:
		a.grow(int(id.ID) + 1)
		// Slots skipped over by the mirror stay allocatable locally.
		for slot := id.ID; slot > end; slot-- {
			a.free = append(a.free, slot-1)
		}
	}
	a.gens[id.ID] = id.Gen
	a.locations[id.ID] = unplaced(id.Gen)
	a.live++
	return true, nil
}

func (a *Allocator) removeFromFreeList(slot uint64) {
	for i, s := range a.free {
		if s == slot {
			a.free = append(a.free[:i], a.free[i+1:]...)
			return
		}
	}
}

// Get returns the location of id. It reports false for unknown ids and for stale handles whose
// generation no longer matches the slot.
func (a *Allocator) Get(id types.EntityID) (types.EntityLocation, bool) {
	loc, ok := a.slot(id)
	if !ok {
		return types.EmptyLocation, false
	}
	return *loc, true
}

// Set records the archetype and row of a live id.
func (a *Allocator) Set(id types.EntityID, arch types.ArchetypeID, index int) error {
	loc, ok := a.slot(id)
	if !ok {
		return eris.Errorf("cannot place entity %s: id is not live", id)
	}
	loc.Archetype = arch
	loc.Index = index
	a.store(id, loc)
	return nil
}

// SetIndex updates only the row of a live id, used after a swap-remove moved it.
func (a *Allocator) SetIndex(id types.EntityID, index int) error {
	loc, ok := a.slot(id)
	if !ok {
		return eris.Errorf("cannot move entity %s: id is not live", id)
	}
	loc.Index = index
	a.store(id, loc)
	return nil
}

// slot returns the live location of id. Local locations are returned in place; remote ones are copies
// that store writes back.
func (a *Allocator) slot(id types.EntityID) (*types.EntityLocation, bool) {
	var loc *types.EntityLocation
	if id.Namespace == a.local {
		if id.ID >= uint64(len(a.locations)) {
			return nil, false
		}
		loc = &a.locations[id.ID]
	} else {
		remote, ok := a.remote[id.Namespace][id.ID]
		if !ok {
			return nil, false
		}
		loc = &remote
	}
	if loc.Empty() || loc.Gen != id.Gen {
		return nil, false
	}
	return loc, true
}

func (a *Allocator) store(id types.EntityID, loc *types.EntityLocation) {
	if id.Namespace != a.local {
		a.remote[id.Namespace][id.ID] = *loc
	}
}

// Free releases removedID, whose row removedLoc was just swap-removed from its archetype. When the
// archetype's last row was moved into the hole, swappedID names that entity and its row is corrected to
// removedLoc.Index. Only local-namespace slots are recycled.
func (a *Allocator) Free(removedLoc types.EntityLocation, removedID, swappedID types.EntityID) {
	loc, ok := a.slot(removedID)
	if !ok {
		return
	}
	a.live--
	if removedID.Namespace == a.local {
		*loc = types.EmptyLocation
		a.free = append(a.free, removedID.ID)
	} else {
		delete(a.remote[removedID.Namespace], removedID.ID)
	}
	if swappedID != removedID {
		if swapped, ok := a.slot(swappedID); ok {
			swapped.Index = removedLoc.Index
			a.store(swappedID, swapped)
		}
	}
}

// CheckInvariants verifies that every live location points at a row holding its own id, and that no
// free slot is live. rows returns the entity column of an archetype.
func (a *Allocator) CheckInvariants(rows func(types.ArchetypeID) []types.EntityID) error {
	live := 0
	check := func(id types.EntityID, loc types.EntityLocation) error {
		live++
		if loc.Archetype == types.NoArchetype {
			return nil
		}
		ids := rows(loc.Archetype)
		if loc.Index < 0 || loc.Index >= len(ids) {
			return eris.Errorf("entity %s: row %d out of range for archetype %d (%d rows)",
				id, loc.Index, loc.Archetype, len(ids))
		}
		if ids[loc.Index] != id {
			return eris.Errorf("entity %s: row %d of archetype %d holds %s",
				id, loc.Index, loc.Archetype, ids[loc.Index])
		}
		return nil
	}
	for slot, loc := range a.locations {
		if loc.Empty() {
			continue
		}
		id := types.EntityID{Namespace: a.local, ID: uint64(slot), Gen: loc.Gen}
		if loc.Gen != a.gens[slot] {
			return eris.Errorf("entity %s: location generation %d differs from slot generation %d",
				id, loc.Gen, a.gens[slot])
		}
		if err := check(id, loc); err != nil {
			return err
		}
	}
	for ns, slots := range a.remote {
		for slot, loc := range slots {
			if err := check(types.EntityID{Namespace: ns, ID: slot, Gen: loc.Gen}, loc); err != nil {
				return err
			}
		}
	}
	if live != a.live {
		return eris.Errorf("live count %d does not match %d occupied slots", a.live, live)
	}
	seen := make(map[uint64]bool, len(a.free))
	for _, slot := range a.free {
		if seen[slot] {
			return eris.Errorf("slot %d is on the free list twice", slot)
		}
		seen[slot] = true
		if slot >= uint64(len(a.locations)) || !a.locations[slot].Empty() {
			return eris.Errorf("free slot %d is occupied", slot)
		}
	}
	return nil
}
