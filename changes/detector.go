// Package changes tracks, per consumer, which archetype columns were written since the consumer last
// looked at them.
package changes

import (
	"pkg.world.dev/world-engine/ecstore/component"
	"pkg.world.dev/world-engine/ecstore/types"
)

// ArchetypeRef is the read side of an archetype the detector needs. *gamestate.Archetype implements it.
type ArchetypeRef interface {
	ID() types.ArchetypeID
	DataVersion(desc component.Desc) (uint64, bool)
}

type key struct {
	arch types.ArchetypeID
	comp types.ComponentID
}

type seen struct {
	data   uint64
	layout uint64
}

// Detector is one consumer's cursor over a world. Each independent consumer owns its own Detector.
type Detector struct {
	seen map[key]seen
}

func New() *Detector {
	return &Detector{seen: make(map[key]seen)}
}

// Changed reports whether the desc column of arch was written, or arch's layout changed, since the last
// call for the same pair. The first call for a pair always reports true. Every call records the current
// versions, so a change is reported once.
func (d *Detector) Changed(arch ArchetypeRef, desc component.Desc, layoutVersion uint64) bool {
	data, ok := arch.DataVersion(desc)
	if !ok {
		return false
	}
	k := key{arch: arch.ID(), comp: desc.ID()}
	prev, observed := d.seen[k]
	d.seen[k] = seen{data: data, layout: layoutVersion}
	return !observed || prev.data != data || prev.layout != layoutVersion
}

// Forget drops every cursor for arch; the next Changed call for it reports true.
func (d *Detector) Forget(arch types.ArchetypeID) {
	for k := range d.seen {
		if k.arch == arch {
			delete(d.seen, k)
		}
	}
}

func (d *Detector) Reset() {
	d.seen = make(map[key]seen)
}
