package component

import (
	"bytes"

	"pkg.world.dev/world-engine/ecstore/codec"
	"pkg.world.dev/world-engine/ecstore/types"
)

// EntitySpawner creates an entity from a bundle.
type EntitySpawner interface {
	SpawnBundle(b *Bundle) (types.EntityID, error)
}

// Bundle is an insertion-ordered set of units with at most one unit per component.
type Bundle struct {
	units []Unit
}

// NewBundle builds a bundle; a later unit for the same component replaces the earlier one.
func NewBundle(units ...Unit) *Bundle {
	b := &Bundle{units: make([]Unit, 0, len(units))}
	for _, u := range units {
		b.Set(u)
	}
	return b
}

func (b *Bundle) index(desc Desc) int {
	for i, u := range b.units {
		if u.desc == desc {
			return i
		}
	}
	return -1
}

// Set adds u, or replaces the unit for the same component in place.
func (b *Bundle) Set(u Unit) *Bundle {
	if i := b.index(u.desc); i >= 0 {
		b.units[i] = u
	} else {
		b.units = append(b.units, u)
	}
	return b
}

func (b *Bundle) Get(desc Desc) (Unit, bool) {
	if i := b.index(desc); i >= 0 {
		return b.units[i], true
	}
	return Unit{}, false
}

func (b *Bundle) Has(desc Desc) bool {
	return b.index(desc) >= 0
}

func (b *Bundle) Remove(desc Desc) bool {
	i := b.index(desc)
	if i < 0 {
		return false
	}
	b.units = append(b.units[:i], b.units[i+1:]...)
	return true
}

func (b *Bundle) Len() int {
	return len(b.units)
}

// Units returns the units in insertion order.
func (b *Bundle) Units() []Unit {
	out := make([]Unit, len(b.units))
	copy(out, b.units)
	return out
}

func (b *Bundle) Descs() []Desc {
	out := make([]Desc, len(b.units))
	for i, u := range b.units {
		out[i] = u.desc
	}
	return out
}

func (b *Bundle) Clone() (*Bundle, error) {
	out := &Bundle{units: make([]Unit, len(b.units))}
	for i, u := range b.units {
		c, err := u.Clone()
		if err != nil {
			return nil, err
		}
		out.units[i] = c
	}
	return out, nil
}

func (b *Bundle) Spawn(s EntitySpawner) (types.EntityID, error) {
	return s.SpawnBundle(b)
}

// MarshalJSON encodes the bundle as an object of path to value, in insertion order.
func (b *Bundle) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, u := range b.units {
		if i > 0 {
			buf.WriteByte(',')
		}
		path, err := codec.Encode(u.desc.Path())
		if err != nil {
			return nil, err
		}
		value, err := u.desc.Encode(u.value)
		if err != nil {
			return nil, err
		}
		buf.Write(path)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
