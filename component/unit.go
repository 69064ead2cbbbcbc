package component

import (
	"bytes"

	"github.com/rotisserie/eris"

	"pkg.world.dev/world-engine/ecstore/codec"
	"pkg.world.dev/world-engine/ecstore/types"
)

// EntityWriter is implemented by stores that accept type-erased component writes. Implementations keep
// a copy of value, never value itself.
type EntityWriter interface {
	SetRaw(id types.EntityID, desc Desc, value any) error
	AddRaw(id types.EntityID, desc Desc, value any) error
}

// Unit owns exactly one component value together with its descriptor.
type Unit struct {
	desc  Desc
	value any
}

func NewUnit[T any](c Typed[T], value T) Unit {
	return Unit{desc: c.Desc, value: value}
}

// NewUnitRaw wraps a value whose type is only known at runtime. It fails with ErrTypeMismatch when the
// value's dynamic type is not the descriptor's type.
func NewUnitRaw(desc Desc, value any) (Unit, error) {
	if !desc.Valid() {
		return Unit{}, eris.Wrap(ErrComponentNotRegistered, "invalid component descriptor")
	}
	if !desc.IsValidValue(value) {
		return Unit{}, eris.Wrapf(ErrTypeMismatch, "component %q expects %s, got %T", desc.Path(), desc.Type(), value)
	}
	return Unit{desc: desc, value: value}, nil
}

func (u Unit) Desc() Desc {
	return u.desc
}

func (u Unit) Value() any {
	return u.value
}

func (u Unit) Clone() (Unit, error) {
	value, err := u.desc.Clone(u.value)
	if err != nil {
		return Unit{}, err
	}
	return Unit{desc: u.desc, value: value}, nil
}

func (u Unit) Equal(other Unit) bool {
	return u.desc == other.desc && u.desc.VTable().Equal(u.value, other.value)
}

func (u Unit) Debug() string {
	return u.desc.Path() + ": " + u.desc.VTable().Debug(u.value)
}

// SetAtEntity writes the value to an existing component of id. Writers store their own copy.
func (u Unit) SetAtEntity(w EntityWriter, id types.EntityID) error {
	return w.SetRaw(id, u.desc, u.value)
}

// AddToEntity adds the value as a new component of id. Writers store their own copy.
func (u Unit) AddToEntity(w EntityWriter, id types.EntityID) error {
	return w.AddRaw(id, u.desc, u.value)
}

// MarshalJSON encodes the unit as ["<path>", <value>].
func (u Unit) MarshalJSON() ([]byte, error) {
	path, err := codec.Encode(u.desc.Path())
	if err != nil {
		return nil, err
	}
	value, err := u.desc.Encode(u.value)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	buf.Write(path)
	buf.WriteByte(',')
	buf.Write(value)
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// DecodeUnit reads the ["<path>", <value>] form. The path is resolved first and its descriptor decodes
// the value.
func DecodeUnit(r *Registry, bz []byte) (Unit, error) {
	pair, err := codec.Decode[[]codec.RawMessage](bz)
	if err != nil {
		return Unit{}, eris.Wrap(err, "component unit must be a [path, value] pair")
	}
	if len(pair) != 2 { //nolint:gomnd // path, value
		return Unit{}, eris.Errorf("component unit must be a [path, value] pair, got %d elements", len(pair))
	}
	path, err := codec.Decode[string](pair[0])
	if err != nil {
		return Unit{}, eris.Wrap(err, "component unit path must be a string")
	}
	desc, err := r.ByPath(path)
	if err != nil {
		return Unit{}, err
	}
	value, err := desc.Decode(pair[1])
	if err != nil {
		return Unit{}, err
	}
	return Unit{desc: desc, value: value}, nil
}
