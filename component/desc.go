package component

import (
	"reflect"

	"github.com/invopop/jsonschema"
	"github.com/rotisserie/eris"

	"pkg.world.dev/world-engine/ecstore/types"
)

// Desc is a copyable handle to a registered component. The zero Desc is invalid.
type Desc struct {
	id  types.ComponentID
	reg *Registry
}

func (d Desc) entry() *registered {
	return &d.reg.components[d.id]
}

func (d Desc) Valid() bool {
	return d.reg != nil && d.id >= 0 && int(d.id) < len(d.reg.components)
}

func (d Desc) ID() types.ComponentID {
	return d.id
}

func (d Desc) Registry() *Registry {
	return d.reg
}

func (d Desc) Path() string {
	return d.entry().path
}

func (d Desc) String() string {
	if !d.Valid() {
		return "<invalid component>"
	}
	return d.Path()
}

func (d Desc) Type() reflect.Type {
	return d.entry().vtable.Type
}

func (d Desc) VTable() VTable {
	return d.entry().vtable
}

func (d Desc) Attributes() Attributes {
	return d.entry().attrs
}

func (d Desc) Has(flag Flag) bool {
	return d.entry().attrs.Has(flag)
}

// Name is the human readable name, falling back to the path.
func (d Desc) Name() string {
	if n := d.entry().attrs.Name; n != "" {
		return n
	}
	return d.Path()
}

// PrimitiveType reports the primitive type backing this component, if any.
func (d Desc) PrimitiveType() (PrimitiveType, bool) {
	pt := d.entry().primitive
	if pt == nil {
		return PrimitiveType{}, false
	}
	return *pt, true
}

// IsValidValue reports whether v can be stored in this component.
func (d Desc) IsValidValue(v any) bool {
	return reflect.TypeOf(v) == d.Type()
}

// Default synthesizes a fresh value: a copy of the WithDefault value, or the zero value.
func (d Desc) Default() (any, error) {
	if def, ok := d.Attributes().Default(); ok {
		return d.Clone(def)
	}
	return d.VTable().Zero(), nil
}

// Clone returns a copy of v that shares no memory with it.
func (d Desc) Clone(v any) (any, error) {
	out, err := d.VTable().Clone(v)
	if err != nil {
		return nil, eris.Wrapf(err, "component %q", d.Path())
	}
	return out, nil
}

func (d Desc) Encode(v any) ([]byte, error) {
	if !d.IsValidValue(v) {
		return nil, eris.Wrapf(ErrTypeMismatch, "component %q expects %s, got %T", d.Path(), d.Type(), v)
	}
	return d.VTable().Encode(v)
}

func (d Desc) Decode(bz []byte) (any, error) {
	v, err := d.VTable().Decode(bz)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to decode component %q", d.Path())
	}
	return v, nil
}

// Schema returns the JSON schema of the component's value type.
func (d Desc) Schema() ([]byte, error) {
	schema, err := jsonschema.ReflectFromType(d.Type()).MarshalJSON()
	if err != nil {
		return nil, eris.Wrapf(err, "component %q must be json serializable", d.Path())
	}
	return schema, nil
}

// Typed is a descriptor whose Go value type is known at compile time.
type Typed[T any] struct {
	Desc
}
