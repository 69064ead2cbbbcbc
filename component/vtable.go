package component

import (
	"fmt"
	"reflect"

	"github.com/rotisserie/eris"

	"pkg.world.dev/world-engine/ecstore/codec"
)

// VTable is the set of type-erased operations the store needs for one component type. Values passed to
// these functions always have dynamic type Type.
type VTable struct {
	Type   reflect.Type
	Clone  func(v any) (any, error)
	Encode func(v any) ([]byte, error)
	Decode func(bz []byte) (any, error)
	Debug  func(v any) string
	Equal  func(a, b any) bool
	Zero   func() any
}

// Cloner lets a component type provide its own deep copy.
type Cloner[T any] interface {
	Clone() T
}

// VTableFor builds the vtable for T. Types without references are copied by assignment, types that
// implement Cloner[T] use it, slices and pointers of reference-free elements are copied element-wise,
// and everything else is deep-copied through the codec.
func VTableFor[T any]() VTable {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	var clone func(any) (any, error)
	var zero T
	_, valueCloner := any(zero).(Cloner[T])
	_, pointerCloner := any(&zero).(Cloner[T])
	switch {
	case valueCloner:
		clone = func(v any) (any, error) { return v.(Cloner[T]).Clone(), nil }
	case pointerCloner:
		clone = func(v any) (any, error) {
			t := v.(T)
			return any(&t).(Cloner[T]).Clone(), nil
		}
	case !hasReferences(typ):
		clone = func(v any) (any, error) { return v, nil }
	case typ.Kind() == reflect.Slice && !hasReferences(typ.Elem()):
		clone = func(v any) (any, error) {
			rv := reflect.ValueOf(v)
			if rv.IsNil() {
				return v, nil
			}
			out := reflect.MakeSlice(typ, rv.Len(), rv.Len())
			reflect.Copy(out, rv)
			return out.Interface(), nil
		}
	case typ.Kind() == reflect.Pointer && !hasReferences(typ.Elem()):
		clone = func(v any) (any, error) {
			rv := reflect.ValueOf(v)
			if rv.IsNil() {
				return v, nil
			}
			out := reflect.New(typ.Elem())
			out.Elem().Set(rv.Elem())
			return out.Interface(), nil
		}
	default:
		clone = func(v any) (any, error) {
			bz, err := codec.Encode(v)
			if err != nil {
				return nil, eris.Wrapf(err, "component value of type %s cannot be cloned", typ)
			}
			out, err := codec.Decode[T](bz)
			if err != nil {
				return nil, eris.Wrapf(err, "component value of type %s cannot be cloned", typ)
			}
			return out, nil
		}
	}
	return VTable{
		Type:  typ,
		Clone: clone,
		Encode: func(v any) ([]byte, error) {
			return codec.Encode(v)
		},
		Decode: func(bz []byte) (any, error) {
			v, err := codec.Decode[T](bz)
			if err != nil {
				return nil, err
			}
			return v, nil
		},
		Debug: func(v any) string {
			return fmt.Sprintf("%+v", v)
		},
		Equal: reflect.DeepEqual,
		Zero: func() any {
			return *new(T)
		},
	}
}

func hasReferences(t reflect.Type) bool {
	switch t.Kind() { //nolint:exhaustive // value kinds fall through to false
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface, reflect.Chan, reflect.Func,
		reflect.UnsafePointer:
		return true
	case reflect.Array:
		return hasReferences(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if hasReferences(t.Field(i).Type) {
				return true
			}
		}
	}
	return false
}
