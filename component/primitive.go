package component

import (
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"pkg.world.dev/world-engine/ecstore/types"
)

// Value types backing the primitive component kinds that have no direct Go builtin.
type (
	EmptyValue struct{}
	Vec2       [2]float32
	Vec3       [3]float32
	Vec4       [4]float32
	UVec2      [2]uint32
	UVec3      [3]uint32
	UVec4      [4]uint32
	Quat       [4]float32
	Mat4       [16]float32
)

type PrimitiveKind uint8

const (
	KindEmpty PrimitiveKind = iota
	KindBool
	KindEntityID
	KindF32
	KindF64
	KindI8
	KindI16
	KindI32
	KindI64
	KindU8
	KindU16
	KindU32
	KindU64
	KindString
	KindVec2
	KindVec3
	KindVec4
	KindUVec2
	KindUVec3
	KindUVec4
	KindQuat
	KindMat4
	KindDuration
)

// Container selects the base, Vec<T> ([]T) or Option<T> (*T) variant of a primitive kind.
type Container uint8

const (
	Base Container = iota
	Vec
	Optional
)

// PrimitiveType is one registered (kind, container) combination, for example Vec<F32>.
type PrimitiveType struct {
	Kind      PrimitiveKind
	Container Container
}

func (p PrimitiveType) String() string {
	name := primitives[p.Kind].name
	switch p.Container {
	case Vec:
		return "Vec<" + name + ">"
	case Optional:
		return "Option<" + name + ">"
	default:
		return name
	}
}

// VTable returns the vtable shared by every component registered with this primitive type.
func (p PrimitiveType) VTable() VTable {
	return primitiveVTables[p]
}

type primitive struct {
	kind   PrimitiveKind
	name   string
	fanOut func() [3]VTable
}

// fanOut builds the base, Vec and Option vtables of a primitive. Primitive values hold no references, so
// the containers copy their elements directly.
func fanOut[T any]() [3]VTable {
	vec := VTableFor[[]T]()
	vec.Clone = func(v any) (any, error) {
		return slices.Clone(v.([]T)), nil
	}
	opt := VTableFor[*T]()
	opt.Clone = func(v any) (any, error) {
		p := v.(*T)
		if p == nil {
			return p, nil
		}
		c := *p
		return &c, nil
	}
	return [3]VTable{VTableFor[T](), vec, opt}
}

// primitives is the only list of primitive kinds. Name lookup, vtables and the Go type index are all
// derived from it in init.
var primitives = []primitive{
	{KindEmpty, "Empty", fanOut[EmptyValue]},
	{KindBool, "Bool", fanOut[bool]},
	{KindEntityID, "EntityId", fanOut[types.EntityID]},
	{KindF32, "F32", fanOut[float32]},
	{KindF64, "F64", fanOut[float64]},
	{KindI8, "I8", fanOut[int8]},
	{KindI16, "I16", fanOut[int16]},
	{KindI32, "I32", fanOut[int32]},
	{KindI64, "I64", fanOut[int64]},
	{KindU8, "U8", fanOut[uint8]},
	{KindU16, "U16", fanOut[uint16]},
	{KindU32, "U32", fanOut[uint32]},
	{KindU64, "U64", fanOut[uint64]},
	{KindString, "String", fanOut[string]},
	{KindVec2, "Vec2", fanOut[Vec2]},
	{KindVec3, "Vec3", fanOut[Vec3]},
	{KindVec4, "Vec4", fanOut[Vec4]},
	{KindUVec2, "UVec2", fanOut[UVec2]},
	{KindUVec3, "UVec3", fanOut[UVec3]},
	{KindUVec4, "UVec4", fanOut[UVec4]},
	{KindQuat, "Quat", fanOut[Quat]},
	{KindMat4, "Mat4", fanOut[Mat4]},
	{KindDuration, "Duration", fanOut[time.Duration]},
}

var (
	primitiveVTables = map[PrimitiveType]VTable{}
	primitiveByName  = map[string]PrimitiveType{}
	primitiveByType  = map[reflect.Type]PrimitiveType{}
)

func init() {
	for i, p := range primitives {
		if p.kind != PrimitiveKind(i) {
			panic("primitive table out of order at " + p.name)
		}
		for c, vt := range p.fanOut() {
			pt := PrimitiveType{Kind: p.kind, Container: Container(c)}
			primitiveVTables[pt] = vt
			primitiveByName[strings.ToLower(pt.String())] = pt
			primitiveByType[vt.Type] = pt
		}
	}
}

// ParsePrimitiveType resolves names like "F32", "Vec<String>" or "Option<EntityId>", ignoring case.
func ParsePrimitiveType(name string) (PrimitiveType, error) {
	pt, ok := primitiveByName[strings.ToLower(strings.ReplaceAll(name, " ", ""))]
	if !ok {
		return PrimitiveType{}, eris.Errorf("unknown primitive component type %q", name)
	}
	return pt, nil
}

// PrimitiveTypeOf maps a Go type back to its primitive type.
func PrimitiveTypeOf(t reflect.Type) (PrimitiveType, bool) {
	pt, ok := primitiveByType[t]
	return pt, ok
}

// PrimitiveTypes lists every base, Vec and Option combination in table order.
func PrimitiveTypes() []PrimitiveType {
	out := make([]PrimitiveType, 0, len(primitives)*3) //nolint:gomnd // three containers
	for _, p := range primitives {
		for _, c := range []Container{Base, Vec, Optional} {
			out = append(out, PrimitiveType{Kind: p.kind, Container: c})
		}
	}
	return out
}
