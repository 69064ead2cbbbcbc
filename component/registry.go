package component

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"pkg.world.dev/world-engine/ecstore/types"
)

var (
	ErrComponentNotRegistered = eris.New("component not registered")
	ErrTypeMismatch           = eris.New("component type mismatch")
	ErrRegistrySealed         = eris.New("component registry is sealed")
	ErrInvalidPath            = eris.New("invalid component path")
)

var pathSegment = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type registered struct {
	path      string
	vtable    VTable
	attrs     Attributes
	primitive *PrimitiveType
}

// Registry maps component paths to type-erased descriptors. Registration happens at startup; creating a
// world seals the registry, after which its contents never change and it can be read from any goroutine.
type Registry struct {
	components []registered
	byPath     map[string]types.ComponentID
	byType     map[reflect.Type][]types.ComponentID
	sealed     bool
}

func NewRegistry() *Registry {
	return &Registry{
		byPath: make(map[string]types.ComponentID),
		byType: make(map[reflect.Type][]types.ComponentID),
	}
}

// ValidatePath checks that path is a non-empty "::"-separated list of identifiers.
func ValidatePath(path string) error {
	if path == "" {
		return eris.Wrap(ErrInvalidPath, "path is empty")
	}
	for _, seg := range strings.Split(path, "::") {
		if !pathSegment.MatchString(seg) {
			return eris.Wrapf(ErrInvalidPath, "%q: bad segment %q", path, seg)
		}
	}
	return nil
}

// Register assigns a descriptor to path. Registering the same path again with the same Go type returns
// the existing descriptor unchanged; a different type is rejected with ErrTypeMismatch.
func (r *Registry) Register(path string, vt VTable, opts ...Option) (Desc, error) {
	return r.register(path, vt, nil, opts)
}

// RegisterExternal registers a component whose type is only known at runtime by its primitive type, as
// declared in a user schema.
func (r *Registry) RegisterExternal(path string, pt PrimitiveType, opts ...Option) (Desc, error) {
	vt, ok := primitiveVTables[pt]
	if !ok {
		return Desc{}, eris.Errorf("unknown primitive type %v for component %q", pt, path)
	}
	return r.register(path, vt, &pt, opts)
}

func (r *Registry) register(path string, vt VTable, pt *PrimitiveType, opts []Option) (Desc, error) {
	if err := ValidatePath(path); err != nil {
		return Desc{}, err
	}
	if vt.Type == nil {
		return Desc{}, eris.Errorf("component %q registered without a type", path)
	}
	if id, ok := r.byPath[path]; ok {
		existing := r.components[id]
		if existing.vtable.Type != vt.Type {
			return Desc{}, eris.Wrapf(ErrTypeMismatch, "component %q is registered as %s, cannot re-register as %s",
				path, existing.vtable.Type, vt.Type)
		}
		return Desc{id: id, reg: r}, nil
	}
	if r.sealed {
		return Desc{}, eris.Wrapf(ErrRegistrySealed, "cannot register component %q", path)
	}

	var attrs Attributes
	for _, opt := range opts {
		opt(&attrs)
	}
	if def, ok := attrs.Default(); ok && reflect.TypeOf(def) != vt.Type {
		return Desc{}, eris.Wrapf(ErrTypeMismatch, "default value for %q has type %T, expected %s",
			path, def, vt.Type)
	}
	if pt == nil {
		if found, ok := primitiveByType[vt.Type]; ok {
			pt = &found
		}
	}

	id := types.ComponentID(len(r.components))
	r.components = append(r.components, registered{path: path, vtable: vt, attrs: attrs, primitive: pt})
	r.byPath[path] = id
	r.byType[vt.Type] = append(r.byType[vt.Type], id)
	return Desc{id: id, reg: r}, nil
}

func (r *Registry) ByPath(path string) (Desc, error) {
	id, ok := r.byPath[path]
	if !ok {
		return Desc{}, eris.Wrap(ErrComponentNotRegistered, fmt.Sprintf("component %q is not registered", path))
	}
	return Desc{id: id, reg: r}, nil
}

func (r *Registry) ByID(id types.ComponentID) (Desc, error) {
	if id < 0 || int(id) >= len(r.components) {
		return Desc{}, eris.Wrapf(ErrComponentNotRegistered, "component id %d is not registered", id)
	}
	return Desc{id: id, reg: r}, nil
}

// ByType returns every component registered with Go type t, in registration order.
func (r *Registry) ByType(t reflect.Type) []Desc {
	ids := r.byType[t]
	out := make([]Desc, 0, len(ids))
	for _, id := range ids {
		out = append(out, Desc{id: id, reg: r})
	}
	return out
}

// Components returns every registered descriptor ordered by id.
func (r *Registry) Components() []Desc {
	out := make([]Desc, len(r.components))
	for i := range r.components {
		out[i] = Desc{id: types.ComponentID(i), reg: r}
	}
	return out
}

func (r *Registry) Len() int {
	return len(r.components)
}

// Seal stops further registration of new paths. Idempotent re-registration still succeeds.
func (r *Registry) Seal() {
	r.sealed = true
}

func (r *Registry) Sealed() bool {
	return r.sealed
}

// Register registers T under path and returns a typed descriptor.
func Register[T any](r *Registry, path string, opts ...Option) (Typed[T], error) {
	desc, err := r.Register(path, VTableFor[T](), opts...)
	if err != nil {
		return Typed[T]{}, err
	}
	return Typed[T]{Desc: desc}, nil
}

// MustRegister is Register for package-level setup where a failure is a programming error.
func MustRegister[T any](r *Registry, path string, opts ...Option) Typed[T] {
	c, err := Register[T](r, path, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the typed descriptor already registered under path.
func Lookup[T any](r *Registry, path string) (Typed[T], error) {
	desc, err := r.ByPath(path)
	if err != nil {
		return Typed[T]{}, err
	}
	if want := reflect.TypeOf((*T)(nil)).Elem(); desc.Type() != want {
		return Typed[T]{}, eris.Wrapf(ErrTypeMismatch, "component %q has type %s, not %s", path, desc.Type(), want)
	}
	return Typed[T]{Desc: desc}, nil
}
