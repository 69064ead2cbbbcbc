// Package gamestate stores entities and their components in archetypes.
//
// Entities that share a component set live in the same archetype, which stores each component as a
// column. Every write stamps the affected column with a fresh world version, and every row insert or
// removal stamps the archetype's layout version, so incremental consumers can skip unchanged data.
//
// A World is not safe for concurrent use. Share one between goroutines through Shared.
package gamestate

import (
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"pkg.world.dev/world-engine/ecstore/component"
	"pkg.world.dev/world-engine/ecstore/entity"
	"pkg.world.dev/world-engine/ecstore/log"
	"pkg.world.dev/world-engine/ecstore/types"
)

// Interface guards
var (
	_ component.EntityWriter  = (*World)(nil)
	_ component.EntitySpawner = (*World)(nil)
)

type World struct {
	registry   *component.Registry
	logger     zerolog.Logger
	namespace  uint8
	mirrorGap  uint64
	entities   *entity.Allocator
	archetypes []*Archetype
	archByKey  map[string]types.ArchetypeID
	version    uint64
	resource   types.EntityID
}

type Option func(*World)

func WithLogger(logger zerolog.Logger) Option {
	return func(w *World) {
		w.logger = logger
	}
}

// WithNamespace sets the namespace new entities are allocated in. Defaults to 0.
func WithNamespace(ns uint8) Option {
	return func(w *World) {
		w.namespace = ns
	}
}

// WithMaxMirrorGap bounds how far past the highest local slot a mirrored local id may be placed.
// Defaults to entity.DefaultMaxMirrorGap.
func WithMaxMirrorGap(gap uint64) Option {
	return func(w *World) {
		w.mirrorGap = gap
	}
}

// NewWorld creates an empty world over registry and seals the registry. The first allocated entity is the
// resource entity, which starts with no components.
func NewWorld(registry *component.Registry, opts ...Option) *World {
	w := &World{
		registry:  registry,
		logger:    zerolog.Nop(),
		mirrorGap: entity.DefaultMaxMirrorGap,
		archByKey: make(map[string]types.ArchetypeID),
	}
	for _, opt := range opts {
		opt(w)
	}
	registry.Seal()
	w.entities = entity.New(w.namespace, entity.WithMaxMirrorGap(w.mirrorGap))
	w.getOrMakeArchetype(nil)
	w.resource = w.entities.Allocate(1)[0]
	w.placeNew(w.resource, nil, nil)
	return w
}

func (w *World) Registry() *component.Registry {
	return w.registry
}

func (w *World) Logger() *zerolog.Logger {
	return &w.logger
}

// Version is the value of the world's version counter. It only grows.
func (w *World) Version() uint64 {
	return w.version
}

func (w *World) bump() uint64 {
	w.version++
	return w.version
}

// Len returns the number of live entities, including the resource entity.
func (w *World) Len() int {
	return w.entities.Len()
}

func (w *World) Namespace() uint8 {
	return w.namespace
}

func (w *World) Exists(id types.EntityID) bool {
	_, ok := w.entities.Get(id)
	return ok
}

func (w *World) Location(id types.EntityID) (types.EntityLocation, bool) {
	return w.entities.Get(id)
}

func (w *World) Archetypes() []*Archetype {
	return w.archetypes
}

func (w *World) Archetype(id types.ArchetypeID) (*Archetype, bool) {
	if id < 0 || int(id) >= len(w.archetypes) {
		return nil, false
	}
	return w.archetypes[id], true
}

func (w *World) ArchetypeOf(id types.EntityID) (*Archetype, error) {
	loc, ok := w.entities.Get(id)
	if !ok {
		return nil, eris.Wrapf(ErrEntityDoesNotExist, "entity %s", id)
	}
	return w.archetypes[loc.Archetype], nil
}

// CheckInvariants verifies that entity locations and archetype rows agree.
func (w *World) CheckInvariants() error {
	return w.entities.CheckInvariants(func(id types.ArchetypeID) []types.EntityID {
		if a, ok := w.Archetype(id); ok {
			return a.entities
		}
		return nil
	})
}

func (w *World) getOrMakeArchetype(comps []component.Desc) *Archetype {
	key := componentSetKey(comps)
	if id, ok := w.archByKey[key]; ok {
		return w.archetypes[id]
	}
	id := types.ArchetypeID(len(w.archetypes))
	arch := newArchetype(id, comps)
	w.archetypes = append(w.archetypes, arch)
	w.archByKey[key] = id
	w.logger.Debug().Int("archetype_id", int(id)).Msg("created")
	return arch
}

func (w *World) checkDesc(desc component.Desc) error {
	if !desc.Valid() {
		return eris.Wrap(component.ErrComponentNotRegistered, "invalid component descriptor")
	}
	if desc.Registry() != w.registry {
		return eris.Wrapf(ErrForeignComponent, "component %q", desc.Path())
	}
	return nil
}

func (w *World) checkValue(desc component.Desc, value any) error {
	if err := w.checkDesc(desc); err != nil {
		return err
	}
	if !desc.IsValidValue(value) {
		return eris.Wrapf(component.ErrTypeMismatch, "component %q expects %s, got %T", desc.Path(), desc.Type(), value)
	}
	return nil
}

// placeNew stores a freshly allocated id with the given components, in any order.
func (w *World) placeNew(id types.EntityID, descs []component.Desc, values []any) {
	byID := make(map[component.Desc]any, len(descs))
	for i, d := range descs {
		byID[d] = values[i]
	}
	sorted := append([]component.Desc(nil), descs...)
	_ = sortComponentSet(sorted) // callers reject duplicates
	arch := w.getOrMakeArchetype(sorted)
	row := make([]any, len(sorted))
	for i, d := range sorted {
		row[i] = byID[d]
	}
	index := arch.push(id, row, w.bump())
	if err := w.entities.Set(id, arch.id, index); err != nil {
		// id was allocated by the caller a moment ago.
		panic(err)
	}
	log.Entity(&w.logger, zerolog.DebugLevel, id, arch.id, sorted)
}

func (w *World) unpackBundle(b *component.Bundle) ([]component.Desc, []any, error) {
	units := b.Units()
	descs := make([]component.Desc, len(units))
	values := make([]any, len(units))
	seen := make(map[component.Desc]bool, len(units))
	for i, u := range units {
		if err := w.checkValue(u.Desc(), u.Value()); err != nil {
			return nil, nil, err
		}
		if seen[u.Desc()] {
			return nil, nil, eris.Wrapf(ErrDuplicateComponent, "component %q", u.Desc().Path())
		}
		seen[u.Desc()] = true
		value, err := u.Desc().Clone(u.Value())
		if err != nil {
			return nil, nil, err
		}
		descs[i] = u.Desc()
		values[i] = value
	}
	return descs, values, nil
}

// Spawn creates an entity with the given components.
func (w *World) Spawn(units ...component.Unit) (types.EntityID, error) {
	// NewBundle keeps the last unit per component, so duplicates are rejected before building it.
	seen := make(map[component.Desc]bool, len(units))
	for _, u := range units {
		if seen[u.Desc()] {
			return types.NullEntityID, eris.Wrapf(ErrDuplicateComponent, "component %q", u.Desc().Path())
		}
		seen[u.Desc()] = true
	}
	return w.SpawnBundle(component.NewBundle(units...))
}

// SpawnBundle creates an entity from a copy of every unit in b.
func (w *World) SpawnBundle(b *component.Bundle) (types.EntityID, error) {
	descs, values, err := w.unpackBundle(b)
	if err != nil {
		return types.NullEntityID, err
	}
	id := w.entities.Allocate(1)[0]
	w.placeNew(id, descs, values)
	return id, nil
}

// SpawnMirror creates an entity under an externally assigned id. It returns false, leaving the world
// unchanged, when that id is already live. Ids the allocator cannot hold fail with entity.ErrIDOutOfRange.
func (w *World) SpawnMirror(id types.EntityID, b *component.Bundle) (bool, error) {
	descs, values, err := w.unpackBundle(b)
	if err != nil {
		return false, err
	}
	ok, err := w.entities.AllocateMirror(id)
	if err != nil || !ok {
		return false, err
	}
	w.placeNew(id, descs, values)
	return true, nil
}

// Despawn removes id and returns its components.
func (w *World) Despawn(id types.EntityID) (*component.Bundle, error) {
	if id == w.resource {
		return nil, eris.Wrap(ErrResourceEntity, "")
	}
	loc, ok := w.entities.Get(id)
	if !ok {
		return nil, eris.Wrapf(ErrEntityDoesNotExist, "entity %s", id)
	}
	arch := w.archetypes[loc.Archetype]
	values, swapped := arch.swapRemove(loc.Index, w.bump())
	w.entities.Free(loc, id, swapped)

	out := component.NewBundle()
	for col, desc := range arch.components {
		u, err := component.NewUnitRaw(desc, values[col])
		if err != nil {
			return nil, err
		}
		out.Set(u)
	}
	w.logger.Debug().Str("entity_id", id.String()).Int("archetype_id", int(arch.id)).Msg("despawned")
	return out, nil
}

func (w *World) locate(id types.EntityID, desc component.Desc) (*Archetype, int, int, error) {
	if err := w.checkDesc(desc); err != nil {
		return nil, 0, 0, err
	}
	loc, ok := w.entities.Get(id)
	if !ok {
		return nil, 0, 0, eris.Wrapf(ErrEntityDoesNotExist, "entity %s", id)
	}
	arch := w.archetypes[loc.Archetype]
	col, ok := arch.column(desc)
	if !ok {
		return nil, 0, 0, eris.Wrapf(ErrComponentNotOnEntity, "component %q on entity %s", desc.Path(), id)
	}
	return arch, loc.Index, col, nil
}

// Get returns the value of desc on id. The returned value is owned by the world; clone it before
// mutating reference types.
func (w *World) Get(id types.EntityID, desc component.Desc) (any, error) {
	arch, row, col, err := w.locate(id, desc)
	if err != nil {
		return nil, err
	}
	return arch.columns[col][row], nil
}

// Set overwrites the value of an existing component with a copy of value.
func (w *World) Set(id types.EntityID, desc component.Desc, value any) error {
	if err := w.checkValue(desc, value); err != nil {
		return err
	}
	arch, row, col, err := w.locate(id, desc)
	if err != nil {
		return err
	}
	stored, err := desc.Clone(value)
	if err != nil {
		return err
	}
	arch.set(row, col, stored, w.bump())
	return nil
}

func (w *World) SetRaw(id types.EntityID, desc component.Desc, value any) error {
	return w.Set(id, desc, value)
}

func (w *World) AddRaw(id types.EntityID, desc component.Desc, value any) error {
	return w.Add(id, desc, value)
}

func (w *World) Has(id types.EntityID, desc component.Desc) (bool, error) {
	_, _, _, err := w.locate(id, desc)
	if eris.Is(err, ErrComponentNotOnEntity) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Add attaches a copy of value as a new component of id, moving it to the archetype of its new
// component set.
func (w *World) Add(id types.EntityID, desc component.Desc, value any) error {
	if err := w.checkValue(desc, value); err != nil {
		return err
	}
	loc, ok := w.entities.Get(id)
	if !ok {
		return eris.Wrapf(ErrEntityDoesNotExist, "entity %s", id)
	}
	from := w.archetypes[loc.Archetype]
	if from.Has(desc) {
		return eris.Wrapf(ErrComponentAlreadyOnEntity, "component %q on entity %s", desc.Path(), id)
	}
	stored, err := desc.Clone(value)
	if err != nil {
		return err
	}
	descs := append(append([]component.Desc(nil), from.components...), desc)
	_ = sortComponentSet(descs)
	w.migrate(id, loc, from, w.getOrMakeArchetype(descs), desc, stored)
	return nil
}

// AddDefault attaches desc with its synthesized default value.
func (w *World) AddDefault(id types.EntityID, desc component.Desc) error {
	if err := w.checkDesc(desc); err != nil {
		return err
	}
	value, err := desc.Default()
	if err != nil {
		return err
	}
	return w.Add(id, desc, value)
}

// Remove detaches desc from id and returns its last value.
func (w *World) Remove(id types.EntityID, desc component.Desc) (any, error) {
	arch, row, col, err := w.locate(id, desc)
	if err != nil {
		return nil, err
	}
	removed := arch.columns[col][row]
	descs := make([]component.Desc, 0, len(arch.components)-1)
	for _, c := range arch.components {
		if c != desc {
			descs = append(descs, c)
		}
	}
	loc, _ := w.entities.Get(id)
	w.migrate(id, loc, arch, w.getOrMakeArchetype(descs), desc, nil)
	return removed, nil
}

// migrate moves id from one archetype to another. extra is the added component's value, if any.
func (w *World) migrate(
	id types.EntityID, loc types.EntityLocation, from, to *Archetype, extraDesc component.Desc, extra any,
) {
	version := w.bump()
	values, swapped := from.swapRemove(loc.Index, version)
	if swapped != id {
		if err := w.entities.SetIndex(swapped, loc.Index); err != nil {
			panic(err)
		}
	}
	row := make([]any, len(to.components))
	for col, c := range to.components {
		if fromCol, ok := from.column(c); ok {
			row[col] = values[fromCol]
		} else if c == extraDesc {
			row[col] = extra
		}
	}
	index := to.push(id, row, version)
	if err := w.entities.Set(id, to.id, index); err != nil {
		panic(err)
	}
}

// Bundle returns a copy of every component of id, ordered by component id.
func (w *World) Bundle(id types.EntityID) (*component.Bundle, error) {
	loc, ok := w.entities.Get(id)
	if !ok {
		return nil, eris.Wrapf(ErrEntityDoesNotExist, "entity %s", id)
	}
	arch := w.archetypes[loc.Archetype]
	out := component.NewBundle()
	for col, desc := range arch.components {
		value, err := desc.Clone(arch.columns[col][loc.Index])
		if err != nil {
			return nil, err
		}
		u, err := component.NewUnitRaw(desc, value)
		if err != nil {
			return nil, err
		}
		out.Set(u)
	}
	return out, nil
}

func (w *World) ComponentsOf(id types.EntityID) ([]component.Desc, error) {
	arch, err := w.ArchetypeOf(id)
	if err != nil {
		return nil, err
	}
	return append([]component.Desc(nil), arch.components...), nil
}

// ChangedSince calls fn for every archetype whose desc column was written after version. Returning false
// stops the iteration.
func (w *World) ChangedSince(desc component.Desc, version uint64, fn func(*Archetype) bool) {
	for _, arch := range w.archetypes {
		v, ok := arch.DataVersion(desc)
		if !ok || v <= version {
			continue
		}
		if !fn(arch) {
			return
		}
	}
}

func (w *World) ResourceEntity() types.EntityID {
	return w.resource
}

// SetResource sets a value on the resource entity, adding the component if needed.
func (w *World) SetResource(desc component.Desc, value any) error {
	has, err := w.Has(w.resource, desc)
	if err != nil {
		return err
	}
	if has {
		return w.Set(w.resource, desc, value)
	}
	return w.Add(w.resource, desc, value)
}

func (w *World) Resource(desc component.Desc) (any, error) {
	return w.Get(w.resource, desc)
}
