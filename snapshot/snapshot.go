// Package snapshot converts a world to and from its JSON snapshot form:
//
//	{"<namespace>:<id>:<gen>": {"<component path>": <value>, ...}, ...}
//
// Serialize writes one entry per live entity, the resource entity included, with the components
// accepted by the filter. Deserialize is lenient: a bad entity key, unknown component path or value
// that fails to decode becomes a Warning and the rest of the snapshot is still applied.
// DeserializeStrict fails on the first such problem instead.
package snapshot

import (
	"bytes"
	"slices"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"pkg.world.dev/world-engine/ecstore/codec"
	"pkg.world.dev/world-engine/ecstore/component"
	"pkg.world.dev/world-engine/ecstore/gamestate"
	"pkg.world.dev/world-engine/ecstore/log"
	"pkg.world.dev/world-engine/ecstore/statsd"
	"pkg.world.dev/world-engine/ecstore/types"
)

var (
	ErrInvalidSnapshot = eris.New("invalid snapshot")
	ErrIDConflict      = eris.New("entity id slot is held by a different generation")
)

// Warning is a component or entity that was skipped while deserializing.
type Warning = log.Warning

type Warnings []Warning

type encodedEntity struct {
	id    types.EntityID
	value []byte
}

// Serialize encodes every live entity of w. Archetypes are encoded concurrently; the world must not be
// mutated until Serialize returns.
func Serialize(w *gamestate.World, opts ...Option) ([]byte, error) {
	start := time.Now()
	o := newOptions(opts)

	archetypes := w.Archetypes()
	perArchetype := make([][]encodedEntity, len(archetypes))
	var g errgroup.Group
	for i, arch := range archetypes {
		i, arch := i, arch
		g.Go(func() error {
			entities, err := encodeArchetype(arch, &o)
			perArchetype[i] = entities
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []encodedEntity
	for _, entities := range perArchetype {
		all = append(all, entities...)
	}
	slices.SortFunc(all, func(a, b encodedEntity) int {
		return types.Compare(a.id, b.id)
	})

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range all {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := codec.Encode(e.id.String())
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(e.value)
	}
	buf.WriteByte('}')

	statsd.EmitTiming(start, "snapshot.serialize")
	statsd.EmitGauge("snapshot.entities", float64(len(all)))
	return buf.Bytes(), nil
}

func encodeArchetype(arch *gamestate.Archetype, o *options) ([]encodedEntity, error) {
	var descs []component.Desc
	var keys [][]byte
	for _, desc := range arch.Components() {
		if !o.filter(desc) {
			continue
		}
		key, err := codec.Encode(desc.Path())
		if err != nil {
			return nil, err
		}
		descs = append(descs, desc)
		keys = append(keys, key)
	}

	ids := arch.Entities()
	out := make([]encodedEntity, len(ids))
	for row, id := range ids {
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, desc := range descs {
			value, err := encodeValue(arch, row, id, desc, o.cache)
			if err != nil {
				return nil, eris.Wrapf(err, "entity %s", id)
			}
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.Write(keys[i])
			buf.WriteByte(':')
			buf.Write(value)
		}
		buf.WriteByte('}')
		out[row] = encodedEntity{id: id, value: buf.Bytes()}
	}
	return out, nil
}

func encodeValue(
	arch *gamestate.Archetype, row int, id types.EntityID, desc component.Desc, cache *ValueCache,
) ([]byte, error) {
	var key []byte
	if cache != nil {
		version, _ := arch.DataVersion(desc)
		key = cacheKey(arch.ID(), desc.ID(), version, id)
		if bz, ok := cache.get(key); ok {
			return bz, nil
		}
	}
	value, _ := arch.Value(row, desc)
	bz, err := desc.Encode(value)
	if err != nil {
		return nil, err
	}
	bz, err = codec.Compact(bz)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		cache.set(key, bz)
	}
	return bz, nil
}

// Deserialize builds a new world over registry from data. Problems with individual entities or
// components are returned as warnings; only a snapshot that is not a JSON object is an error.
func Deserialize(registry *component.Registry, data []byte, opts ...Option) (*gamestate.World, Warnings, error) {
	o := newOptions(opts)
	w := gamestate.NewWorld(registry, o.worldOpts...)
	warnings, err := apply(w, data, &o, false)
	if err != nil {
		return nil, nil, err
	}
	return w, warnings, nil
}

// DeserializeStrict is Deserialize that fails on the first warning.
func DeserializeStrict(registry *component.Registry, data []byte, opts ...Option) (*gamestate.World, error) {
	o := newOptions(opts)
	w := gamestate.NewWorld(registry, o.worldOpts...)
	if _, err := apply(w, data, &o, true); err != nil {
		return nil, err
	}
	return w, nil
}

// DeserializeInto applies data onto an existing world. Live entities get their components set or added;
// other ids are spawned under the same id.
func DeserializeInto(w *gamestate.World, data []byte, opts ...Option) (Warnings, error) {
	o := newOptions(opts)
	return apply(w, data, &o, false)
}

type loader struct {
	world    *gamestate.World
	opts     *options
	strict   bool
	warnings Warnings
}

func (l *loader) warn(id types.EntityID, comp string, err error) error {
	if l.strict {
		return eris.Wrapf(ErrInvalidSnapshot, "entity %s, component %q: %v", id, comp, err)
	}
	l.warnings = append(l.warnings, Warning{Entity: id, Component: comp, Message: err.Error()})
	return nil
}

func apply(w *gamestate.World, data []byte, o *options, strict bool) (Warnings, error) {
	entities, err := codec.DecodeObject(data)
	if err != nil {
		return nil, eris.Wrap(ErrInvalidSnapshot, err.Error())
	}
	l := &loader{world: w, opts: o, strict: strict}
	for _, entry := range entities {
		if err := l.entity(entry); err != nil {
			return nil, err
		}
	}
	if len(l.warnings) > 0 {
		log.Warnings(&o.logger, l.warnings, o.maxLogged)
	}
	o.logger.Debug().
		Int("entities", len(entities)).
		Int("warnings", len(l.warnings)).
		Msg("snapshot loaded")
	return l.warnings, nil
}

func (l *loader) entity(entry codec.Member) error {
	id, err := types.ParseEntityID(entry.Key)
	if err != nil {
		return l.warn(types.NullEntityID, "", err)
	}
	members, err := codec.DecodeObject(entry.Value)
	if err != nil {
		return l.warn(id, "", err)
	}

	registry := l.world.Registry()
	bundle := component.NewBundle()
	for _, m := range members {
		desc, err := registry.ByPath(m.Key)
		if err != nil {
			if err := l.warn(id, m.Key, err); err != nil {
				return err
			}
			continue
		}
		if !l.opts.filter(desc) {
			if err := l.warn(id, m.Key, eris.New("component is not accepted by the snapshot filter")); err != nil {
				return err
			}
			continue
		}
		value, err := desc.Decode(m.Value)
		if err == nil {
			var unit component.Unit
			unit, err = component.NewUnitRaw(desc, value)
			if err == nil {
				bundle.Set(unit)
				continue
			}
		}
		if err := l.warn(id, m.Key, err); err != nil {
			return err
		}
	}
	return l.place(id, bundle)
}

func (l *loader) place(id types.EntityID, bundle *component.Bundle) error {
	w := l.world
	switch {
	case id == types.ResourceEntityID || id == w.ResourceEntity():
		for _, u := range bundle.Units() {
			if err := w.SetResource(u.Desc(), u.Value()); err != nil {
				if err := l.warn(id, u.Desc().Path(), err); err != nil {
					return err
				}
			}
		}
		return nil
	case w.Exists(id):
		for _, u := range bundle.Units() {
			has, err := w.Has(id, u.Desc())
			if err == nil {
				if has {
					err = u.SetAtEntity(w, id)
				} else {
					err = u.AddToEntity(w, id)
				}
			}
			if err != nil {
				if err := l.warn(id, u.Desc().Path(), err); err != nil {
					return err
				}
			}
		}
		return nil
	}
	ok, err := w.SpawnMirror(id, bundle)
	if err != nil {
		return l.warn(id, "", err)
	}
	if !ok {
		return l.warn(id, "", eris.Wrapf(ErrIDConflict, "entity %s", id))
	}
	return nil
}
