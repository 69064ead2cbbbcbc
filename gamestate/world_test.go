package gamestate_test

import (
	"math"
	"math/rand"
	"sync"
	"testing"

	"pkg.world.dev/world-engine/assert"

	"pkg.world.dev/world-engine/ecstore/changes"
	"pkg.world.dev/world-engine/ecstore/component"
	"pkg.world.dev/world-engine/ecstore/entity"
	"pkg.world.dev/world-engine/ecstore/gamestate"
	"pkg.world.dev/world-engine/ecstore/search/filter"
	"pkg.world.dev/world-engine/ecstore/types"
)

type Position struct {
	X, Y float64
}

type fixture struct {
	registry *component.Registry
	pos      component.Typed[Position]
	hp       component.Typed[uint32]
	name     component.Typed[string]
	tags     component.Typed[[]string]
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	r := component.NewRegistry()
	return fixture{
		registry: r,
		pos:      component.MustRegister[Position](r, "game::position"),
		hp:       component.MustRegister[uint32](r, "game::hp", component.WithDefault(uint32(10))),
		name:     component.MustRegister[string](r, "game::name"),
		tags:     component.MustRegister[[]string](r, "game::tags"),
	}
}

func TestNewWorldHasEmptyResourceEntity(t *testing.T) {
	f := newFixture(t)
	w := gamestate.NewWorld(f.registry)

	assert.Check(t, f.registry.Sealed())
	assert.Equal(t, types.ResourceEntityID, w.ResourceEntity())
	assert.Equal(t, 1, w.Len())
	comps, err := w.ComponentsOf(w.ResourceEntity())
	assert.NilError(t, err)
	assert.Equal(t, 0, len(comps))

	_, err = w.Despawn(w.ResourceEntity())
	assert.ErrorIs(t, err, gamestate.ErrResourceEntity)
}

func TestSpawnGetSet(t *testing.T) {
	f := newFixture(t)
	w := gamestate.NewWorld(f.registry)

	id, err := w.Spawn(component.NewUnit(f.pos, Position{X: 1}), component.NewUnit(f.hp, uint32(5)))
	assert.NilError(t, err)
	assert.Equal(t, types.EntityID{ID: 1}, id)

	pos, err := gamestate.Get(w, f.pos, id)
	assert.NilError(t, err)
	assert.Equal(t, Position{X: 1}, pos)

	assert.NilError(t, gamestate.Set(w, f.pos, id, Position{X: 2, Y: 3}))
	assert.NilError(t, gamestate.Update(w, f.hp, id, func(hp uint32) uint32 { return hp * 2 }))
	hp, err := gamestate.Get(w, f.hp, id)
	assert.NilError(t, err)
	assert.Equal(t, uint32(10), hp)

	_, err = gamestate.Get(w, f.name, id)
	assert.ErrorIs(t, err, gamestate.ErrComponentNotOnEntity)
	err = w.Set(id, f.hp.Desc, "wrong type")
	assert.ErrorIs(t, err, component.ErrTypeMismatch)
	has, err := w.Has(id, f.name.Desc)
	assert.NilError(t, err)
	assert.Check(t, !has)
}

func TestSpawnRejectsDuplicatesAndForeignComponents(t *testing.T) {
	f := newFixture(t)
	w := gamestate.NewWorld(f.registry)

	_, err := w.Spawn(component.NewUnit(f.hp, uint32(1)), component.NewUnit(f.hp, uint32(2)))
	assert.ErrorIs(t, err, gamestate.ErrDuplicateComponent)
	assert.ErrorContains(t, err, "game::hp")

	other := component.NewRegistry()
	foreign := component.MustRegister[uint32](other, "game::hp")
	_, err = w.Spawn(component.NewUnit(foreign, uint32(1)))
	assert.ErrorIs(t, err, gamestate.ErrForeignComponent)
	assert.Equal(t, 1, w.Len())
}

func TestAddRemoveMigratesBetweenArchetypes(t *testing.T) {
	f := newFixture(t)
	w := gamestate.NewWorld(f.registry)
	a, err := w.Spawn(component.NewUnit(f.name, "a"))
	assert.NilError(t, err)
	b, err := w.Spawn(component.NewUnit(f.name, "b"))
	assert.NilError(t, err)

	assert.NilError(t, gamestate.Add(w, f.pos, a, Position{X: 7}))
	err = gamestate.Add(w, f.pos, a, Position{})
	assert.ErrorIs(t, err, gamestate.ErrComponentAlreadyOnEntity)

	// b was swapped into a's old row.
	loc, ok := w.Location(b)
	assert.Check(t, ok)
	assert.Equal(t, 0, loc.Index)

	name, err := gamestate.Get(w, f.name, a)
	assert.NilError(t, err)
	assert.Equal(t, "a", name)
	arch, err := w.ArchetypeOf(a)
	assert.NilError(t, err)
	assert.Equal(t, 2, len(arch.Components()))

	assert.NilError(t, w.AddDefault(a, f.hp.Desc))
	hp, err := gamestate.Get(w, f.hp, a)
	assert.NilError(t, err)
	assert.Equal(t, uint32(10), hp)

	removed, err := w.Remove(a, f.pos.Desc)
	assert.NilError(t, err)
	assert.Equal(t, Position{X: 7}, removed)
	_, err = w.Remove(a, f.pos.Desc)
	assert.ErrorIs(t, err, gamestate.ErrComponentNotOnEntity)

	assert.NilError(t, w.CheckInvariants())
}

func TestDespawnSwapRemove(t *testing.T) {
	f := newFixture(t)
	w := gamestate.NewWorld(f.registry)
	var ids []types.EntityID
	for _, n := range []string{"a", "b", "c"} {
		id, err := w.Spawn(component.NewUnit(f.name, n))
		assert.NilError(t, err)
		ids = append(ids, id)
	}
	locA, _ := w.Location(ids[0])

	bundle, err := w.Despawn(ids[1])
	assert.NilError(t, err)
	unit, ok := bundle.Get(f.name.Desc)
	assert.Check(t, ok)
	assert.Equal(t, "b", unit.Value())

	arch, err := w.ArchetypeOf(ids[0])
	assert.NilError(t, err)
	assert.DeepEqual(t, []types.EntityID{ids[0], ids[2]}, arch.Entities())
	locC, ok := w.Location(ids[2])
	assert.Check(t, ok)
	assert.Equal(t, 1, locC.Index)
	after, _ := w.Location(ids[0])
	assert.Equal(t, locA, after)

	assert.Check(t, !w.Exists(ids[1]))
	_, err = w.Get(ids[1], f.name.Desc)
	assert.ErrorIs(t, err, gamestate.ErrEntityDoesNotExist)
	_, err = w.Despawn(ids[1])
	assert.ErrorIs(t, err, gamestate.ErrEntityDoesNotExist)

	reused, err := w.Spawn(component.NewUnit(f.name, "d"))
	assert.NilError(t, err)
	assert.Equal(t, ids[1].ID, reused.ID)
	assert.Equal(t, ids[1].Gen+1, reused.Gen)
	assert.NilError(t, w.CheckInvariants())
}

func TestSpawnMirrorKeepsForeignID(t *testing.T) {
	f := newFixture(t)
	w := gamestate.NewWorld(f.registry)
	remote := types.EntityID{Namespace: 4, ID: 12, Gen: 3}

	ok, err := w.SpawnMirror(remote, component.NewBundle(component.NewUnit(f.name, "ghost")))
	assert.NilError(t, err)
	assert.Check(t, ok)
	ok, err = w.SpawnMirror(remote, component.NewBundle(component.NewUnit(f.name, "other")))
	assert.NilError(t, err)
	assert.Check(t, !ok)

	name, err := gamestate.Get(w, f.name, remote)
	assert.NilError(t, err)
	assert.Equal(t, "ghost", name)
}

func TestSpawnMirrorRejectsLocalIDsPastTheGap(t *testing.T) {
	f := newFixture(t)
	w := gamestate.NewWorld(f.registry, gamestate.WithMaxMirrorGap(16))
	b := component.NewBundle(component.NewUnit(f.name, "far"))

	ok, err := w.SpawnMirror(types.EntityID{ID: 100000000000}, b)
	assert.ErrorIs(t, err, entity.ErrIDOutOfRange)
	assert.Check(t, !ok)
	assert.Equal(t, 1, w.Len(), "only the resource entity exists")

	ok, err = w.SpawnMirror(types.EntityID{Namespace: 2, ID: math.MaxUint64}, b)
	assert.NilError(t, err)
	assert.Check(t, ok)
	assert.NilError(t, w.CheckInvariants())
}

func TestStoredValuesAreCopies(t *testing.T) {
	f := newFixture(t)
	w := gamestate.NewWorld(f.registry)
	tags := []string{"x"}
	id, err := w.Spawn(component.NewUnit(f.tags, tags))
	assert.NilError(t, err)
	tags[0] = "mutated"

	got, err := gamestate.Get(w, f.tags, id)
	assert.NilError(t, err)
	assert.Equal(t, "x", got[0])

	b, err := w.Bundle(id)
	assert.NilError(t, err)
	u, _ := b.Get(f.tags.Desc)
	u.Value().([]string)[0] = "mutated"
	got, err = gamestate.Get(w, f.tags, id)
	assert.NilError(t, err)
	assert.Equal(t, "x", got[0])
}

func TestSetAndAddStoreCopies(t *testing.T) {
	f := newFixture(t)
	w := gamestate.NewWorld(f.registry)
	id, err := w.Spawn(component.NewUnit(f.tags, []string{"x"}))
	assert.NilError(t, err)
	arch, err := w.ArchetypeOf(id)
	assert.NilError(t, err)

	detector := changes.New()
	assert.Check(t, detector.Changed(arch, f.tags.Desc, arch.LayoutVersion()))

	tags := []string{"set"}
	assert.NilError(t, gamestate.Set(w, f.tags, id, tags))
	assert.Check(t, detector.Changed(arch, f.tags.Desc, arch.LayoutVersion()))
	tags[0] = "mutated"
	got, err := gamestate.Get(w, f.tags, id)
	assert.NilError(t, err)
	assert.Equal(t, "set", got[0])
	assert.Check(t, !detector.Changed(arch, f.tags.Desc, arch.LayoutVersion()))

	other, err := w.Spawn(component.NewUnit(f.hp, uint32(1)))
	assert.NilError(t, err)
	added := []string{"added"}
	assert.NilError(t, gamestate.Add(w, f.tags, other, added))
	added[0] = "mutated"
	got, err = gamestate.Get(w, f.tags, other)
	assert.NilError(t, err)
	assert.Equal(t, "added", got[0])

	resource := []string{"res"}
	assert.NilError(t, gamestate.SetResource(w, f.tags, resource))
	resource[0] = "mutated"
	got, err = gamestate.Resource(w, f.tags)
	assert.NilError(t, err)
	assert.Equal(t, "res", got[0])
}

func TestNonFiniteFloatsInContainers(t *testing.T) {
	r := component.NewRegistry()
	vecPT, err := component.ParsePrimitiveType("Vec<F32>")
	assert.NilError(t, err)
	optPT, err := component.ParsePrimitiveType("Option<F64>")
	assert.NilError(t, err)
	vec, err := r.RegisterExternal("game::samples", vecPT)
	assert.NilError(t, err)
	opt, err := r.RegisterExternal("game::peak", optPT)
	assert.NilError(t, err)
	w := gamestate.NewWorld(r)

	samples := []float32{float32(math.NaN()), float32(math.Inf(1))}
	vecUnit, err := component.NewUnitRaw(vec, samples)
	assert.NilError(t, err)
	peak := math.Inf(-1)
	optUnit, err := component.NewUnitRaw(opt, &peak)
	assert.NilError(t, err)

	id, err := w.Spawn(vecUnit, optUnit)
	assert.NilError(t, err)
	samples[1] = 0
	peak = 0

	v, err := w.Get(id, vec)
	assert.NilError(t, err)
	stored := v.([]float32)
	assert.Check(t, math.IsNaN(float64(stored[0])))
	assert.Check(t, math.IsInf(float64(stored[1]), 1))
	p, err := w.Get(id, opt)
	assert.NilError(t, err)
	assert.Check(t, math.IsInf(*p.(*float64), -1))

	assert.NilError(t, w.Set(id, vec, []float32{float32(math.Inf(-1))}))
	_, err = w.Bundle(id)
	assert.NilError(t, err)
}

func TestVersions(t *testing.T) {
	f := newFixture(t)
	w := gamestate.NewWorld(f.registry)
	id, err := w.Spawn(component.NewUnit(f.hp, uint32(1)), component.NewUnit(f.name, "n"))
	assert.NilError(t, err)
	arch, err := w.ArchetypeOf(id)
	assert.NilError(t, err)

	layout := arch.LayoutVersion()
	hpVersion, ok := arch.DataVersion(f.hp.Desc)
	assert.Check(t, ok)
	nameVersion, _ := arch.DataVersion(f.name.Desc)

	assert.NilError(t, gamestate.Set(w, f.hp, id, 2))
	newHP, _ := arch.DataVersion(f.hp.Desc)
	newName, _ := arch.DataVersion(f.name.Desc)
	assert.Check(t, newHP > hpVersion)
	assert.Equal(t, nameVersion, newName)
	assert.Equal(t, layout, arch.LayoutVersion())
	assert.Equal(t, newHP, w.Version())

	_, err = w.Spawn(component.NewUnit(f.hp, uint32(1)), component.NewUnit(f.name, "m"))
	assert.NilError(t, err)
	assert.Check(t, arch.LayoutVersion() > layout)

	var changed []types.ArchetypeID
	w.ChangedSince(f.hp.Desc, newHP, func(a *gamestate.Archetype) bool {
		changed = append(changed, a.ID())
		return true
	})
	assert.DeepEqual(t, []types.ArchetypeID{arch.ID()}, changed)

	changed = nil
	w.ChangedSince(f.hp.Desc, w.Version(), func(a *gamestate.Archetype) bool {
		changed = append(changed, a.ID())
		return true
	})
	assert.Equal(t, 0, len(changed))
}

func TestResources(t *testing.T) {
	f := newFixture(t)
	w := gamestate.NewWorld(f.registry)

	_, err := gamestate.Resource(w, f.hp)
	assert.ErrorIs(t, err, gamestate.ErrComponentNotOnEntity)
	assert.NilError(t, gamestate.SetResource(w, f.hp, 3))
	assert.NilError(t, gamestate.SetResource(w, f.hp, 4))
	hp, err := gamestate.Resource(w, f.hp)
	assert.NilError(t, err)
	assert.Equal(t, uint32(4), hp)
	v, err := w.Resource(f.hp.Desc)
	assert.NilError(t, err)
	assert.Equal(t, uint32(4), v)
}

func TestSearchPicksUpNewArchetypes(t *testing.T) {
	f := newFixture(t)
	w := gamestate.NewWorld(f.registry)
	s := w.Search(filter.Contains(f.name.Desc))
	assert.Equal(t, 0, s.Count())
	_, err := s.First()
	assert.ErrorIs(t, err, gamestate.ErrNoMatch)

	a, err := w.Spawn(component.NewUnit(f.name, "a"))
	assert.NilError(t, err)
	_, err = w.Spawn(component.NewUnit(f.hp, uint32(1)))
	assert.NilError(t, err)
	b, err := w.Spawn(component.NewUnit(f.name, "b"), component.NewUnit(f.hp, uint32(1)))
	assert.NilError(t, err)

	assert.Equal(t, 2, s.Count())
	assert.DeepEqual(t, []types.EntityID{a, b}, s.Collect())
	first, err := s.First()
	assert.NilError(t, err)
	assert.Equal(t, a, first)

	seen := 0
	s.Each(func(types.EntityID) bool {
		seen++
		return false
	})
	assert.Equal(t, 1, seen)
	assert.Equal(t, 2, len(s.Archetypes()))
}

func TestRandomOperationsKeepInvariants(t *testing.T) {
	f := newFixture(t)
	w := gamestate.NewWorld(f.registry)
	r := rand.New(rand.NewSource(7))
	var live []types.EntityID

	for step := 0; step < 2000; step++ {
		switch op := r.Intn(4); {
		case op == 0 || len(live) == 0:
			id, err := w.Spawn(component.NewUnit(f.name, "e"))
			assert.NilError(t, err)
			live = append(live, id)
		case op == 1:
			i := r.Intn(len(live))
			_, err := w.Despawn(live[i])
			assert.NilError(t, err)
			live = append(live[:i], live[i+1:]...)
		case op == 2:
			id := live[r.Intn(len(live))]
			if has, _ := w.Has(id, f.hp.Desc); has {
				_, err := w.Remove(id, f.hp.Desc)
				assert.NilError(t, err)
			} else {
				assert.NilError(t, gamestate.Add(w, f.hp, id, uint32(step)))
			}
		default:
			id := live[r.Intn(len(live))]
			name, err := gamestate.Get(w, f.name, id)
			assert.NilError(t, err)
			assert.Equal(t, "e", name)
		}
	}
	assert.Equal(t, len(live)+1, w.Len())
	assert.NilError(t, w.CheckInvariants())
}

func TestSharedSerializesAccess(t *testing.T) {
	f := newFixture(t)
	shared := gamestate.NewShared(gamestate.NewWorld(f.registry))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				err := shared.With(func(w *gamestate.World) error {
					_, err := w.Spawn(component.NewUnit(f.hp, uint32(j)))
					return err
				})
				assert.NilError(t, err)
			}
		}()
	}
	wg.Wait()
	assert.NilError(t, shared.With(func(w *gamestate.World) error {
		assert.Equal(t, 401, w.Len())
		return w.CheckInvariants()
	}))
}
