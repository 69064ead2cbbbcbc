package component_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"pkg.world.dev/world-engine/assert"

	"pkg.world.dev/world-engine/ecstore/component"
	"pkg.world.dev/world-engine/ecstore/types"
)

type recordingWriter struct {
	set map[string]any
	add map[string]any
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{set: map[string]any{}, add: map[string]any{}}
}

func (w *recordingWriter) SetRaw(id types.EntityID, desc component.Desc, value any) error {
	w.set[id.String()+"/"+desc.Path()] = value
	return nil
}

func (w *recordingWriter) AddRaw(id types.EntityID, desc component.Desc, value any) error {
	w.add[id.String()+"/"+desc.Path()] = value
	return nil
}

func TestNewUnitRawRejectsWrongType(t *testing.T) {
	r := component.NewRegistry()
	name, err := r.RegisterExternal("core::test::name", component.PrimitiveType{Kind: component.KindString})
	assert.NilError(t, err)

	_, err = component.NewUnitRaw(name, 42)
	assert.ErrorIs(t, err, component.ErrTypeMismatch)
	_, err = component.NewUnitRaw(component.Desc{}, "x")
	assert.ErrorIs(t, err, component.ErrComponentNotRegistered)

	u, err := component.NewUnitRaw(name, "bob")
	assert.NilError(t, err)
	assert.Equal(t, "bob", u.Value())
	assert.Equal(t, `core::test::name: bob`, u.Debug())
}

func TestUnitCloneIsIndependent(t *testing.T) {
	r := component.NewRegistry()
	inv := component.MustRegister[Inventory](r, "game::inventory")
	u := component.NewUnit(inv, Inventory{Items: []string{"sword"}})

	c, err := u.Clone()
	assert.NilError(t, err)
	assert.Check(t, u.Equal(c))
	c.Value().(Inventory).Items[0] = "shield"
	assert.Equal(t, "sword", u.Value().(Inventory).Items[0])
	assert.Check(t, !u.Equal(c))
}

func TestUnitJSONPair(t *testing.T) {
	r := component.NewRegistry()
	pos := component.MustRegister[Position](r, "game::position")
	u := component.NewUnit(pos, Position{X: 1, Y: 2})

	bz, err := u.MarshalJSON()
	assert.NilError(t, err)
	require.JSONEq(t, `["game::position",{"X":1,"Y":2}]`, string(bz))

	back, err := component.DecodeUnit(r, bz)
	assert.NilError(t, err)
	assert.Check(t, u.Equal(back))

	_, err = component.DecodeUnit(r, []byte(`["game::unknown",1]`))
	assert.ErrorIs(t, err, component.ErrComponentNotRegistered)
	_, err = component.DecodeUnit(r, []byte(`["game::position"]`))
	assert.Check(t, err != nil)
	_, err = component.DecodeUnit(r, []byte(`["game::position","not an object"]`))
	assert.Check(t, err != nil)
}

func TestUnitWritesToEntity(t *testing.T) {
	r := component.NewRegistry()
	inv := component.MustRegister[Inventory](r, "game::inventory")
	u := component.NewUnit(inv, Inventory{Items: []string{"a"}})
	w := newRecordingWriter()
	id := types.EntityID{ID: 4}

	assert.NilError(t, u.SetAtEntity(w, id))
	assert.NilError(t, u.AddToEntity(w, id))

	assert.DeepEqual(t, u.Value(), w.set["0:4:0/game::inventory"])
	assert.DeepEqual(t, u.Value(), w.add["0:4:0/game::inventory"])
}

type Samples struct {
	Values []float64
}

func TestCloneReportsUnencodableValues(t *testing.T) {
	r := component.NewRegistry()
	samples := component.MustRegister[Samples](r, "game::samples")
	u := component.NewUnit(samples, Samples{Values: []float64{math.NaN()}})

	_, err := u.Clone()
	assert.ErrorContains(t, err, "game::samples")
	_, err = component.NewBundle(u).Clone()
	assert.Check(t, err != nil)

	ok := component.NewUnit(samples, Samples{Values: []float64{1}})
	c, err := ok.Clone()
	assert.NilError(t, err)
	c.Value().(Samples).Values[0] = 2
	assert.Equal(t, 1.0, ok.Value().(Samples).Values[0])
}

func TestUserSliceAndPointerTypesCopyWithoutCodec(t *testing.T) {
	slice := component.VTableFor[[]float64]()
	orig := []float64{math.Inf(1), math.NaN()}
	out, err := slice.Clone(orig)
	assert.NilError(t, err)
	cp := out.([]float64)
	cp[0] = 0
	assert.Check(t, math.IsInf(orig[0], 1))
	assert.Check(t, math.IsNaN(cp[1]))

	nilOut, err := slice.Clone([]float64(nil))
	assert.NilError(t, err)
	assert.Check(t, nilOut.([]float64) == nil)

	ptr := component.VTableFor[*float64]()
	v := math.Inf(-1)
	out, err = ptr.Clone(&v)
	assert.NilError(t, err)
	assert.Check(t, out.(*float64) != &v)
	assert.Check(t, math.IsInf(*out.(*float64), -1))
}

func TestBundleKeepsInsertionOrderAndReplacesInPlace(t *testing.T) {
	r := component.NewRegistry()
	pos := component.MustRegister[Position](r, "game::position")
	hp := component.MustRegister[uint32](r, "game::hp")
	name := component.MustRegister[string](r, "game::name")

	b := component.NewBundle(
		component.NewUnit(name, "orc"),
		component.NewUnit(pos, Position{}),
		component.NewUnit(hp, uint32(5)),
	)
	b.Set(component.NewUnit(pos, Position{X: 3}))
	assert.Equal(t, 3, b.Len())

	bz, err := b.MarshalJSON()
	assert.NilError(t, err)
	assert.Equal(t, `{"game::name":"orc","game::position":{"X":3,"Y":0},"game::hp":5}`, string(bz))

	assert.Check(t, b.Remove(pos.Desc))
	assert.Check(t, !b.Remove(pos.Desc))
	descs := b.Descs()
	assert.Equal(t, 2, len(descs))
	assert.Equal(t, name.Desc, descs[0])
	assert.Equal(t, hp.Desc, descs[1])

	c, err := b.Clone()
	assert.NilError(t, err)
	c.Set(component.NewUnit(hp, uint32(9)))
	got, ok := b.Get(hp.Desc)
	assert.Check(t, ok)
	assert.Equal(t, uint32(5), got.Value())
}
