package index_test

import (
	"math"
	"testing"
	"time"

	"pkg.world.dev/world-engine/assert"

	"pkg.world.dev/world-engine/ecstore/component"
	"pkg.world.dev/world-engine/ecstore/gamestate"
	"pkg.world.dev/world-engine/ecstore/index"
	"pkg.world.dev/world-engine/ecstore/search/filter"
	"pkg.world.dev/world-engine/ecstore/types"
)

type columns struct {
	registry *component.Registry
	user     component.Typed[string]
	ts       component.Typed[time.Duration]
	flag     component.Typed[component.EmptyValue]
}

func newColumns() columns {
	r := component.NewRegistry()
	return columns{
		registry: r,
		user:     component.MustRegister[string](r, "test::user"),
		ts:       component.MustRegister[time.Duration](r, "test::ts"),
		flag:     component.MustRegister[component.EmptyValue](r, "test::flag"),
	}
}

func ids(entries []index.Entry) []types.EntityID {
	out := make([]types.EntityID, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestRangeLastPerUser(t *testing.T) {
	c := newColumns()
	idx := index.New(c.user.Desc, c.ts.Desc)
	e := func(n uint64) types.EntityID { return types.EntityID{ID: n} }

	assert.NilError(t, idx.Insert(e(1), "alice", 1*time.Second))
	assert.NilError(t, idx.Insert(e(2), "alice", 3*time.Second))
	assert.NilError(t, idx.Insert(e(3), "alice", 2*time.Second))
	assert.NilError(t, idx.Insert(e(4), "bob", 9*time.Second))
	assert.NilError(t, idx.Insert(e(5), "aaron", 9*time.Second))

	lo := index.KeyMin(index.Exact("alice"), index.Min())
	hi := index.KeyMax(index.Exact("alice"), index.Max())
	last, ok := idx.Last(lo, hi)
	assert.Check(t, ok)
	assert.Equal(t, e(2), last.ID)
	assert.Equal(t, 3*time.Second, last.Values[1])

	first, ok := idx.First(lo, hi)
	assert.Check(t, ok)
	assert.Equal(t, e(1), first.ID)

	var got []types.EntityID
	idx.Range(lo, hi, func(en index.Entry) bool {
		got = append(got, en.ID)
		return true
	})
	assert.DeepEqual(t, []types.EntityID{e(1), e(3), e(2)}, got)

	// Padding fills the missing timestamp column.
	last, ok = idx.Last(index.KeyMin(index.Exact("alice")), index.KeyMax(index.Exact("alice")))
	assert.Check(t, ok)
	assert.Equal(t, e(2), last.ID)

	_, ok = idx.Last(index.KeyMin(index.Exact("carol")), index.KeyMax(index.Exact("carol")))
	assert.Check(t, !ok)
}

func TestRangeIsHalfOpen(t *testing.T) {
	c := newColumns()
	idx := index.New(c.user.Desc, c.ts.Desc)
	for i, ts := range []time.Duration{1, 2, 3, 4} {
		assert.NilError(t, idx.Insert(types.EntityID{ID: uint64(i)}, "u", ts))
	}
	start := index.KeyMin(index.Exact("u"), index.Exact(time.Duration(2)))
	end := index.KeyMin(index.Exact("u"), index.Exact(time.Duration(4)))
	var got []types.EntityID
	idx.Range(start, end, func(en index.Entry) bool {
		got = append(got, en.ID)
		return true
	})
	assert.DeepEqual(t, []types.EntityID{{ID: 1}, {ID: 2}}, got)
	last, ok := idx.Last(start, end)
	assert.Check(t, ok)
	assert.Equal(t, types.EntityID{ID: 2}, last.ID)
}

func TestTiesOrderByEntityID(t *testing.T) {
	c := newColumns()
	idx := index.New(c.user.Desc, c.ts.Desc)
	high := types.EntityID{ID: 9}
	low := types.EntityID{ID: 2}
	other := types.EntityID{Namespace: 1, ID: 0}
	assert.NilError(t, idx.Insert(high, "u", time.Second))
	assert.NilError(t, idx.Insert(other, "u", time.Second))
	assert.NilError(t, idx.Insert(low, "u", time.Second))

	assert.DeepEqual(t, []types.EntityID{low, high, other}, ids(idx.Entries()))
	last, _ := idx.Last(index.KeyMin(index.Exact("u")), index.KeyMax(index.Exact("u")))
	assert.Equal(t, other, last.ID)
}

func TestInsertReplacesAndRemove(t *testing.T) {
	c := newColumns()
	idx := index.New(c.user.Desc, c.ts.Desc)
	id := types.EntityID{ID: 1}
	assert.NilError(t, idx.Insert(id, "u", time.Second))
	assert.NilError(t, idx.Insert(id, "v", time.Second))
	assert.Equal(t, 1, idx.Len())
	assert.Equal(t, "v", idx.Entries()[0].Values[0])

	assert.Check(t, idx.Remove(id))
	assert.Check(t, !idx.Remove(id))
	assert.Equal(t, 0, idx.Len())
	assert.Check(t, idx.Insert(id, "only one value") != nil)
}

func TestCompare(t *testing.T) {
	assert.Equal(t, -1, index.Compare(int64(-1), int64(2)))
	assert.Equal(t, 1, index.Compare(uint8(9), uint8(3)))
	assert.Equal(t, -1, index.Compare(1.5, 2.5))
	assert.Equal(t, 0, index.Compare("a", "a"))
	assert.Equal(t, -1, index.Compare(false, true))
	assert.Equal(t, 1, index.Compare(types.EntityID{ID: 2}, types.EntityID{ID: 1}))
	assert.Equal(t, -1, index.Compare(component.Vec2{1, 2}, component.Vec2{1, 3}))
}

func TestCompareMixedNumberKinds(t *testing.T) {
	assert.Equal(t, -1, index.Compare(5, uint64(10)))
	assert.Equal(t, 1, index.Compare(uint64(10), 5))
	assert.Equal(t, -1, index.Compare(int64(-1), uint64(0)))
	assert.Equal(t, 1, index.Compare(uint64(math.MaxUint64), int64(math.MaxInt64)))
	assert.Equal(t, 0, index.Compare(int8(7), uint32(7)))
	assert.Equal(t, -1, index.Compare(2.5, 3))
	assert.Equal(t, 1, index.Compare(3, 2.5))
	assert.Equal(t, 0, index.Compare(float32(4), uint16(4)))
	assert.Equal(t, -1, index.Compare(-0.5, uint64(0)))
	assert.Equal(t, 1, index.Compare(uint64(1<<53+1), float64(1<<53)))
	assert.Equal(t, 1, index.Compare(math.Inf(1), uint64(math.MaxUint64)))
	assert.Equal(t, -1, index.Compare(math.NaN(), int64(math.MinInt64)))
	assert.Equal(t, -1, index.Compare(int32(9), int64(10)))
}

func TestRangeWithBoundsOfAnotherNumberKind(t *testing.T) {
	c := newColumns()
	idx := index.New(c.user.Desc, c.ts.Desc)
	for i, ts := range []time.Duration{8, 9, 10, 11} {
		assert.NilError(t, idx.Insert(types.EntityID{ID: uint64(i)}, "u", ts))
	}
	start := index.KeyMin(index.Exact("u"), index.Exact(uint64(9)))
	end := index.KeyMin(index.Exact("u"), index.Exact(11))
	var got []types.EntityID
	idx.Range(start, end, func(en index.Entry) bool {
		got = append(got, en.ID)
		return true
	})
	assert.DeepEqual(t, []types.EntityID{{ID: 1}, {ID: 2}}, got)
}

func TestIndexerFollowsWorld(t *testing.T) {
	c := newColumns()
	w := gamestate.NewWorld(c.registry)
	ix := index.NewIndexer(index.New(c.user.Desc, c.ts.Desc), filter.All(), filter.Contains(c.flag.Desc))

	a, err := w.Spawn(component.NewUnit(c.user, "u"), component.NewUnit(c.ts, time.Duration(1)))
	assert.NilError(t, err)
	b, err := w.Spawn(component.NewUnit(c.user, "u"), component.NewUnit(c.ts, time.Duration(2)))
	assert.NilError(t, err)
	_, err = w.Spawn(component.NewUnit(c.user, "u"))
	assert.NilError(t, err)

	ix.Update(w)
	assert.DeepEqual(t, []types.EntityID{a, b}, ids(ix.Index().Entries()))

	assert.NilError(t, gamestate.Set(w, c.ts, a, 5))
	ix.Update(w)
	assert.DeepEqual(t, []types.EntityID{b, a}, ids(ix.Index().Entries()))

	// Excluded once flagged.
	assert.NilError(t, gamestate.Add(w, c.flag, b, component.EmptyValue{}))
	ix.Update(w)
	assert.DeepEqual(t, []types.EntityID{a}, ids(ix.Index().Entries()))

	_, err = w.Remove(b, c.flag.Desc)
	assert.NilError(t, err)
	ix.Update(w)
	assert.Equal(t, 2, ix.Index().Len())

	_, err = w.Despawn(a)
	assert.NilError(t, err)
	ix.Update(w)
	assert.DeepEqual(t, []types.EntityID{b}, ids(ix.Index().Entries()))

	// Nothing changed: a second update is a no-op.
	ix.Update(w)
	assert.Equal(t, 1, ix.Index().Len())
}
