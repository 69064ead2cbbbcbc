// Package index keeps entities sorted by the values of a fixed list of component columns and answers
// half-open range queries over them.
package index

import (
	"github.com/google/btree"
	"github.com/rotisserie/eris"

	"pkg.world.dev/world-engine/ecstore/component"
	"pkg.world.dev/world-engine/ecstore/types"
)

const degree = 16

// Entry is one indexed entity and its column values.
type Entry struct {
	Values []any
	ID     types.EntityID
}

type item struct {
	key   Key
	id    types.EntityID
	bound bool
}

// Index is an ordered multi-column index. Entries with equal values are ordered by entity id.
type Index struct {
	columns  []component.Desc
	tree     *btree.BTreeG[item]
	byEntity map[types.EntityID]Key
}

func New(columns ...component.Desc) *Index {
	width := len(columns)
	less := func(a, b item) bool {
		if c := compareKeys(a.key, b.key, width); c != 0 {
			return c < 0
		}
		// A bound sorts before every entry with the same key, which makes ranges half-open.
		if a.bound != b.bound {
			return a.bound
		}
		return types.Compare(a.id, b.id) < 0
	}
	return &Index{
		columns:  columns,
		tree:     btree.NewG[item](degree, less),
		byEntity: make(map[types.EntityID]Key),
	}
}

func (x *Index) Columns() []component.Desc {
	return x.columns
}

func (x *Index) Len() int {
	return x.tree.Len()
}

// Insert indexes id under values, replacing any previous entry for id.
func (x *Index) Insert(id types.EntityID, values ...any) error {
	if len(values) != len(x.columns) {
		return eris.Errorf("index has %d columns, got %d values", len(x.columns), len(values))
	}
	fields := make([]Field, len(values))
	for i, v := range values {
		fields[i] = Exact(v)
	}
	x.Remove(id)
	key := Key{fields: fields}
	x.tree.ReplaceOrInsert(item{key: key, id: id})
	x.byEntity[id] = key
	return nil
}

// Remove drops id from the index and reports whether it was present.
func (x *Index) Remove(id types.EntityID) bool {
	key, ok := x.byEntity[id]
	if !ok {
		return false
	}
	x.tree.Delete(item{key: key, id: id})
	delete(x.byEntity, id)
	return true
}

func (x *Index) Contains(id types.EntityID) bool {
	_, ok := x.byEntity[id]
	return ok
}

// Range calls fn for every entry in [start, end) in key order until fn returns false.
func (x *Index) Range(start, end Key, fn func(Entry) bool) {
	x.tree.AscendRange(item{key: start, bound: true}, item{key: end, bound: true}, func(it item) bool {
		return fn(it.entry())
	})
}

// First returns the smallest entry in [start, end).
func (x *Index) First(start, end Key) (Entry, bool) {
	var out Entry
	found := false
	x.Range(start, end, func(e Entry) bool {
		out, found = e, true
		return false
	})
	return out, found
}

// Last returns the largest entry in [start, end).
func (x *Index) Last(start, end Key) (Entry, bool) {
	var out Entry
	found := false
	x.tree.DescendRange(item{key: end, bound: true}, item{key: start, bound: true}, func(it item) bool {
		out, found = it.entry(), true
		return false
	})
	return out, found
}

// Entries returns every entry in key order.
func (x *Index) Entries() []Entry {
	out := make([]Entry, 0, x.tree.Len())
	x.tree.Ascend(func(it item) bool {
		out = append(out, it.entry())
		return true
	})
	return out
}

func (it item) entry() Entry {
	values := make([]any, len(it.key.fields))
	for i, f := range it.key.fields {
		values[i] = f.value
	}
	return Entry{Values: values, ID: it.id}
}
