package index

import (
	"bytes"
	"cmp"
	"math"
	"reflect"

	"pkg.world.dev/world-engine/ecstore/codec"
	"pkg.world.dev/world-engine/ecstore/types"
)

type fieldKind int8

const (
	kindMin fieldKind = iota - 1
	kindExact
	kindMax
)

// Field is one column of an index key: an exact value, or a sentinel below (Min) or above (Max) every
// value.
type Field struct {
	kind  fieldKind
	value any
}

func Exact(v any) Field {
	return Field{kind: kindExact, value: v}
}

func Min() Field {
	return Field{kind: kindMin}
}

func Max() Field {
	return Field{kind: kindMax}
}

func (f Field) IsExact() bool {
	return f.kind == kindExact
}

func (f Field) Value() any {
	return f.value
}

// Key is a bound for range queries. Columns beyond the given fields are filled with the key's padding.
type Key struct {
	fields []Field
	pad    fieldKind
}

// KeyMin is the smallest key starting with fields; missing trailing columns are Min.
func KeyMin(fields ...Field) Key {
	return Key{fields: fields, pad: kindMin}
}

// KeyMax is the largest key starting with fields; missing trailing columns are Max.
func KeyMax(fields ...Field) Key {
	return Key{fields: fields, pad: kindMax}
}

func (k Key) field(i int) Field {
	if i < len(k.fields) {
		return k.fields[i]
	}
	return Field{kind: k.pad}
}

func compareKeys(a, b Key, width int) int {
	for i := 0; i < width; i++ {
		fa, fb := a.field(i), b.field(i)
		if c := cmp.Compare(fa.kind, fb.kind); c != 0 {
			return c
		}
		if fa.kind != kindExact {
			continue
		}
		if c := Compare(fa.value, fb.value); c != 0 {
			return c
		}
	}
	return 0
}

// Compare orders two column values. Numbers, strings, bools and entity ids use their natural order;
// numbers of different kinds compare by value. Other types fall back to comparing their encoded form.
func Compare(a, b any) int {
	if ia, ok := a.(types.EntityID); ok {
		if ib, ok := b.(types.EntityID); ok {
			return types.Compare(ia, ib)
		}
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.IsValid() && vb.IsValid() {
		if na, nb := numberClass(va), numberClass(vb); na != notNumber && nb != notNumber {
			return compareNumbers(va, na, vb, nb)
		}
		if va.Kind() == vb.Kind() {
			switch va.Kind() { //nolint:exhaustive // other kinds use the encoded fallback
			case reflect.String:
				return cmp.Compare(va.String(), vb.String())
			case reflect.Bool:
				return cmp.Compare(boolRank(va.Bool()), boolRank(vb.Bool()))
			}
		}
	}
	ea, _ := codec.Encode(a)
	eb, _ := codec.Encode(b)
	return bytes.Compare(ea, eb)
}

type numClass int8

const (
	notNumber numClass = iota
	signed
	unsigned
	float
)

func numberClass(v reflect.Value) numClass {
	switch v.Kind() { //nolint:exhaustive // everything else is not a number
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return signed
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return unsigned
	case reflect.Float32, reflect.Float64:
		return float
	}
	return notNumber
}

func compareNumbers(a reflect.Value, ca numClass, b reflect.Value, cb numClass) int {
	switch {
	case ca == cb:
		switch ca { //nolint:exhaustive // notNumber never reaches here
		case signed:
			return cmp.Compare(a.Int(), b.Int())
		case unsigned:
			return cmp.Compare(a.Uint(), b.Uint())
		}
		return cmp.Compare(a.Float(), b.Float())
	case cb == float:
		return -compareNumbers(b, cb, a, ca)
	case ca == float:
		return compareFloat(a.Float(), b, cb)
	case ca == signed:
		if a.Int() < 0 {
			return -1
		}
		return cmp.Compare(uint64(a.Int()), b.Uint())
	}
	return -compareNumbers(b, cb, a, ca)
}

// compareFloat orders f against an integer without rounding the integer to a float. NaN sorts first, as
// it does in cmp.Compare.
func compareFloat(f float64, i reflect.Value, class numClass) int {
	const two63, two64 = 1 << 63, 1 << 64
	if math.IsNaN(f) {
		return -1
	}
	whole, frac := math.Modf(f)
	if class == signed {
		switch {
		case f < -two63:
			return -1
		case f >= two63:
			return 1
		}
		if c := cmp.Compare(int64(whole), i.Int()); c != 0 {
			return c
		}
	} else {
		switch {
		case f < 0:
			return -1
		case f >= two64:
			return 1
		}
		if c := cmp.Compare(uint64(whole), i.Uint()); c != 0 {
			return c
		}
	}
	return cmp.Compare(frac, 0)
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}
