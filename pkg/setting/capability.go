package setting

import (
	"cmp"
	"slices"
)

// Capability tells which values of a setting the device supports.
type Capability[T any] interface {
	Contains(v T) bool
}

// EnumSet is the capability of an enumerated setting: the supported values,
// sorted ascending.
type EnumSet[E cmp.Ordered] struct {
	Values []E `cbor:"1,keyasint"`
}

// NewEnumSet builds a set from values in any order, removing duplicates.
func NewEnumSet[E cmp.Ordered](values ...E) EnumSet[E] {
	v := slices.Clone(values)
	slices.Sort(v)
	return EnumSet[E]{Values: slices.Compact(v)}
}

// Contains returns true if v is supported.
func (s EnumSet[E]) Contains(v E) bool {
	_, found := slices.BinarySearch(s.Values, v)
	return found
}

// Len returns the number of supported values.
func (s EnumSet[E]) Len() int {
	return len(s.Values)
}

// Range is the capability of a numeric setting: a closed interval.
type Range[N cmp.Ordered] struct {
	Min N `cbor:"1,keyasint"`
	Max N `cbor:"2,keyasint"`
}

// Contains returns true if Min <= v <= Max.
func (r Range[N]) Contains(v N) bool {
	return r.Min <= v && v <= r.Max
}

// Valid returns true if the range is not inverted.
func (r Range[N]) Valid() bool {
	return r.Min <= r.Max
}

// Clamp returns v bounded to the range.
func (r Range[N]) Clamp(v N) N {
	return min(max(v, r.Min), r.Max)
}

// Any is the capability of a setting the device never restricts.
type Any[T any] struct{}

// Contains always returns true.
func (Any[T]) Contains(T) bool { return true }
