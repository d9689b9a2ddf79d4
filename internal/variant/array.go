package variant

import (
	"vbscript/internal/errors"
)

// Limits on what a script can allocate in one value.
const (
	MaxArrayElements = 1 << 22
	MaxStringLen     = 1 << 25
)

// Array is a fixed-size, zero-based, possibly multi-dimensional array.
// Elements are stored row-major. An array with no dimensions is the
// unallocated dynamic array produced by `Dim a()`.
type Array struct {
	bounds []int // upper bound per dimension
	data   []Variant
}

// NewArray allocates an array with the given upper bounds. An upper bound of
// -1 gives an empty dimension, as Array() does.
func NewArray(upper ...int) (*Array, error) {
	a := &Array{}
	if err := a.alloc(upper); err != nil {
		return nil, err
	}
	return a, nil
}

// NewDynamic returns an unallocated dynamic array.
func NewDynamic() *Array { return &Array{} }

// ArrayFrom builds a one-dimensional array owning a copy of values.
func ArrayFrom(values []Variant) *Array {
	data := make([]Variant, len(values))
	for i, v := range values {
		data[i] = v.Copy()
	}
	return &Array{bounds: []int{len(values) - 1}, data: data}
}

func (a *Array) alloc(upper []int) error {
	size := 1
	for _, u := range upper {
		if u < -1 {
			return errors.New(errors.SubscriptOutOfRange, "")
		}
		if u >= 0 && size > MaxArrayElements/(u+1) {
			return errors.New(errors.OutOfMemory, "")
		}
		size *= u + 1
	}
	a.bounds = append([]int(nil), upper...)
	a.data = make([]Variant, size)
	return nil
}

// Dims returns the number of dimensions; 0 for an unallocated array.
func (a *Array) Dims() int { return len(a.bounds) }

// Len returns the total element count.
func (a *Array) Len() int { return len(a.data) }

// UBound returns the upper bound of the 1-based dimension dim.
func (a *Array) UBound(dim int) (int, error) {
	if dim < 1 || dim > len(a.bounds) {
		return 0, errors.New(errors.SubscriptOutOfRange, "")
	}
	return a.bounds[dim-1], nil
}

func (a *Array) offset(idx []int) (int, error) {
	if len(idx) != len(a.bounds) {
		return 0, errors.New(errors.SubscriptOutOfRange, "")
	}
	off := 0
	for d, i := range idx {
		if i < 0 || i > a.bounds[d] {
			return 0, errors.Newf(errors.SubscriptOutOfRange, "Subscript out of range: '%d'", i)
		}
		off = off*(a.bounds[d]+1) + i
	}
	return off, nil
}

// Get returns the element at idx.
func (a *Array) Get(idx ...int) (Variant, error) {
	off, err := a.offset(idx)
	if err != nil {
		return Variant{}, err
	}
	return a.data[off], nil
}

// Set stores a copy of v at idx.
func (a *Array) Set(v Variant, idx ...int) error {
	off, err := a.offset(idx)
	if err != nil {
		return err
	}
	a.data[off] = v.Copy()
	return nil
}

// Redim reallocates the array. With preserve, elements whose coordinates
// survive the new bounds are kept; growing pads with Empty and shrinking
// truncates.
func (a *Array) Redim(preserve bool, upper ...int) error {
	if !preserve || len(a.bounds) == 0 {
		return a.alloc(upper)
	}
	if len(upper) != len(a.bounds) {
		return errors.New(errors.SubscriptOutOfRange, "")
	}
	old := &Array{bounds: a.bounds, data: a.data}
	if err := a.alloc(upper); err != nil {
		return err
	}
	idx := make([]int, len(upper))
	for off := range a.data {
		rem := off
		for d := len(upper) - 1; d >= 0; d-- {
			idx[d] = rem % (upper[d] + 1)
			rem /= upper[d] + 1
		}
		if v, err := old.Get(idx...); err == nil {
			a.data[off] = v
		}
	}
	return nil
}

// Clone deep-copies the array, including nested arrays.
func (a *Array) Clone() *Array {
	out := &Array{bounds: append([]int(nil), a.bounds...), data: make([]Variant, len(a.data))}
	for i, v := range a.data {
		out.data[i] = v.Copy()
	}
	return out
}

// Values returns the elements in storage order. The slice is a snapshot.
func (a *Array) Values() []Variant {
	return append([]Variant(nil), a.data...)
}
