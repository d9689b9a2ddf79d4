// Package variant implements the single dynamically typed value every
// script expression produces, together with the loose-typing coercion rules
// of the language.
package variant

import (
	"time"
)

// Kind is the subtype tag of a Variant.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindNull
	KindBoolean
	KindInteger
	KindLong
	KindDouble
	KindString
	KindDate
	KindArray
	KindObject
)

var kindNames = [...]string{
	KindEmpty:   "Empty",
	KindNull:    "Null",
	KindBoolean: "Boolean",
	KindInteger: "Integer",
	KindLong:    "Long",
	KindDouble:  "Double",
	KindString:  "String",
	KindDate:    "Date",
	KindArray:   "Variant()",
	KindObject:  "Object",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// VarType numbers, as returned by the VarType intrinsic.
const (
	VbEmpty   = 0
	VbNull    = 1
	VbInteger = 2
	VbLong    = 3
	VbDouble  = 5
	VbDate    = 7
	VbString  = 8
	VbObject  = 9
	VbBoolean = 11
	VbVariant = 12
	VbArray   = 8192
)

// Variant is a tagged union over the script's value subtypes. The zero
// value is Empty.
type Variant struct {
	kind Kind
	i    int64
	f    float64
	s    string
	t    time.Time
	arr  *Array
	obj  Object
}

// InvokeMode tells a host object how a member is being used.
type InvokeMode int

const (
	// InvokeGet reads a property or calls a method for its result.
	InvokeGet InvokeMode = iota
	// InvokeSet writes a property; the value is the last argument.
	InvokeSet
	// InvokeCall calls a method in statement position, discarding the result.
	InvokeCall
)

func (m InvokeMode) String() string {
	switch m {
	case InvokeSet:
		return "set"
	case InvokeCall:
		return "call"
	}
	return "get"
}

// Object is the capability a host object exposes to scripts. An empty
// member name addresses the default member, as in dict("key").
type Object interface {
	Invoke(member string, args []Variant, mode InvokeMode) (Variant, error)
}

// Enumerable objects can be the collection of a For Each loop.
type Enumerable interface {
	Enumerate() ([]Variant, error)
}

// Named objects report their class name to TypeName.
type Named interface {
	TypeName() string
}

// Empty returns the uninitialized value.
func Empty() Variant { return Variant{} }

// Null returns the value representing unknown or missing data.
func Null() Variant { return Variant{kind: KindNull} }

func Bool(b bool) Variant {
	if b {
		return Variant{kind: KindBoolean, i: -1}
	}
	return Variant{kind: KindBoolean}
}

func Integer(n int16) Variant { return Variant{kind: KindInteger, i: int64(n)} }

func Long(n int32) Variant { return Variant{kind: KindLong, i: int64(n)} }

func Double(f float64) Variant { return Variant{kind: KindDouble, f: f} }

func String(s string) Variant { return Variant{kind: KindString, s: s} }

func Date(t time.Time) Variant { return Variant{kind: KindDate, t: t} }

// Int returns the narrowest of Integer, Long or Double holding n.
func Int(n int64) Variant {
	switch {
	case n >= -32768 && n <= 32767:
		return Variant{kind: KindInteger, i: n}
	case n >= -2147483648 && n <= 2147483647:
		return Variant{kind: KindLong, i: n}
	}
	return Double(float64(n))
}

// ArrayOf wraps an array. The caller hands over ownership.
func ArrayOf(a *Array) Variant { return Variant{kind: KindArray, arr: a} }

// ObjectOf wraps a host object handle; nil yields Nothing.
func ObjectOf(o Object) Variant { return Variant{kind: KindObject, obj: o} }

// Nothing is the empty object reference.
func Nothing() Variant { return Variant{kind: KindObject} }

func (v Variant) Kind() Kind { return v.kind }

func (v Variant) IsEmpty() bool { return v.kind == KindEmpty }

func (v Variant) IsNull() bool { return v.kind == KindNull }

func (v Variant) IsArray() bool { return v.kind == KindArray }

func (v Variant) IsObject() bool { return v.kind == KindObject }

// IsNothing reports whether v is an object reference to nothing.
func (v Variant) IsNothing() bool { return v.kind == KindObject && v.obj == nil }

// IsNumber reports whether v holds a numeric subtype.
func (v Variant) IsNumber() bool {
	return v.kind == KindInteger || v.kind == KindLong || v.kind == KindDouble
}

// Raw accessors; they do not coerce.

func (v Variant) Bool() bool { return v.i != 0 }

func (v Variant) Int() int64 {
	if v.kind == KindDouble {
		return int64(v.f)
	}
	return v.i
}

func (v Variant) Float() float64 {
	if v.kind == KindDouble {
		return v.f
	}
	return float64(v.i)
}

func (v Variant) Str() string { return v.s }

func (v Variant) Time() time.Time { return v.t }

func (v Variant) Array() *Array { return v.arr }

func (v Variant) Object() Object { return v.obj }

// Copy returns a value safe to store: arrays have value semantics and are
// duplicated, everything else is immutable or a shared handle.
func (v Variant) Copy() Variant {
	if v.kind == KindArray && v.arr != nil {
		return ArrayOf(v.arr.Clone())
	}
	return v
}

// TypeName returns the subtype name reported by the TypeName intrinsic.
func TypeName(v Variant) string {
	if v.kind == KindObject {
		if v.obj == nil {
			return "Nothing"
		}
		if n, ok := v.obj.(Named); ok {
			return n.TypeName()
		}
	}
	return v.kind.String()
}

// VarType returns the subtype number reported by the VarType intrinsic.
func VarType(v Variant) int {
	switch v.kind {
	case KindNull:
		return VbNull
	case KindBoolean:
		return VbBoolean
	case KindInteger:
		return VbInteger
	case KindLong:
		return VbLong
	case KindDouble:
		return VbDouble
	case KindString:
		return VbString
	case KindDate:
		return VbDate
	case KindArray:
		return VbArray + VbVariant
	case KindObject:
		return VbObject
	}
	return VbEmpty
}

// Identical reports object identity for the Is operator.
func Identical(a, b Variant) bool {
	if a.kind != KindObject || b.kind != KindObject {
		return false
	}
	return a.obj == b.obj
}
