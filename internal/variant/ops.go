package variant

import (
	"math"
	"strings"
	"time"

	"vbscript/internal/errors"
)

// numericPair coerces both operands for arithmetic. null is true when
// either side is Null, in which case the result of the operator is Null.
func numericPair(a, b Variant) (x, y Variant, null bool, err error) {
	if a.kind == KindNull || b.kind == KindNull {
		if _, err = nullOperand(a); err != nil {
			return
		}
		if _, err = nullOperand(b); err != nil {
			return
		}
		null = true
		return
	}
	if x, err = ToNumber(a); err != nil {
		return
	}
	y, err = ToNumber(b)
	return
}

// nullOperand checks the non-Null side of an expression involving Null is
// still a valid operand.
func nullOperand(v Variant) (Variant, error) {
	if v.kind == KindNull {
		return v, nil
	}
	return ToNumber(v)
}

// widest returns the result kind for an arithmetic operator.
func widest(x, y Variant) Kind {
	if x.kind == KindDouble || y.kind == KindDouble {
		return KindDouble
	}
	if x.kind == KindLong || y.kind == KindLong {
		return KindLong
	}
	return KindInteger
}

// fit narrows an exact integer result into kind, widening on overflow
// along Integer ⊂ Long ⊂ Double.
func fit(n int64, kind Kind) Variant {
	if kind == KindInteger && n >= math.MinInt16 && n <= math.MaxInt16 {
		return Integer(int16(n))
	}
	if n >= math.MinInt32 && n <= math.MaxInt32 {
		return Long(int32(n))
	}
	return Double(float64(n))
}

func integral(x, y Variant, op func(a, b int64) int64, fop func(a, b float64) float64) Variant {
	kind := widest(x, y)
	if kind == KindDouble {
		return Double(fop(x.Float(), y.Float()))
	}
	return fit(op(x.i, y.i), kind)
}

// Add implements +. Strings that look numeric are added as numbers.
func Add(a, b Variant) (Variant, error) {
	if a.kind == KindDate || b.kind == KindDate {
		return dateArith(a, b, 1)
	}
	x, y, null, err := numericPair(a, b)
	if err != nil || null {
		return Null(), err
	}
	return integral(x, y,
		func(p, q int64) int64 { return p + q },
		func(p, q float64) float64 { return p + q }), nil
}

// Sub implements binary -.
func Sub(a, b Variant) (Variant, error) {
	if a.kind == KindDate && b.kind == KindDate {
		return Double(DateToFloat(a.t) - DateToFloat(b.t)), nil
	}
	if a.kind == KindDate {
		return dateArith(a, b, -1)
	}
	x, y, null, err := numericPair(a, b)
	if err != nil || null {
		return Null(), err
	}
	return integral(x, y,
		func(p, q int64) int64 { return p - q },
		func(p, q float64) float64 { return p - q }), nil
}

func dateArith(a, b Variant, sign float64) (Variant, error) {
	x, y, null, err := numericPair(a, b)
	if err != nil || null {
		return Null(), err
	}
	return Date(FloatToDate(x.Float() + sign*y.Float())), nil
}

// Mul implements *.
func Mul(a, b Variant) (Variant, error) {
	x, y, null, err := numericPair(a, b)
	if err != nil || null {
		return Null(), err
	}
	kind := widest(x, y)
	if kind != KindDouble {
		p := x.i * y.i
		if x.i != 0 && p/x.i != y.i {
			return Double(x.Float() * y.Float()), nil
		}
		return fit(p, kind), nil
	}
	return Double(x.Float() * y.Float()), nil
}

// Div implements /, which always yields a Double.
func Div(a, b Variant) (Variant, error) {
	x, y, null, err := numericPair(a, b)
	if err != nil || null {
		return Null(), err
	}
	if y.Float() == 0 {
		return Variant{}, errors.New(errors.DivideByZero, "")
	}
	return Double(x.Float() / y.Float()), nil
}

func integerOperands(a, b Variant) (p, q int64, kind Kind, null bool, err error) {
	x, y, null, err := numericPair(a, b)
	if err != nil || null {
		return
	}
	kind = widest(x, y)
	if kind == KindDouble {
		kind = KindLong
	}
	if p, err = ToInt64(x); err != nil {
		return
	}
	if q, err = ToInt64(y); err != nil {
		return
	}
	if q == 0 {
		err = errors.New(errors.DivideByZero, "")
	}
	return
}

// IntDiv implements \: both operands are rounded to integers first.
func IntDiv(a, b Variant) (Variant, error) {
	p, q, kind, null, err := integerOperands(a, b)
	if err != nil || null {
		return Null(), err
	}
	return fit(p/q, kind), nil
}

// Mod implements Mod; the sign follows the dividend.
func Mod(a, b Variant) (Variant, error) {
	p, q, kind, null, err := integerOperands(a, b)
	if err != nil || null {
		return Null(), err
	}
	return fit(p%q, kind), nil
}

// Pow implements ^, which always yields a Double.
func Pow(a, b Variant) (Variant, error) {
	x, y, null, err := numericPair(a, b)
	if err != nil || null {
		return Null(), err
	}
	r := math.Pow(x.Float(), y.Float())
	if math.IsNaN(r) {
		return Variant{}, errors.New(errors.InvalidCall, "")
	}
	return Double(r), nil
}

// Neg implements unary minus.
func Neg(a Variant) (Variant, error) {
	if a.kind == KindNull {
		return Null(), nil
	}
	x, err := ToNumber(a)
	if err != nil {
		return Variant{}, err
	}
	if x.kind == KindDouble {
		return Double(-x.f), nil
	}
	return fit(-x.i, x.kind), nil
}

// Concat implements &. Both operands are stringified; it never fails.
func Concat(a, b Variant) Variant {
	return String(ToString(a) + ToString(b))
}

// CompareOp selects a comparison operator.
type CompareOp int

const (
	OpEq CompareOp = iota
	OpNe
	OpLt
	OpGt
	OpLe
	OpGe
)

// comparable values: numbers compare numerically when both sides coerce,
// otherwise both sides compare as strings.
func numericValue(v Variant) (float64, bool) {
	switch v.kind {
	case KindEmpty:
		return 0, true
	case KindBoolean, KindInteger, KindLong:
		return float64(v.i), true
	case KindDouble:
		return v.f, true
	case KindDate:
		return DateToFloat(v.t), true
	case KindString:
		return ParseNumber(v.s)
	}
	return 0, false
}

// Compare3 orders a and b. It reports null when either side is Null.
func Compare3(a, b Variant) (order int, null bool, err error) {
	if a.kind == KindNull || b.kind == KindNull {
		return 0, true, nil
	}
	for _, v := range []Variant{a, b} {
		switch v.kind {
		case KindArray:
			return 0, false, errors.New(errors.TypeMismatch, "")
		case KindObject:
			return 0, false, errors.New(errors.TypeMismatch, "Object doesn't support this comparison")
		}
	}
	fa, okA := numericValue(a)
	fb, okB := numericValue(b)
	if okA && okB {
		switch {
		case fa < fb:
			return -1, false, nil
		case fa > fb:
			return 1, false, nil
		}
		return 0, false, nil
	}
	return strings.Compare(ToString(a), ToString(b)), false, nil
}

// Compare applies a comparison operator. The result is Boolean, or Null when
// either operand is Null.
func Compare(op CompareOp, a, b Variant) (Variant, error) {
	order, null, err := Compare3(a, b)
	if err != nil {
		return Variant{}, err
	}
	if null {
		return Null(), nil
	}
	switch op {
	case OpEq:
		return Bool(order == 0), nil
	case OpNe:
		return Bool(order != 0), nil
	case OpLt:
		return Bool(order < 0), nil
	case OpGt:
		return Bool(order > 0), nil
	case OpLe:
		return Bool(order <= 0), nil
	}
	return Bool(order >= 0), nil
}

// Equal is = folded to a Go bool; Null never equals anything.
func Equal(a, b Variant) (bool, error) {
	r, err := Compare(OpEq, a, b)
	if err != nil {
		return false, err
	}
	return r.kind == KindBoolean && r.i != 0, nil
}

// logical operands: Booleans stay Boolean, everything else is an integer
// bit pattern.
func logicalOperand(v Variant) (n int64, boolean bool, err error) {
	if v.kind == KindBoolean {
		return v.i, true, nil
	}
	n, err = ToInt64(v)
	return n, false, err
}

func logicalResult(n int64, boolean bool, x, y Variant) Variant {
	if boolean {
		return Bool(n != 0)
	}
	kind := KindInteger
	if x.kind == KindLong || y.kind == KindLong || x.kind == KindDouble || y.kind == KindDouble || x.kind == KindString || y.kind == KindString {
		kind = KindLong
	}
	return fit(n, kind)
}

// Not implements logical/bitwise negation; Not Null is Null.
func Not(a Variant) (Variant, error) {
	if a.kind == KindNull {
		return Null(), nil
	}
	n, boolean, err := logicalOperand(a)
	if err != nil {
		return Variant{}, err
	}
	if boolean {
		return Bool(n == 0), nil
	}
	return logicalResult(^n, false, a, a), nil
}

// LogicOp selects a binary logical operator.
type LogicOp int

const (
	OpAnd LogicOp = iota
	OpOr
	OpXor
	OpEqv
	OpImp
)

// Logic applies And, Or, Xor, Eqv or Imp with three-valued semantics for
// Null: False And Null is False, True Or Null is True, and every other
// combination involving Null is Null.
func Logic(op LogicOp, a, b Variant) (Variant, error) {
	if a.kind == KindNull || b.kind == KindNull {
		return logicNull(op, a, b)
	}
	p, pb, err := logicalOperand(a)
	if err != nil {
		return Variant{}, err
	}
	q, qb, err := logicalOperand(b)
	if err != nil {
		return Variant{}, err
	}
	var n int64
	switch op {
	case OpAnd:
		n = p & q
	case OpOr:
		n = p | q
	case OpXor:
		n = p ^ q
	case OpEqv:
		n = ^(p ^ q)
	case OpImp:
		n = ^p | q
	}
	return logicalResult(n, pb && qb, a, b), nil
}

func logicNull(op LogicOp, a, b Variant) (Variant, error) {
	// known is the non-Null side, if any.
	known, knownLeft := b, false
	if b.kind == KindNull {
		known, knownLeft = a, true
	}
	if known.kind == KindNull {
		return Null(), nil
	}
	n, boolean, err := logicalOperand(known)
	if err != nil {
		return Variant{}, err
	}
	switch op {
	case OpAnd:
		if n == 0 {
			return logicalResult(0, boolean, known, known), nil
		}
	case OpOr:
		if n == -1 {
			return logicalResult(-1, boolean, known, known), nil
		}
	case OpImp:
		// False Imp x and x Imp True are both True.
		if (knownLeft && n == 0) || (!knownLeft && n == -1) {
			return logicalResult(-1, boolean, known, known), nil
		}
	}
	return Null(), nil
}

// Now returns the current local time truncated to seconds, as the legacy
// runtime's Date subtype has one-second resolution.
func Now() Variant {
	t := time.Now().Truncate(time.Second)
	return Date(time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC))
}
