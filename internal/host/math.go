package host

import (
	"math"
	"math/rand"
	"strconv"
	"strings"

	"vbscript/internal/variant"
)

func mathFuncs(h *Host) []builtin {
	return []builtin{
		{"Abs", 1, 1, abs},
		{"Sgn", 1, 1, sgn},
		{"Int", 1, 1, integral(math.Floor)},
		{"Fix", 1, 1, integral(math.Trunc)},
		{"Round", 1, 2, round},
		{"Sqr", 1, 1, sqr},
		{"Exp", 1, 1, float(math.Exp)},
		{"Log", 1, 1, logarithm},
		{"Atn", 1, 1, float(math.Atan)},
		{"Cos", 1, 1, float(math.Cos)},
		{"Sin", 1, 1, float(math.Sin)},
		{"Tan", 1, 1, float(math.Tan)},
		{"Hex", 1, 1, radix("Hex", 16)},
		{"Oct", 1, 1, radix("Oct", 8)},
		{"Rnd", 0, 1, h.rndFunc},
		{"Randomize", 0, 1, h.randomize},
	}
}

// numberArg coerces an argument for the math intrinsics; Null passes through
// as ok == false.
func numberArg(v variant.Variant) (n variant.Variant, ok bool, err error) {
	if v.IsNull() {
		return v, false, nil
	}
	n, err = variant.ToNumber(v)
	return n, err == nil, err
}

func abs(args []variant.Variant) (variant.Variant, error) {
	n, ok, err := numberArg(args[0])
	if !ok {
		return n, err
	}
	if n.Kind() == variant.KindDouble {
		return variant.Double(math.Abs(n.Float())), nil
	}
	i := n.Int()
	if i < 0 {
		i = -i
	}
	return variant.Int(i), nil
}

func sgn(args []variant.Variant) (variant.Variant, error) {
	n, ok, err := numberArg(args[0])
	if !ok {
		return n, err
	}
	f := n.Float()
	switch {
	case f > 0:
		return variant.Integer(1), nil
	case f < 0:
		return variant.Integer(-1), nil
	}
	return variant.Integer(0), nil
}

// integral builds Int and Fix, which keep the argument's numeric subtype.
func integral(op func(float64) float64) func([]variant.Variant) (variant.Variant, error) {
	return func(args []variant.Variant) (variant.Variant, error) {
		n, ok, err := numberArg(args[0])
		if !ok {
			return n, err
		}
		if n.Kind() == variant.KindDouble {
			return variant.Double(op(n.Float())), nil
		}
		return n, nil
	}
}

// round implements Round(expression[, digits]) with ties to even.
func round(args []variant.Variant) (variant.Variant, error) {
	n, ok, err := numberArg(args[0])
	if !ok {
		return n, err
	}
	digits, err := optInt(args, 1, 0)
	if err != nil {
		return variant.Empty(), err
	}
	if digits < 0 {
		return variant.Empty(), invalidCall("Round")
	}
	if n.Kind() != variant.KindDouble {
		return n, nil
	}
	scale := math.Pow(10, float64(digits))
	r := variant.RoundHalfEven(n.Float()*scale) / scale
	return variant.Double(r), nil
}

func sqr(args []variant.Variant) (variant.Variant, error) {
	n, ok, err := numberArg(args[0])
	if !ok {
		return n, err
	}
	if n.Float() < 0 {
		return variant.Empty(), invalidCall("Sqr")
	}
	return variant.Double(math.Sqrt(n.Float())), nil
}

func logarithm(args []variant.Variant) (variant.Variant, error) {
	n, ok, err := numberArg(args[0])
	if !ok {
		return n, err
	}
	if n.Float() <= 0 {
		return variant.Empty(), invalidCall("Log")
	}
	return variant.Double(math.Log(n.Float())), nil
}

func float(op func(float64) float64) func([]variant.Variant) (variant.Variant, error) {
	return func(args []variant.Variant) (variant.Variant, error) {
		n, ok, err := numberArg(args[0])
		if !ok {
			return n, err
		}
		return variant.Double(op(n.Float())), nil
	}
}

// radix builds Hex and Oct. Negative numbers print in 32-bit two's
// complement, or 16-bit when they fit an Integer.
func radix(name string, base int) func([]variant.Variant) (variant.Variant, error) {
	return func(args []variant.Variant) (variant.Variant, error) {
		if args[0].IsNull() {
			return args[0], nil
		}
		n, err := variant.ToInt64(args[0])
		if err != nil {
			return variant.Empty(), err
		}
		if n < math.MinInt32 || n > math.MaxUint32 {
			return variant.Empty(), invalidCall(name)
		}
		u := uint64(n)
		switch {
		case n < 0 && n >= math.MinInt16 && args[0].Kind() == variant.KindInteger:
			u = uint64(uint16(n))
		case n < 0:
			u = uint64(uint32(n))
		}
		return variant.String(strings.ToUpper(strconv.FormatUint(u, base))), nil
	}
}

// rndFunc implements Rnd([number]): negative reseeds from the argument,
// zero repeats the previous value, anything else advances.
func (h *Host) rndFunc(args []variant.Variant) (variant.Variant, error) {
	if given(args, 0) {
		f, err := variant.ToFloat(args[0])
		if err != nil {
			return variant.Empty(), err
		}
		switch {
		case f == 0:
			return variant.Double(h.lastRnd), nil
		case f < 0:
			h.rnd = rand.New(rand.NewSource(int64(math.Float64bits(f))))
		}
	}
	h.lastRnd = h.rnd.Float64()
	return variant.Double(h.lastRnd), nil
}

func (h *Host) randomize(args []variant.Variant) (variant.Variant, error) {
	seed := h.now().UnixNano()
	if given(args, 0) {
		f, err := variant.ToFloat(args[0])
		if err != nil {
			return variant.Empty(), err
		}
		seed = int64(math.Float64bits(f))
	}
	h.rnd = rand.New(rand.NewSource(seed))
	return variant.Empty(), nil
}
