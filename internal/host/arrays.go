package host

import (
	"strings"

	"vbscript/internal/errors"
	"vbscript/internal/variant"
)

var arrayFuncs = []builtin{
	{"Array", 0, -1, func(args []variant.Variant) (variant.Variant, error) {
		values := make([]variant.Variant, len(args))
		for i, a := range args {
			values[i] = a.Copy()
		}
		return variant.ArrayOf(variant.ArrayFrom(values)), nil
	}},
	{"UBound", 1, 2, bound(false)},
	{"LBound", 1, 2, bound(true)},
	{"Filter", 2, 4, filter},
}

// bound builds UBound and LBound. Lower bounds are always zero.
func bound(lower bool) func([]variant.Variant) (variant.Variant, error) {
	return func(args []variant.Variant) (variant.Variant, error) {
		if !args[0].IsArray() {
			return variant.Empty(), errors.New(errors.TypeMismatch, "")
		}
		dim, err := optInt(args, 1, 1)
		if err != nil {
			return variant.Empty(), err
		}
		a := args[0].Array()
		if dim < 1 || dim > a.Dims() {
			return variant.Empty(), errors.New(errors.SubscriptOutOfRange, "")
		}
		if lower {
			return variant.Integer(0), nil
		}
		ub, err := a.UBound(dim)
		if err != nil {
			return variant.Empty(), err
		}
		return variant.Int(int64(ub)), nil
	}
}

// filter implements Filter(strings, match[, include[, compare]]).
func filter(args []variant.Variant) (variant.Variant, error) {
	if !args[0].IsArray() || args[0].Array().Dims() > 1 {
		return variant.Empty(), errors.New(errors.TypeMismatch, "")
	}
	if args[1].IsNull() {
		return variant.Empty(), errors.New(errors.TypeMismatch, "Invalid use of Null")
	}
	include, err := optBool(args, 2, true)
	if err != nil {
		return variant.Empty(), err
	}
	mode, err := optInt(args, 3, binaryCompare)
	if err != nil {
		return variant.Empty(), err
	}
	match := variant.ToString(args[1])
	var kept []variant.Variant
	for _, v := range args[0].Array().Values() {
		s := variant.ToString(v)
		hay, needle := fold(s, match, mode)
		if strings.Contains(hay, needle) == include {
			kept = append(kept, variant.String(s))
		}
	}
	if len(kept) == 0 {
		a, _ := variant.NewArray(-1)
		return variant.ArrayOf(a), nil
	}
	return variant.ArrayOf(variant.ArrayFrom(kept)), nil
}
