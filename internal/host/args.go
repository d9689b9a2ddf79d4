package host

import (
	"math"

	"vbscript/internal/errors"
	"vbscript/internal/interp"
	"vbscript/internal/variant"
)

// builtin is one intrinsic function. max < 0 accepts any number of
// arguments.
type builtin struct {
	name     string
	min, max int
	fn       interp.Func
}

func register(reg *interp.Registry, funcs []builtin) {
	for _, b := range funcs {
		b := b
		reg.RegisterFunc(b.name, func(args []variant.Variant) (variant.Variant, error) {
			if err := arity(b.name, args, b.min, b.max); err != nil {
				return variant.Empty(), err
			}
			return b.fn(args)
		})
	}
}

func arity(name string, args []variant.Variant, min, max int) error {
	if len(args) < min || (max >= 0 && len(args) > max) {
		return errors.Newf(errors.ArgumentCount, "Wrong number of arguments or invalid property assignment: '%s'", name)
	}
	return nil
}

// given reports whether optional argument n was supplied. An omitted
// argument arrives as Empty.
func given(args []variant.Variant, n int) bool {
	return n < len(args) && !args[n].IsEmpty()
}

func optString(args []variant.Variant, n int, def string) string {
	if !given(args, n) {
		return def
	}
	return variant.ToString(args[n])
}

func optInt(args []variant.Variant, n int, def int) (int, error) {
	if !given(args, n) {
		return def, nil
	}
	return toInt(args[n])
}

func optBool(args []variant.Variant, n int, def bool) (bool, error) {
	if !given(args, n) {
		return def, nil
	}
	return variant.ToBool(args[n])
}

func toInt(v variant.Variant) (int, error) {
	n, err := variant.ToInt64(v)
	return int(n), err
}

func toString(v variant.Variant) (string, error) {
	if v.IsNull() {
		return "", errors.New(errors.TypeMismatch, "Invalid use of Null")
	}
	if v.IsArray() || (v.IsObject() && v.IsNothing()) {
		return "", errors.New(errors.TypeMismatch, "")
	}
	return variant.ToString(v), nil
}

// repeatCount converts the count argument of Space, String and
// WriteBlankLines.
func repeatCount(name string, v variant.Variant) (int, error) {
	n, err := variant.ToInt64(v)
	if err != nil {
		return 0, err
	}
	switch {
	case n < 0:
		return 0, invalidCall(name)
	case n > math.MaxInt32:
		return 0, errors.Newf(errors.Overflow, "Overflow: '%s'", name)
	case n > variant.MaxStringLen:
		return 0, errors.Newf(errors.OutOfMemory, "Out of memory: '%s'", name)
	}
	return int(n), nil
}

func invalidCall(name string) error {
	return errors.Newf(errors.InvalidCall, "Invalid procedure call or argument: '%s'", name)
}

func unsupported(class, member string) error {
	return errors.Newf(errors.NotSupported, "Object doesn't support this property or method: '%s.%s'", class, member)
}

// value returns the value being assigned by an InvokeSet.
func value(args []variant.Variant) variant.Variant {
	if len(args) == 0 {
		return variant.Empty()
	}
	return args[len(args)-1]
}

// readOnly rejects assignment to a property that cannot be set.
func readOnly(class, member string, mode variant.InvokeMode) error {
	if mode == variant.InvokeSet {
		return errors.Newf(errors.NotSupported, "Wrong number of arguments or invalid property assignment: '%s.%s'", class, member)
	}
	return nil
}
