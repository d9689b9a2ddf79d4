package host

import (
	"math"
	"regexp"
	"strings"

	"vbscript/internal/errors"
	"vbscript/internal/variant"
)

var conversionFuncs = []builtin{
	{"CStr", 1, 1, cStr},
	{"CInt", 1, 1, nullChecked(variant.ToInteger)},
	{"CLng", 1, 1, nullChecked(variant.ToLong)},
	{"CByte", 1, 1, nullChecked(toByte)},
	{"CSng", 1, 1, nullChecked(toDouble)},
	{"CDbl", 1, 1, nullChecked(toDouble)},
	{"CCur", 1, 1, nullChecked(toCurrency)},
	{"CBool", 1, 1, nullChecked(func(v variant.Variant) (variant.Variant, error) {
		b, err := variant.ToBool(v)
		return variant.Bool(b), err
	})},
	{"Val", 1, 1, val},
	{"Str", 1, 1, nullChecked(str)},
	{"CDate", 1, 1, nullChecked(func(v variant.Variant) (variant.Variant, error) {
		t, err := variant.ToDate(v)
		return variant.Date(t), err
	})},
}

var inspectionFuncs = []builtin{
	{"IsNumeric", 1, 1, predicate(variant.IsNumeric)},
	{"IsDate", 1, 1, predicate(isDate)},
	{"IsEmpty", 1, 1, predicate(variant.Variant.IsEmpty)},
	{"IsNull", 1, 1, predicate(variant.Variant.IsNull)},
	{"IsArray", 1, 1, predicate(variant.Variant.IsArray)},
	{"IsObject", 1, 1, predicate(variant.Variant.IsObject)},
	{"TypeName", 1, 1, func(args []variant.Variant) (variant.Variant, error) {
		return variant.String(variant.TypeName(args[0])), nil
	}},
	{"VarType", 1, 1, func(args []variant.Variant) (variant.Variant, error) {
		return variant.Int(int64(variant.VarType(args[0]))), nil
	}},
}

// nullChecked adapts a conversion. Converting Null is "Invalid use of
// Null", as in the legacy runtime.
func nullChecked(conv func(variant.Variant) (variant.Variant, error)) func([]variant.Variant) (variant.Variant, error) {
	return func(args []variant.Variant) (variant.Variant, error) {
		if args[0].IsNull() {
			return variant.Empty(), errors.New(errors.TypeMismatch, "Invalid use of Null")
		}
		v, err := conv(args[0])
		if err != nil {
			return variant.Empty(), err
		}
		return v, nil
	}
}

func predicate(test func(variant.Variant) bool) func([]variant.Variant) (variant.Variant, error) {
	return func(args []variant.Variant) (variant.Variant, error) {
		return variant.Bool(test(args[0])), nil
	}
}

func cStr(args []variant.Variant) (variant.Variant, error) {
	s, err := toString(args[0])
	if err != nil {
		return variant.Empty(), err
	}
	return variant.String(s), nil
}

func toDouble(v variant.Variant) (variant.Variant, error) {
	f, err := variant.ToFloat(v)
	return variant.Double(f), err
}

func toByte(v variant.Variant) (variant.Variant, error) {
	n, err := variant.ToInt64(v)
	if err != nil {
		return variant.Empty(), err
	}
	if n < 0 || n > 255 {
		return variant.Empty(), errors.New(errors.Overflow, "")
	}
	return variant.Integer(int16(n)), nil
}

// toCurrency rounds to the four decimal places the Currency subtype keeps.
func toCurrency(v variant.Variant) (variant.Variant, error) {
	f, err := variant.ToFloat(v)
	if err != nil {
		return variant.Empty(), err
	}
	return variant.Double(math.RoundToEven(f*10000) / 10000), nil
}

func isDate(v variant.Variant) bool {
	switch v.Kind() {
	case variant.KindDate:
		return true
	case variant.KindString:
		_, ok := variant.ParseDate(v.Str())
		return ok
	}
	return false
}

var leadingNumber = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?`)

// val implements Val: the longest numeric prefix of the string, ignoring
// blanks, or 0.
func val(args []variant.Variant) (variant.Variant, error) {
	s, err := toString(args[0])
	if err != nil {
		return variant.Empty(), err
	}
	s = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == '\n' {
			return -1
		}
		return r
	}, s)
	if f, ok := variant.ParseNumber(s); ok && strings.HasPrefix(s, "&") {
		return variant.Double(f), nil
	}
	m := leadingNumber.FindString(s)
	if m == "" {
		return variant.Integer(0), nil
	}
	f, _ := variant.ParseNumber(m)
	return variant.Double(f), nil
}

// str implements Str, which reserves a leading blank for the sign of a
// non-negative number.
func str(v variant.Variant) (variant.Variant, error) {
	n, err := variant.ToNumber(v)
	if err != nil {
		return variant.Empty(), err
	}
	s := n.String()
	if !strings.HasPrefix(s, "-") {
		s = " " + s
	}
	return variant.String(s), nil
}
