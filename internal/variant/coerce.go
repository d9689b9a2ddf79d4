package variant

import (
	"math"
	"strconv"
	"strings"
	"time"

	"vbscript/internal/errors"
)

// oleEpoch is day zero of the OLE automation date scale.
var oleEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// DateToFloat converts t to OLE automation days.
func DateToFloat(t time.Time) float64 {
	wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	secs := wall.Unix() - oleEpoch.Unix()
	return float64(secs)/86400 + float64(wall.Nanosecond())/86400e9
}

// FloatToDate converts OLE automation days to a time, at millisecond
// resolution.
func FloatToDate(f float64) time.Time {
	ms := int64(math.Round(f * 86400000))
	sec, rem := ms/1000, ms%1000
	if rem < 0 {
		rem += 1000
		sec--
	}
	return time.Unix(oleEpoch.Unix()+sec, rem*int64(time.Millisecond)).UTC()
}

// ParseNumber parses s the way arithmetic coercion does: surrounding
// whitespace is ignored, the decimal point is always '.', and &H / &O
// prefixes select hexadecimal and octal.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if len(s) > 2 && s[0] == '&' {
		base := 0
		switch s[1] {
		case 'h', 'H':
			base = 16
		case 'o', 'O':
			base = 8
		}
		if base != 0 {
			n, err := strconv.ParseInt(strings.TrimSuffix(s[2:], "&"), base, 64)
			if err != nil {
				return 0, false
			}
			return float64(n), true
		}
	}
	lower := strings.ToLower(s)
	if strings.Contains(lower, "inf") || strings.Contains(lower, "nan") || strings.HasPrefix(lower, "0x") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// IsNumeric reports whether v can take part in arithmetic.
func IsNumeric(v Variant) bool {
	switch v.kind {
	case KindEmpty, KindBoolean, KindInteger, KindLong, KindDouble:
		return true
	case KindString:
		_, ok := ParseNumber(v.s)
		return ok
	}
	return false
}

// ToNumber coerces v to Integer, Long or Double. Strings become Double.
// Null is returned unchanged so operators can propagate it.
func ToNumber(v Variant) (Variant, error) {
	switch v.kind {
	case KindEmpty:
		return Integer(0), nil
	case KindNull, KindInteger, KindLong, KindDouble:
		return v, nil
	case KindBoolean:
		return Integer(int16(v.i)), nil
	case KindString:
		f, ok := ParseNumber(v.s)
		if !ok {
			return Variant{}, errors.Newf(errors.TypeMismatch, "Type mismatch: '%s'", v.s)
		}
		return Double(f), nil
	case KindDate:
		return Double(DateToFloat(v.t)), nil
	case KindObject:
		if v.obj == nil {
			return Variant{}, errors.New(errors.ObjectRequired, "")
		}
	}
	return Variant{}, errors.New(errors.TypeMismatch, "")
}

// ToFloat coerces v to a float64. Null is a type mismatch here.
func ToFloat(v Variant) (float64, error) {
	if v.kind == KindNull {
		return 0, errors.New(errors.TypeMismatch, "Invalid use of Null")
	}
	n, err := ToNumber(v)
	if err != nil {
		return 0, err
	}
	return n.Float(), nil
}

// RoundHalfEven rounds to the nearest integer, ties to even.
func RoundHalfEven(f float64) float64 { return math.RoundToEven(f) }

// ToInt64 converts v to an integer with banker's rounding.
func ToInt64(v Variant) (int64, error) {
	f, err := ToFloat(v)
	if err != nil {
		return 0, err
	}
	r := RoundHalfEven(f)
	if r > math.MaxInt64 || r < math.MinInt64 || math.IsNaN(r) {
		return 0, errors.New(errors.Overflow, "")
	}
	return int64(r), nil
}

// ToInteger implements CInt: banker's rounding into the 16-bit range.
func ToInteger(v Variant) (Variant, error) {
	n, err := ToInt64(v)
	if err != nil {
		return Variant{}, err
	}
	if n < math.MinInt16 || n > math.MaxInt16 {
		return Variant{}, errors.New(errors.Overflow, "")
	}
	return Integer(int16(n)), nil
}

// ToLong implements CLng: banker's rounding into the 32-bit range.
func ToLong(v Variant) (Variant, error) {
	n, err := ToInt64(v)
	if err != nil {
		return Variant{}, err
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return Variant{}, errors.New(errors.Overflow, "")
	}
	return Long(int32(n)), nil
}

// ToBool implements CBool.
func ToBool(v Variant) (bool, error) {
	switch v.kind {
	case KindBoolean:
		return v.i != 0, nil
	case KindString:
		switch strings.ToLower(strings.TrimSpace(v.s)) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	case KindNull:
		return false, errors.New(errors.TypeMismatch, "Invalid use of Null")
	}
	f, err := ToFloat(v)
	if err != nil {
		return false, err
	}
	return f != 0, nil
}

// ToDate implements CDate.
func ToDate(v Variant) (time.Time, error) {
	switch v.kind {
	case KindDate:
		return v.t, nil
	case KindString:
		if t, ok := ParseDate(v.s); ok {
			return t, nil
		}
		if f, ok := ParseNumber(v.s); ok {
			return FloatToDate(f), nil
		}
		return time.Time{}, errors.Newf(errors.TypeMismatch, "Type mismatch: '%s'", v.s)
	}
	f, err := ToFloat(v)
	if err != nil {
		return time.Time{}, err
	}
	return FloatToDate(f), nil
}

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 15:04:05",
	"1/2/2006 3:04 PM",
	"1/2/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"3:04:05 PM",
	"3:04 PM",
	"15:04:05",
	"15:04",
}

// ParseDate recognizes the date and time spellings accepted by date
// literals and CDate.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() == 0 {
				// time-only values sit on day zero
				t = oleEpoch.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second)
			}
			return t, true
		}
	}
	return time.Time{}, false
}

// Truthy is the condition rule used by If, While, Do and Until: Empty, "",
// zero and Null are false, everything else is true.
func Truthy(v Variant) bool {
	switch v.kind {
	case KindEmpty, KindNull:
		return false
	case KindBoolean, KindInteger, KindLong:
		return v.i != 0
	case KindDouble:
		return v.f != 0
	case KindString:
		return v.s != ""
	case KindObject:
		return v.obj != nil
	}
	return true
}

// ToString is the stringification used by concatenation; it never fails.
// Null and Empty become "".
func ToString(v Variant) string {
	if v.kind == KindNull {
		return ""
	}
	return v.String()
}

// String formats v for display.
func (v Variant) String() string {
	switch v.kind {
	case KindEmpty:
		return ""
	case KindNull:
		return "Null"
	case KindBoolean:
		if v.i != 0 {
			return "True"
		}
		return "False"
	case KindInteger, KindLong:
		return strconv.FormatInt(v.i, 10)
	case KindDouble:
		return FormatDouble(v.f)
	case KindString:
		return v.s
	case KindDate:
		return FormatDate(v.t)
	case KindArray:
		return ""
	case KindObject:
		if v.obj == nil {
			return "Nothing"
		}
		if s, ok := v.obj.(interface{ String() string }); ok {
			return s.String()
		}
		return TypeName(v)
	}
	return ""
}

// FormatDouble renders a Double with at most 15 significant digits,
// switching to exponent form the way the legacy runtime does.
func FormatDouble(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "1.#INF"
	case math.IsInf(f, -1):
		return "-1.#INF"
	case math.IsNaN(f):
		return "-1.#IND"
	}
	s := strconv.FormatFloat(f, 'g', 15, 64)
	if i := strings.IndexByte(s, 'e'); i >= 0 {
		mant, exp := s[:i], s[i+1:]
		sign := exp[0]
		exp = strings.TrimLeft(exp[1:], "0")
		if len(exp) < 2 {
			exp = strings.Repeat("0", 2-len(exp)) + exp
		}
		return mant + "E" + string(sign) + exp
	}
	return s
}

// FormatDate renders a Date in the general date format: date only when the
// time is midnight, time only when the date is day zero.
func FormatDate(t time.Time) string {
	dateOnly := t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0
	timeOnly := t.Year() == 1899 && t.Month() == time.December && t.Day() == 30
	switch {
	case timeOnly:
		return t.Format("3:04:05 PM")
	case dateOnly:
		return t.Format("1/2/2006")
	}
	return t.Format("1/2/2006 3:04:05 PM")
}
